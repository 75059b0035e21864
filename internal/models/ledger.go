package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types.
const (
	EntryTypeReceivable = "receivable"
	EntryTypeExpense    = "expense"
)

// Ledger entry statuses.
const (
	EntryStatusPending   = "pending"
	EntryStatusPaid      = "paid"
	EntryStatusCancelled = "cancelled"
)

// Accepted payment methods for MarkPaid.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentPix      = "pix"
	PaymentTransfer = "transfer"
	PaymentBoleto   = "boleto"
)

// LedgerEntry is a financial obligation record. Contract creation inserts
// exactly one receivable per contract; updates never add another.
type LedgerEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	DeceasedID    uint            `gorm:"not null;index" json:"deceased_id"`
	Deceased      *Deceased       `gorm:"foreignKey:DeceasedID" json:"deceased,omitempty"`
	ContractID    *uint           `gorm:"index" json:"contract_id,omitempty"`
	Contract      *Contract       `gorm:"foreignKey:ContractID" json:"-"`
	Type          string          `gorm:"size:10;not null" json:"type"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	DueDate       time.Time       `gorm:"not null;index" json:"due_date"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod string          `gorm:"size:20" json:"payment_method,omitempty"`
	Status        string          `gorm:"size:10;not null;default:'pending'" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Open reports whether the entry still awaits payment.
func (e *LedgerEntry) Open() bool { return e.Status == EntryStatusPending }
