package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract records the services/items sold for one deceased person.
//
// InvoiceNumber and DocumentPath stay nil until the first render; once set the
// number is immutable and unique. Totals are never stored; they are recomputed
// from the lines on every read.
type Contract struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	DeceasedID    uint            `gorm:"not null;index" json:"deceased_id"`
	Deceased      *Deceased       `gorm:"foreignKey:DeceasedID" json:"deceased,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:10.00" json:"tax_rate"`
	ContractedAt  time.Time       `gorm:"not null;index" json:"contracted_at"`
	InvoiceNumber *string         `gorm:"size:50;uniqueIndex" json:"invoice_number,omitempty"`
	DocumentPath  *string         `gorm:"size:255" json:"-"`
	Lines         []ContractLine  `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Invoiced reports whether the contract has reached the invoiced state.
func (c *Contract) Invoiced() bool { return c.InvoiceNumber != nil }

// ContractLine is one catalog item + quantity within a contract.
// UnitPrice is frozen at line creation and does not follow later catalog changes.
type ContractLine struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ContractID    uint            `gorm:"not null;index:idx_contract_item,unique,priority:1" json:"contract_id"`
	ServiceItemID uint            `gorm:"not null;index:idx_contract_item,unique,priority:2" json:"service_item_id"`
	ServiceItem   *ServiceItem    `gorm:"foreignKey:ServiceItemID" json:"service_item,omitempty"`
	Quantity      int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Total returns quantity times unit price for this line.
func (l *ContractLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
