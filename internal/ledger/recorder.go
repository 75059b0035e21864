// Package ledger owns the financial side of contracts: the receivable created
// at contract creation and the payment lifecycle of existing entries.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mrosario/funeraria/internal/models"
)

// Receivable is the input for the single financial record a contract creation
// produces.
type Receivable struct {
	DeceasedID  uint
	ContractID  uint
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
}

// Recorder inserts receivables inside a caller-owned transaction. The
// orchestrator depends on this interface so failure injection in tests can
// prove the unit of work rolls back as one.
type Recorder interface {
	InsertReceivable(tx *gorm.DB, r Receivable) error
}

// GormRecorder is the production Recorder backed by the ledger_entries table.
type GormRecorder struct{}

func NewRecorder() GormRecorder { return GormRecorder{} }

func (GormRecorder) InsertReceivable(tx *gorm.DB, r Receivable) error {
	contractID := r.ContractID
	entry := models.LedgerEntry{
		DeceasedID:  r.DeceasedID,
		ContractID:  &contractID,
		Type:        models.EntryTypeReceivable,
		Description: r.Description,
		Amount:      r.Amount,
		DueDate:     r.DueDate,
		Status:      models.EntryStatusPending,
	}
	return tx.Create(&entry).Error
}
