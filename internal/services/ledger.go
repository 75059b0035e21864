package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrosario/funeraria/internal/domain"
	"github.com/mrosario/funeraria/internal/models"
)

// LedgerService reads and settles ledger entries. Receivable creation lives in
// the contract orchestration; nothing here ever inserts contract receivables.
type LedgerService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db, now: time.Now}
}

var paymentMethods = map[string]bool{
	models.PaymentCash:     true,
	models.PaymentCard:     true,
	models.PaymentPix:      true,
	models.PaymentTransfer: true,
	models.PaymentBoleto:   true,
}

func (s *LedgerService) Get(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := s.db.WithContext(ctx).Preload("Deceased").First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "ledger_entry", ID: id}
		}
		return nil, err
	}
	return &entry, nil
}

// List returns entries due-date ascending, optionally filtered by status.
func (s *LedgerService) List(ctx context.Context, status string, limit, offset int) ([]models.LedgerEntry, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx).Model(&models.LedgerEntry{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []models.LedgerEntry
	if err := q.Preload("Deceased").Order("due_date asc, id asc").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// MarkPaid settles a pending entry with the given payment method.
func (s *LedgerService) MarkPaid(ctx context.Context, id uint, method string) (*models.LedgerEntry, error) {
	if method != "" && !paymentMethods[method] {
		return nil, domain.NewValidationError("payment_method", "unknown")
	}
	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.NotFoundError{Resource: "ledger_entry", ID: id}
			}
			return err
		}
		if entry.Status != models.EntryStatusPending {
			return domain.NewValidationError("status", "not_pending")
		}
		paidAt := s.now()
		updates := map[string]any{"status": models.EntryStatusPaid, "paid_at": paidAt}
		if method != "" {
			updates["payment_method"] = method
		}
		if err := tx.Model(&models.LedgerEntry{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
			return err
		}
		entry.Status = models.EntryStatusPaid
		entry.PaidAt = &paidAt
		if method != "" {
			entry.PaymentMethod = method
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
