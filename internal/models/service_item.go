package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceItem is a sellable catalog entry (casket, chapel service, transport...).
// The contract subsystem only reads it; contract lines snapshot its price.
type ServiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:200;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
