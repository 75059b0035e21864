package models

import "time"

// Deceased is the person a contract is drawn up for.
// FamilyID is optional; the invoice renderer omits the family block when absent.
type Deceased struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:200;not null" json:"name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	DeathDate time.Time  `gorm:"not null;index" json:"death_date"`
	FamilyID  *uint      `gorm:"index" json:"family_id,omitempty"`
	Family    *Family    `gorm:"foreignKey:FamilyID" json:"family,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
