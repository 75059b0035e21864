package models

import "time"

// Family is the bereaved family responsible for a deceased person.
type Family struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ResponsibleName string    `gorm:"size:200;not null" json:"responsible_name"`
	Kinship         string    `gorm:"size:100" json:"kinship"`
	Phone           string    `gorm:"size:20" json:"phone"`
	Email           string    `gorm:"size:200" json:"email,omitempty"`
	Address         string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
