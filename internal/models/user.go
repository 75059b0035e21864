package models

import "time"

// Role names used by the authorization gate.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is a staff member able to sign in and operate the system.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:200;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:200;not null" json:"-"` // bcrypt hash
	Name      string    `gorm:"size:200;not null" json:"name"`
	Role      string    `gorm:"size:20;not null;default:'staff'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
