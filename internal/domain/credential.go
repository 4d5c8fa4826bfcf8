package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleHR       = "hr"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleHR, RoleManager, RoleEmployee:
		return true
	default:
		return false
	}
}

// Credential is the authentication record for one employee account.
type Credential struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Role              string     `gorm:"size:32;not null;default:employee;index:idx_credentials_role" json:"role"`
	Department        string     `gorm:"size:120" json:"department"`
	Active            bool       `gorm:"not null;default:true;index:idx_credentials_active" json:"active"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedBy         *uint      `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
