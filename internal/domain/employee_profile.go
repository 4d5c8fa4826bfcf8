package domain

import "time"

// EmployeeProfile is the HR-side identity record. Its email shares the
// credential namespace and phone numbers resolve OTP logins.
type EmployeeProfile struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CredentialID uint        `gorm:"uniqueIndex;not null" json:"credential_id"`
	Credential   *Credential `gorm:"foreignKey:CredentialID;constraint:OnDelete:RESTRICT" json:"-"`
	Email        string      `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName     string      `gorm:"size:255;not null" json:"full_name"`
	Department   string      `gorm:"size:120" json:"department"`
	Phone        *string     `gorm:"uniqueIndex;size:32" json:"phone,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
