package domain

import "time"

type OTPPurpose string

const (
	OTPPurposeLogin         OTPPurpose = "LOGIN"
	OTPPurposePasswordReset OTPPurpose = "PASSWORD_RESET"
)

type OTPChannel string

const (
	OTPChannelEmail OTPChannel = "email"
	OTPChannelSMS   OTPChannel = "sms"
)

// OTPChallenge is single use: Used flips to true exactly once and never back.
type OTPChallenge struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint       `gorm:"index:idx_otp_user_purpose;not null" json:"user_id"`
	Purpose     OTPPurpose `gorm:"size:32;index:idx_otp_user_purpose;not null" json:"purpose"`
	Channel     OTPChannel `gorm:"size:16;not null" json:"channel"`
	Destination string     `gorm:"size:255;not null" json:"-"`
	CodeHash    string     `gorm:"size:64;not null" json:"-"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`
	Used        bool       `gorm:"not null;default:false" json:"used"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
