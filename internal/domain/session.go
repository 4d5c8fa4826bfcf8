package domain

import "time"

// Session binds one issued token pair to an account. Tokens are stored
// as keyed digests, never raw.
type Session struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           uint       `gorm:"index;not null" json:"user_id"`
	AccessTokenHash  string     `gorm:"size:64;index;not null" json:"-"`
	AccessTokenID    string     `gorm:"size:64" json:"-"`
	AccessExpiresAt  time.Time  `json:"-"`
	RefreshTokenHash string     `gorm:"size:64;index;not null" json:"-"`
	ExpiresAt        time.Time  `gorm:"index;not null" json:"expires_at"`
	IP               string     `gorm:"size:64" json:"ip"`
	UserAgent        string     `gorm:"size:512" json:"user_agent"`
	Active           bool       `gorm:"not null;default:true;index" json:"active"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokeReason     string     `gorm:"size:64" json:"revoke_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
