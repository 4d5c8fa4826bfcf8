package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
)

type OTPNotification struct {
	ChallengeID string
	UserID      uint
	Purpose     domain.OTPPurpose
	Channel     domain.OTPChannel
	Destination string
	Code        string
	ExpiresAt   time.Time
}

// OTPNotifier delivers a freshly issued code over its channel.
type OTPNotifier interface {
	SendOTP(ctx context.Context, notification OTPNotification) error
}

// DevOTPNotifier only logs the delivery. The code itself is never logged.
type DevOTPNotifier struct {
	logger *slog.Logger
}

func NewDevOTPNotifier(logger *slog.Logger) *DevOTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevOTPNotifier{logger: logger}
}

func (n *DevOTPNotifier) SendOTP(ctx context.Context, notification OTPNotification) error {
	n.logger.InfoContext(ctx, "otp issued",
		"challenge_id", notification.ChallengeID,
		"user_id", notification.UserID,
		"purpose", string(notification.Purpose),
		"channel", string(notification.Channel),
		"destination", MaskDestination(notification.Destination),
		"expires_at", notification.ExpiresAt,
	)
	return nil
}

// MaskDestination keeps just enough of an email or phone number for a user
// to recognise it.
func MaskDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if at := strings.LastIndex(dest, "@"); at > 0 {
		local := []rune(dest[:at])
		return string(local[0]) + strings.Repeat("*", max(len(local)-1, 1)) + dest[at:]
	}
	runes := []rune(dest)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
