package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/repository"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

const DefaultOTPTTL = 10 * time.Minute

type OTPService struct {
	repo     repository.OTPChallengeRepository
	notifier OTPNotifier
	ttl      time.Duration
	pepper   string
	now      func() time.Time
}

type IssuedOTP struct {
	ChallengeID string
	Code        string
	Channel     domain.OTPChannel
	Destination string
	ExpiresAt   time.Time
	TTL         time.Duration
}

func NewOTPService(repo repository.OTPChallengeRepository, notifier OTPNotifier, ttl time.Duration, pepper string) *OTPService {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPService{repo: repo, notifier: notifier, ttl: ttl, pepper: pepper, now: time.Now}
}

// Issue stores a new challenge and hands it to the notifier. The returned
// code is the only copy of the plaintext.
func (s *OTPService) Issue(ctx context.Context, userID uint, purpose domain.OTPPurpose, channel domain.OTPChannel, destination string) (*IssuedOTP, error) {
	code, err := security.GenerateOTPCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	now := s.now().UTC()
	challengeID := uuid.NewString()
	challenge := &domain.OTPChallenge{
		ID:          challengeID,
		UserID:      userID,
		Purpose:     purpose,
		Channel:     channel,
		Destination: destination,
		CodeHash:    security.HashOTPCode(challengeID, code, s.pepper),
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, challenge); err != nil {
		observability.RecordOTPEvent(ctx, string(purpose), "issue", "error")
		return nil, err
	}
	if s.notifier != nil {
		if err := s.notifier.SendOTP(ctx, OTPNotification{
			ChallengeID: challenge.ID,
			UserID:      userID,
			Purpose:     purpose,
			Channel:     channel,
			Destination: destination,
			Code:        code,
			ExpiresAt:   challenge.ExpiresAt,
		}); err != nil {
			observability.RecordOTPEvent(ctx, string(purpose), "issue", "delivery_error")
			return nil, fmt.Errorf("deliver otp: %w", err)
		}
	}
	observability.RecordOTPEvent(ctx, string(purpose), "issue", "success")
	return &IssuedOTP{
		ChallengeID: challenge.ID,
		Code:        code,
		Channel:     channel,
		Destination: destination,
		ExpiresAt:   challenge.ExpiresAt,
		TTL:         s.ttl,
	}, nil
}

// Verify consumes the challenge when every condition holds. A false result
// leaves the challenge untouched.
func (s *OTPService) Verify(ctx context.Context, challengeID string, userID uint, code string, purpose domain.OTPPurpose) (bool, error) {
	if challengeID == "" || !security.ValidOTPCodeFormat(code) {
		observability.RecordOTPEvent(ctx, string(purpose), "verify", "rejected")
		return false, nil
	}
	_, err := s.repo.Consume(ctx, repository.OTPConsumeQuery{
		ChallengeID: challengeID,
		UserID:      userID,
		Purpose:     purpose,
		CodeHash:    security.HashOTPCode(challengeID, code, s.pepper),
		Now:         s.now().UTC(),
	})
	if errors.Is(err, repository.ErrOTPChallengeNotFound) {
		observability.RecordOTPEvent(ctx, string(purpose), "verify", "rejected")
		return false, nil
	}
	if err != nil {
		observability.RecordOTPEvent(ctx, string(purpose), "verify", "error")
		return false, err
	}
	observability.RecordOTPEvent(ctx, string(purpose), "verify", "success")
	return true, nil
}
