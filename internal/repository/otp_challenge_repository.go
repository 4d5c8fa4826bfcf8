package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"

	"gorm.io/gorm"
)

type OTPChallengeRepository interface {
	Create(ctx context.Context, challenge *domain.OTPChallenge) error
	// Consume marks the matching challenge used. It succeeds for at most one
	// caller per challenge; every other caller gets ErrOTPChallengeNotFound.
	Consume(ctx context.Context, q OTPConsumeQuery) (*domain.OTPChallenge, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type OTPConsumeQuery struct {
	ChallengeID string
	UserID      uint
	Purpose     domain.OTPPurpose
	CodeHash    string
	Now         time.Time
}

type GormOTPChallengeRepository struct{ db *gorm.DB }

func NewOTPChallengeRepository(db *gorm.DB) OTPChallengeRepository {
	return &GormOTPChallengeRepository{db: db}
}

func (r *GormOTPChallengeRepository) Create(ctx context.Context, challenge *domain.OTPChallenge) error {
	err := translate(r.db.WithContext(ctx).Create(challenge).Error)
	record(ctx, "otp_challenge", "create", err)
	return err
}

// Consume is a single conditional UPDATE. The match on used=false inside the
// statement is what makes concurrent verifications of one code exclusive.
func (r *GormOTPChallengeRepository) Consume(ctx context.Context, q OTPConsumeQuery) (*domain.OTPChallenge, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&domain.OTPChallenge{}).
		Where("id = ? AND user_id = ? AND purpose = ? AND code_hash = ? AND used = ? AND expires_at > ?",
			q.ChallengeID, q.UserID, q.Purpose, q.CodeHash, false, q.Now).
		Updates(map[string]any{"used": true, "verified_at": q.Now})
	if res.Error != nil {
		record(ctx, "otp_challenge", "consume", res.Error)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		record(ctx, "otp_challenge", "consume", ErrOTPChallengeNotFound)
		return nil, ErrOTPChallengeNotFound
	}

	var challenge domain.OTPChallenge
	if err := db.Where("id = ?", q.ChallengeID).First(&challenge).Error; err != nil {
		record(ctx, "otp_challenge", "consume", err)
		return nil, err
	}
	record(ctx, "otp_challenge", "consume", nil)
	return &challenge, nil
}

func (r *GormOTPChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ? OR used = ?", now, true).Delete(&domain.OTPChallenge{})
	record(ctx, "otp_challenge", "delete_expired", res.Error)
	return res.RowsAffected, res.Error
}
