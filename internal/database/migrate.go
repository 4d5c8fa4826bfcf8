package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/repository"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	start := time.Now()
	err := db.AutoMigrate(
		&domain.Credential{},
		&domain.EmployeeProfile{},
		&domain.OTPChallenge{},
		&domain.Session{},
	)
	observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}

type CleanupReport struct {
	ExpiredSessions   int64 `json:"expired_sessions"`
	ExpiredChallenges int64 `json:"expired_challenges"`
}

// CleanupExpired deactivates sessions past their refresh expiry and removes
// OTP challenges that can no longer be verified, in one transaction.
func CleanupExpired(ctx context.Context, db *gorm.DB, now time.Time) (*CleanupReport, error) {
	now = now.UTC()
	report := &CleanupReport{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions, err := repository.NewSessionRepository(tx).CleanupExpired(ctx, now)
		if err != nil {
			return err
		}
		report.ExpiredSessions = sessions

		challenges, err := repository.NewOTPChallengeRepository(tx).DeleteExpired(ctx, now)
		if err != nil {
			return err
		}
		report.ExpiredChallenges = challenges
		return nil
	})
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "cleanup", "error")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(ctx, "cleanup", "success")
	observability.RecordDatabaseCleanupDeletedRows(ctx, "sessions", report.ExpiredSessions)
	observability.RecordDatabaseCleanupDeletedRows(ctx, "otp_challenges", report.ExpiredChallenges)
	return report, nil
}
