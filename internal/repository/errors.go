package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/erp-identity-core/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrProfileNotFound      = errors.New("employee profile not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrOTPChallengeNotFound = errors.New("otp challenge not found")
	ErrStaleRefreshToken    = errors.New("refresh token already rotated")
	ErrConflict             = errors.New("record conflicts with existing data")
)

// translate maps driver-level constraint errors onto ErrConflict. The
// database must be opened with TranslateError enabled.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return errors.Join(ErrConflict, err)
	}
	return err
}

func record(ctx context.Context, entity, op string, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrCredentialNotFound), errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrOTPChallengeNotFound):
		status = "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrStaleRefreshToken):
		status = "conflict"
	default:
		status = "error"
	}
	observability.RecordRepositoryOperation(ctx, entity, op, status)
}
