package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"

	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	FindActiveByAccessHash(ctx context.Context, accessHash string, now time.Time) (*domain.Session, error)
	ListActiveByUserID(ctx context.Context, userID uint, now time.Time) ([]domain.Session, error)
	// Deactivate returns the sessions it actually flipped to inactive.
	Deactivate(ctx context.Context, filter SessionFilter, reason string, now time.Time) ([]domain.Session, error)
	RotateTokens(ctx context.Context, id, expectedRefreshHash string, next SessionTokens) error
	UpdateAccessToken(ctx context.Context, id string, next SessionTokens) error
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionFilter narrows a deactivation. Zero fields are ignored; UserID or
// ID must be set.
type SessionFilter struct {
	ID       string
	UserID   uint
	ExceptID string
}

type SessionTokens struct {
	AccessTokenHash  string
	AccessTokenID    string
	AccessExpiresAt  time.Time
	RefreshTokenHash string
	ExpiresAt        time.Time
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := translate(r.db.WithContext(ctx).Create(s).Error)
	record(ctx, "session", "create", err)
	return err
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) FindActiveByAccessHash(ctx context.Context, accessHash string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("access_token_hash = ? AND active = ? AND expires_at > ?", accessHash, true, now).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "find_active_by_access_hash", err)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID uint, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND expires_at > ?", userID, true, now).
		Order("created_at desc").
		Find(&sessions).Error
	record(ctx, "session", "list_active", err)
	return sessions, err
}

func (r *GormSessionRepository) Deactivate(ctx context.Context, filter SessionFilter, reason string, now time.Time) ([]domain.Session, error) {
	if filter.ID == "" && filter.UserID == 0 {
		return nil, errors.New("session filter requires id or user id")
	}
	var affected []domain.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Session{}).Where("active = ?", true)
		if filter.ID != "" {
			q = q.Where("id = ?", filter.ID)
		}
		if filter.UserID != 0 {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.ExceptID != "" {
			q = q.Where("id <> ?", filter.ExceptID)
		}
		if err := q.Find(&affected).Error; err != nil {
			return err
		}
		if len(affected) == 0 {
			return nil
		}
		ids := make([]string, 0, len(affected))
		for _, s := range affected {
			ids = append(ids, s.ID)
		}
		res := tx.Model(&domain.Session{}).
			Where("id IN ? AND active = ?", ids, true).
			Updates(map[string]any{"active": false, "revoked_at": now, "revoke_reason": reason})
		return res.Error
	})
	record(ctx, "session", "deactivate", err)
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// RotateTokens swaps the session's token digests only if the stored refresh
// digest still equals expectedRefreshHash.
func (r *GormSessionRepository) RotateTokens(ctx context.Context, id, expectedRefreshHash string, next SessionTokens) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND refresh_token_hash = ? AND active = ?", id, expectedRefreshHash, true).
		Updates(map[string]any{
			"access_token_hash":  next.AccessTokenHash,
			"access_token_id":    next.AccessTokenID,
			"access_expires_at":  next.AccessExpiresAt,
			"refresh_token_hash": next.RefreshTokenHash,
			"expires_at":         next.ExpiresAt,
		})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrStaleRefreshToken
	}
	record(ctx, "session", "rotate_tokens", err)
	return err
}

func (r *GormSessionRepository) UpdateAccessToken(ctx context.Context, id string, next SessionTokens) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{
			"access_token_hash": next.AccessTokenHash,
			"access_token_id":   next.AccessTokenID,
			"access_expires_at": next.AccessExpiresAt,
		})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "update_access_token", err)
	return err
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("active = ? AND expires_at <= ?", true, now).
		Updates(map[string]any{"active": false, "revoked_at": now, "revoke_reason": "expired"})
	record(ctx, "session", "cleanup_expired", res.Error)
	return res.RowsAffected, res.Error
}
