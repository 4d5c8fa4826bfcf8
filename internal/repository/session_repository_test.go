package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
)

func seedSession(t *testing.T, repo SessionRepository, id string, userID uint, expiresAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.Session{
		ID:               id,
		UserID:           userID,
		AccessTokenHash:  "access-" + id,
		AccessTokenID:    "jti-" + id,
		RefreshTokenHash: "refresh-" + id,
		ExpiresAt:        expiresAt,
		Active:           true,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestSessionRepositoryLookupAndList(t *testing.T) {
	repo := NewSessionRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", 1, now.Add(time.Hour))
	seedSession(t, repo, "s2", 1, now.Add(time.Hour))
	seedSession(t, repo, "s3", 1, now.Add(-time.Minute))
	seedSession(t, repo, "s4", 2, now.Add(time.Hour))

	s, err := repo.FindActiveByAccessHash(ctx, "access-s1", now)
	if err != nil || s.ID != "s1" {
		t.Fatalf("find by access hash: %+v err=%v", s, err)
	}
	if _, err := repo.FindActiveByAccessHash(ctx, "access-s3", now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be hidden, got %v", err)
	}

	list, err := repo.ListActiveByUserID(ctx, 1, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(list))
	}
}

func TestSessionRepositoryDeactivate(t *testing.T) {
	repo := NewSessionRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", 1, now.Add(time.Hour))
	seedSession(t, repo, "s2", 1, now.Add(time.Hour))
	seedSession(t, repo, "s3", 1, now.Add(time.Hour))

	affected, err := repo.Deactivate(ctx, SessionFilter{UserID: 1, ExceptID: "s1"}, "revoke_others", now)
	if err != nil {
		t.Fatalf("deactivate others: %v", err)
	}
	if len(affected) != 2 {
		t.Fatalf("expected 2 sessions deactivated, got %d", len(affected))
	}

	again, err := repo.Deactivate(ctx, SessionFilter{ID: "s2", UserID: 1}, "logout", now)
	if err != nil {
		t.Fatalf("deactivate again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected already inactive session to be skipped, got %d", len(again))
	}

	stored, err := repo.FindByID(ctx, "s2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Active || stored.RevokedAt == nil || stored.RevokeReason != "revoke_others" {
		t.Fatalf("unexpected session state: %+v", stored)
	}

	if _, err := repo.Deactivate(ctx, SessionFilter{}, "x", now); err == nil {
		t.Fatal("expected empty filter to be rejected")
	}
}

func TestSessionRepositoryRotateTokensCompareAndSwap(t *testing.T) {
	repo := NewSessionRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", 1, now.Add(time.Hour))

	next := SessionTokens{
		AccessTokenHash:  "access-next",
		AccessTokenID:    "jti-next",
		AccessExpiresAt:  now.Add(time.Hour),
		RefreshTokenHash: "refresh-next",
		ExpiresAt:        now.Add(2 * time.Hour),
	}
	if err := repo.RotateTokens(ctx, "s1", "refresh-s1", next); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := repo.RotateTokens(ctx, "s1", "refresh-s1", next); !errors.Is(err, ErrStaleRefreshToken) {
		t.Fatalf("expected stale refresh error, got %v", err)
	}
	s, _ := repo.FindByID(ctx, "s1")
	if s.RefreshTokenHash != "refresh-next" || s.AccessTokenID != "jti-next" {
		t.Fatalf("unexpected rotated session: %+v", s)
	}
}
