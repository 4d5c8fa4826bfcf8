package service

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/repository"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

const (
	revokeReasonLogout         = "logout"
	revokeReasonUserRevoked    = "user_session_revoked"
	revokeReasonRevokeOthers   = "user_revoke_others"
	revokeReasonRefreshReuse   = "refresh_token_reuse"
	revokeReasonPasswordReset  = "password_reset"
	revokeReasonPasswordChange = "password_change"
	revokeReasonDeactivated    = "account_deactivated"
)

type SessionMeta struct {
	IP        string
	UserAgent string
}

type SessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	IsCurrent bool      `json:"is_current"`
}

// SessionService owns the session table. Raw tokens only ever reach it to be
// digested.
type SessionService struct {
	repo     repository.SessionRepository
	denylist TokenDenylist
	pepper   string
	now      func() time.Time
}

func NewSessionService(repo repository.SessionRepository, denylist TokenDenylist, pepper string) *SessionService {
	if denylist == nil {
		denylist = NewNoopTokenDenylist()
	}
	return &SessionService{repo: repo, denylist: denylist, pepper: pepper, now: time.Now}
}

func (s *SessionService) Create(ctx context.Context, sessionID string, userID uint, pair TokenPair, meta SessionMeta) (*domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           userID,
		AccessTokenHash:  security.HashToken(pair.Access.Token, s.pepper),
		AccessTokenID:    pair.Access.ID,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshTokenHash: security.HashToken(pair.Refresh.Token, s.pepper),
		ExpiresAt:        pair.Refresh.ExpiresAt,
		IP:               meta.IP,
		UserAgent:        truncate(meta.UserAgent, 512),
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		observability.RecordSessionManagementEvent(ctx, "create", "error")
		return nil, err
	}
	observability.RecordSessionManagementEvent(ctx, "create", "success")
	return session, nil
}

// InvalidateByAccessToken deactivates the active session the raw access
// token was issued with.
func (s *SessionService) InvalidateByAccessToken(ctx context.Context, rawAccess string) error {
	session, err := s.repo.FindActiveByAccessHash(ctx, security.HashToken(rawAccess, s.pepper), s.now().UTC())
	if errors.Is(err, repository.ErrSessionNotFound) {
		observability.RecordSessionManagementEvent(ctx, "logout", "not_found")
		return ErrSessionNotFound
	}
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "logout", "error")
		return err
	}
	affected, err := s.deactivate(ctx, repository.SessionFilter{ID: session.ID}, revokeReasonLogout)
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "logout", "error")
		return err
	}
	if len(affected) == 0 {
		observability.RecordSessionManagementEvent(ctx, "logout", "not_found")
		return ErrSessionNotFound
	}
	observability.RecordSessionManagementEvent(ctx, "logout", "success")
	return nil
}

// InvalidateByID deactivates one of userID's sessions and reports
// "revoked" or "already_revoked".
func (s *SessionService) InvalidateByID(ctx context.Context, userID uint, sessionID string) (string, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) || (err == nil && session.UserID != userID) {
		observability.RecordSessionManagementEvent(ctx, "revoke_one", "not_found")
		return "", ErrSessionNotFound
	}
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "revoke_one", "error")
		return "", err
	}
	affected, err := s.deactivate(ctx, repository.SessionFilter{ID: sessionID, UserID: userID}, revokeReasonUserRevoked)
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "revoke_one", "error")
		return "", err
	}
	if len(affected) == 0 {
		observability.RecordSessionManagementEvent(ctx, "revoke_one", "already_revoked")
		return "already_revoked", nil
	}
	observability.RecordSessionManagementEvent(ctx, "revoke_one", "success")
	return "revoked", nil
}

func (s *SessionService) ListActive(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error) {
	sessions, err := s.repo.ListActiveByUserID(ctx, userID, s.now().UTC())
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "list", "error")
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			IP:        session.IP,
			UserAgent: session.UserAgent,
			IsCurrent: session.ID == currentSessionID,
		})
	}
	observability.RecordSessionManagementEvent(ctx, "list", "success")
	return views, nil
}

// InvalidateAllExcept deactivates every active session of userID other than
// the one currentAccess belongs to.
func (s *SessionService) InvalidateAllExcept(ctx context.Context, userID uint, currentAccess string) (int64, error) {
	current, err := s.repo.FindActiveByAccessHash(ctx, security.HashToken(currentAccess, s.pepper), s.now().UTC())
	if errors.Is(err, repository.ErrSessionNotFound) || (err == nil && current.UserID != userID) {
		observability.RecordSessionManagementEvent(ctx, "revoke_others", "not_found")
		return 0, ErrSessionNotFound
	}
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "revoke_others", "error")
		return 0, err
	}
	affected, err := s.deactivate(ctx, repository.SessionFilter{UserID: userID, ExceptID: current.ID}, revokeReasonRevokeOthers)
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "revoke_others", "error")
		return 0, err
	}
	observability.RecordSessionManagementEvent(ctx, "revoke_others", "success")
	observability.RecordSessionRevokedCount(ctx, "revoke_others", int64(len(affected)))
	return int64(len(affected)), nil
}

// InvalidateOthersByID deactivates every active session of userID except
// keepSessionID. An empty keepSessionID ends them all.
func (s *SessionService) InvalidateOthersByID(ctx context.Context, userID uint, keepSessionID, reason string) (int64, error) {
	affected, err := s.deactivate(ctx, repository.SessionFilter{UserID: userID, ExceptID: keepSessionID}, reason)
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, reason, "error")
		return 0, err
	}
	observability.RecordSessionManagementEvent(ctx, reason, "success")
	observability.RecordSessionRevokedCount(ctx, reason, int64(len(affected)))
	return int64(len(affected)), nil
}

func (s *SessionService) InvalidateAllForUser(ctx context.Context, userID uint, reason string) (int64, error) {
	affected, err := s.deactivate(ctx, repository.SessionFilter{UserID: userID}, reason)
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, reason, "error")
		return 0, err
	}
	observability.RecordSessionManagementEvent(ctx, reason, "success")
	observability.RecordSessionRevokedCount(ctx, reason, int64(len(affected)))
	return int64(len(affected)), nil
}

// FindForRefresh returns the active, unexpired session a refresh token
// points at.
func (s *SessionService) FindForRefresh(ctx context.Context, sessionID string, userID uint) (*domain.Session, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !session.Active || session.UserID != userID || !session.ExpiresAt.After(s.now().UTC()) {
		return nil, ErrInvalidToken
	}
	return session, nil
}

// PresentedRefreshMatches reports whether rawRefresh is the session's
// current refresh token.
func (s *SessionService) PresentedRefreshMatches(session *domain.Session, rawRefresh string) bool {
	return security.TokenHashEqual(session.RefreshTokenHash, security.HashToken(rawRefresh, s.pepper))
}

// Rotate replaces both token digests, provided nobody rotated the session
// since rawRefresh was issued.
func (s *SessionService) Rotate(ctx context.Context, session *domain.Session, rawRefresh string, next TokenPair) error {
	err := s.repo.RotateTokens(ctx, session.ID, security.HashToken(rawRefresh, s.pepper), repository.SessionTokens{
		AccessTokenHash:  security.HashToken(next.Access.Token, s.pepper),
		AccessTokenID:    next.Access.ID,
		AccessExpiresAt:  next.Access.ExpiresAt,
		RefreshTokenHash: security.HashToken(next.Refresh.Token, s.pepper),
		ExpiresAt:        next.Refresh.ExpiresAt,
	})
	if errors.Is(err, repository.ErrStaleRefreshToken) {
		return ErrInvalidToken.withCause(err)
	}
	if err != nil {
		return err
	}
	s.denyAccess(ctx, session.AccessTokenID, session.AccessExpiresAt)
	return nil
}

// AttachAccessToken points the session at a newly minted access token when
// refresh rotation is off.
func (s *SessionService) AttachAccessToken(ctx context.Context, sessionID string, access security.SignedToken) error {
	err := s.repo.UpdateAccessToken(ctx, sessionID, repository.SessionTokens{
		AccessTokenHash: security.HashToken(access.Token, s.pepper),
		AccessTokenID:   access.ID,
		AccessExpiresAt: access.ExpiresAt,
	})
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	return err
}

// RevokeFamily ends a session whose refresh token was replayed after
// rotation.
func (s *SessionService) RevokeFamily(ctx context.Context, session *domain.Session) error {
	_, err := s.deactivate(ctx, repository.SessionFilter{ID: session.ID}, revokeReasonRefreshReuse)
	if err != nil {
		observability.RecordRefreshSecurityEvent(ctx, "family_revoke_error")
		return err
	}
	observability.RecordRefreshSecurityEvent(ctx, "family_revoked")
	return nil
}

func (s *SessionService) deactivate(ctx context.Context, filter repository.SessionFilter, reason string) ([]domain.Session, error) {
	affected, err := s.repo.Deactivate(ctx, filter, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}
	for _, session := range affected {
		s.denyAccess(ctx, session.AccessTokenID, session.AccessExpiresAt)
	}
	return affected, nil
}

func (s *SessionService) denyAccess(ctx context.Context, tokenID string, until time.Time) {
	if tokenID == "" {
		return
	}
	if err := s.denylist.Revoke(ctx, tokenID, until); err != nil {
		observability.RecordAccessTokenValidation(ctx, "denylist_write_error", "session")
	}
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}
