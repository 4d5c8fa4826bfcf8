package service

import (
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

type TokenService struct {
	jwtMgr     *security.JWTManager
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type TokenPair struct {
	Access  security.SignedToken
	Refresh security.SignedToken
}

func NewTokenService(jwtMgr *security.JWTManager, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = security.DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = security.DefaultRefreshTTL
	}
	return &TokenService{jwtMgr: jwtMgr, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *TokenService) IssuePair(p security.Principal, sessionID string) (TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(p, sessionID, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(p, sessionID, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *TokenService) IssueAccess(p security.Principal, sessionID string) (security.SignedToken, error) {
	return s.jwtMgr.SignAccessToken(p, sessionID, s.accessTTL)
}

func (s *TokenService) VerifyAccess(raw string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ParseAccessToken(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) VerifyRefresh(raw string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExpiresIn is the access token lifetime in seconds, derived from the same
// TTL the tokens are signed with.
func (s *TokenService) ExpiresIn() int64 {
	return int64(s.accessTTL / time.Second)
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }
