package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// wrong issuer or audience, wrong token type and malformed input.
var ErrInvalidToken = errors.New("invalid token")

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Principal is the identity a verified access token resolves to.
type Principal struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Claims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

type SignedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

type JWTManager struct {
	issuer        string
	audience      string
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewJWTManager(issuer, audience, accessSecret, refreshSecret string) *JWTManager {
	return &JWTManager{
		issuer:        issuer,
		audience:      audience,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

func (m *JWTManager) SignAccessToken(p Principal, sessionID string, ttl time.Duration) (SignedToken, error) {
	return m.sign(p, sessionID, TokenTypeAccess, m.accessSecret, ttl)
}

func (m *JWTManager) SignRefreshToken(p Principal, sessionID string, ttl time.Duration) (SignedToken, error) {
	return m.sign(p, sessionID, TokenTypeRefresh, m.refreshSecret, ttl)
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeAccess, m.accessSecret)
}

func (m *JWTManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeRefresh, m.refreshSecret)
}

func (m *JWTManager) sign(p Principal, sessionID, tokenType string, secret []byte, ttl time.Duration) (SignedToken, error) {
	now := m.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		UserID:    p.UserID,
		Email:     p.Email,
		Role:      p.Role,
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(uint64(p.UserID), 10),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: token, ID: jti, ExpiresAt: exp}, nil
}

func (m *JWTManager) parse(raw, tokenType string, secret []byte) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.UserID == 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
