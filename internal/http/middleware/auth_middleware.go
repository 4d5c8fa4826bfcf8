package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

type contextKey string

const (
	ClaimsContextKey      contextKey = "claims"
	AccessTokenContextKey contextKey = "access_token"
)

type AccessTokenVerifier interface {
	VerifyAccess(raw string) (*security.Claims, error)
}

// RevocationChecker reports whether a token id (jti) has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthMiddleware verifies the bearer access token and attaches its claims to
// the request context. Every verification failure yields the same 401.
// A nil revocations checker skips the denylist lookup.
func AuthMiddleware(verifier AccessTokenVerifier, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := BearerToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(ctx, "missing", "header")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			claims, err := verifier.VerifyAccess(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(ctx, "invalid", "header")
				response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token", nil)
				return
			}
			if revocations != nil && claims.ID != "" {
				revoked, err := revocations.IsRevoked(ctx, claims.ID)
				switch {
				case err != nil:
					// Denylist outages degrade to signature-only verification.
					slog.WarnContext(ctx, "access denylist lookup failed", "error", err)
					observability.RecordAccessTokenValidation(ctx, "denylist_error", "denylist")
				case revoked:
					observability.RecordAccessTokenValidation(ctx, "revoked", "denylist")
					response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token", nil)
					return
				}
			}
			observability.RecordAccessTokenValidation(ctx, "ok", "header")
			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, AccessTokenContextKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header, or returns "".
func BearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func PrincipalFromContext(ctx context.Context) (security.Principal, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c == nil {
		return security.Principal{}, false
	}
	return c.Principal(), true
}

func AccessTokenFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(AccessTokenContextKey).(string)
	return raw, ok && raw != ""
}
