package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return s.revoked[tokenID], s.err
}

func newTestJWTManager() *security.JWTManager {
	return security.NewJWTManager("erp-identity-core", "erp-api", "access-secret-for-tests-0123456789", "refresh-secret-for-tests-0123456789")
}

func signAccess(t *testing.T, mgr *security.JWTManager, ttl time.Duration) security.SignedToken {
	t.Helper()
	tok, err := mgr.SignAccessToken(security.Principal{UserID: 9, Email: "alice@erp.test", Role: "manager"}, "sess-1", ttl)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return tok
}

type jwtVerifier struct{ mgr *security.JWTManager }

func (v jwtVerifier) VerifyAccess(raw string) (*security.Claims, error) {
	return v.mgr.ParseAccessToken(raw)
}

func serveAuth(t *testing.T, mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.UserID != 9 || p.Email != "alice@erp.test" || p.Role != "manager" {
			t.Fatalf("unexpected principal in context: %+v ok=%v", p, ok)
		}
		if raw, ok := AccessTokenFromContext(r.Context()); !ok || raw == "" {
			t.Fatal("expected raw access token in context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, called
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	return env.Error.Code
}

func TestAuthMiddlewareAttachesPrincipal(t *testing.T) {
	mgr := newTestJWTManager()
	tok := signAccess(t, mgr, time.Hour)

	for _, header := range []string{"Bearer " + tok.Token, "bearer " + tok.Token, "  BEARER   " + tok.Token} {
		rr, called := serveAuth(t, AuthMiddleware(jwtVerifier{mgr}, nil), header)
		if !called || rr.Code != http.StatusNoContent {
			t.Fatalf("header %q: expected pass-through, got %d", header, rr.Code)
		}
	}
}

func TestAuthMiddlewareRejectsUniformly(t *testing.T) {
	mgr := newTestJWTManager()
	expired := signAccess(t, mgr, -time.Minute)
	other := security.NewJWTManager("erp-identity-core", "erp-api", "some-other-access-secret-000000000", "refresh-secret-for-tests-0123456789")
	forged := signAccess(t, other, time.Hour)
	refresh, err := mgr.SignRefreshToken(security.Principal{UserID: 9, Role: "manager"}, "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"expired", "Bearer " + expired.Token},
		{"wrong_secret", "Bearer " + forged.Token},
		{"malformed", "Bearer not.a.jwt"},
		{"refresh_token", "Bearer " + refresh.Token},
	}
	var bodies []string
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr, called := serveAuth(t, AuthMiddleware(jwtVerifier{mgr}, nil), tc.header)
			if called {
				t.Fatal("downstream handler must not run")
			}
			if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "INVALID_TOKEN" {
				t.Fatalf("expected uniform 401, got %d %s", rr.Code, rr.Body.String())
			}
			var env map[string]any
			_ = json.Unmarshal(rr.Body.Bytes(), &env)
			bodies = append(bodies, env["message"].(string))
		})
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Fatalf("expected identical messages, got %v", bodies)
		}
	}
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	mgr := newTestJWTManager()
	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer    "} {
		rr, called := serveAuth(t, AuthMiddleware(jwtVerifier{mgr}, nil), header)
		if called || rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
	}
}

func TestAuthMiddlewareDenylist(t *testing.T) {
	mgr := newTestJWTManager()
	tok := signAccess(t, mgr, time.Hour)

	rr, called := serveAuth(t, AuthMiddleware(jwtVerifier{mgr}, stubRevocations{revoked: map[string]bool{tok.ID: true}}), "Bearer "+tok.Token)
	if called || rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rr.Code)
	}

	rr, called = serveAuth(t, AuthMiddleware(jwtVerifier{mgr}, stubRevocations{revoked: map[string]bool{}}), "Bearer "+tok.Token)
	if !called || rr.Code != http.StatusNoContent {
		t.Fatalf("expected unrevoked token to pass, got %d", rr.Code)
	}

	rr, called = serveAuth(t, AuthMiddleware(jwtVerifier{mgr}, stubRevocations{err: errors.New("redis down")}), "Bearer "+tok.Token)
	if !called || rr.Code != http.StatusNoContent {
		t.Fatalf("expected denylist outage to fall back to signature check, got %d", rr.Code)
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		claims   *security.Claims
		roles    []string
		wantCode int
	}{
		{"no_principal", nil, []string{"admin"}, http.StatusUnauthorized},
		{"role_denied", &security.Claims{UserID: 3, Role: "employee"}, []string{"admin", "hr"}, http.StatusForbidden},
		{"role_allowed", &security.Claims{UserID: 3, Role: "hr"}, []string{"admin", "hr"}, http.StatusNoContent},
		{"case_insensitive", &security.Claims{UserID: 1, Role: "admin"}, []string{"ADMIN"}, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := Authorize(tc.roles...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
			if tc.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), ClaimsContextKey, tc.claims))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if called != (tc.wantCode == http.StatusNoContent) {
				t.Fatalf("downstream called=%v for status %d", called, rr.Code)
			}
		})
	}
}
