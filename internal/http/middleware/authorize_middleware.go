package middleware

import (
	"net/http"
	"strings"

	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
)

// Authorize admits the request only when the authenticated principal's role
// is in roles. It must be mounted after AuthMiddleware.
func Authorize(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
				return
			}
			if _, ok := allowed[strings.ToLower(principal.Role)]; !ok {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role", map[string][]string{"required": roles})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
