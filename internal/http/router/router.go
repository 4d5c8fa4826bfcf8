package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/health"
	"github.com/sandeepkv93/erp-identity-core/internal/http/handler"
	"github.com/sandeepkv93/erp-identity-core/internal/http/middleware"
	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
)

type Dependencies struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	AdminHandler  *handler.AdminHandler
	TokenVerifier middleware.AccessTokenVerifier
	// Revocations is nil when the access denylist is disabled.
	Revocations       middleware.RevocationChecker
	CORSOrigins       []string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler

const maxBodyBytes = 64 << 10

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	var authLimiter func(http.Handler) http.Handler = dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	authenticated := middleware.AuthMiddleware(dep.TokenVerifier, dep.Revocations)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, "ok", map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, "ready", map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, "ready", map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authLimiter)
				r.Post("/login", dep.AuthHandler.Login)
				r.Post("/otp/send", dep.AuthHandler.SendLoginOTP)
				r.Post("/otp/verify", dep.AuthHandler.VerifyLoginOTP)
				r.Post("/refresh", dep.AuthHandler.Refresh)
				r.Post("/password/otp/send", dep.AuthHandler.SendPasswordResetOTP)
				r.Post("/password/otp/verify", dep.AuthHandler.ResetPasswordWithOTP)
			})
			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.With(middleware.Authorize(domain.RoleAdmin, domain.RoleHR)).Post("/register", dep.AuthHandler.Register)
				r.Post("/logout", dep.AuthHandler.Logout)
				r.With(authLimiter).Post("/password/change", dep.AuthHandler.ChangePassword)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", dep.UserHandler.Me)
			r.Get("/sessions", dep.UserHandler.ListSessions)
			r.Post("/sessions/revoke-others", dep.UserHandler.RevokeOtherSessions)
			r.Delete("/sessions/{id}", dep.UserHandler.RevokeSession)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticated)
			r.Use(middleware.Authorize(domain.RoleAdmin))
			r.Post("/credentials/{id}/deactivate", dep.AdminHandler.DeactivateCredential)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
