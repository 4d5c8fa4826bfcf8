package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
	"github.com/sandeepkv93/erp-identity-core/internal/service"
)

var errInvalidRequest = &service.AppError{Kind: service.KindValidation, Code: "BAD_REQUEST", Message: "invalid payload"}

// writeError renders service failures. Anything that is not an expected
// AppError is logged and answered with an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *service.AppError
	if !errors.As(err, &appErr) || appErr.Kind == service.KindInternal {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
		return
	}
	if appErr.Kind == service.KindRateLimited {
		w.Header().Set("Retry-After", retryAfterSeconds(appErr.RetryAfter))
	}
	response.Error(w, r, statusForKind(appErr.Kind), appErr.Code, appErr.Message, nil)
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// outcome is the low-cardinality status label used for request metrics
// and audit lines.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch service.KindOf(err) {
	case service.KindInternal:
		return "error"
	case service.KindRateLimited:
		return "throttled"
	default:
		return "failure"
	}
}

func reasonOf(err error) string {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}
