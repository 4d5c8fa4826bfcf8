package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/http/middleware"
	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/service"
)

type UserHandler struct {
	authSvc    service.AuthServiceInterface
	sessionSvc service.SessionServiceInterface
}

func NewUserHandler(authSvc service.AuthServiceInterface, sessionSvc service.SessionServiceInterface) *UserHandler {
	return &UserHandler{authSvc: authSvc, sessionSvc: sessionSvc}
}

type profileView struct {
	FullName   string  `json:"full_name"`
	Department string  `json:"department"`
	Phone      *string `json:"phone,omitempty"`
}

type meResponse struct {
	User    *domain.Credential `json:"user"`
	Profile *profileView       `json:"profile,omitempty"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	view, err := h.authSvc.Me(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := meResponse{User: view.Credential}
	if p := view.Profile; p != nil {
		out.Profile = &profileView{FullName: p.FullName, Department: p.Department, Phone: p.Phone}
	}
	response.JSON(w, r, http.StatusOK, "ok", out)
}

func (h *UserHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	sessions, err := h.sessionSvc.ListActive(r.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "ok", map[string]any{"sessions": sessions})
}

func (h *UserHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	raw, hasRaw := middleware.AccessTokenFromContext(r.Context())
	if !ok || !hasRaw {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	count, err := h.sessionSvc.InvalidateAllExcept(r.Context(), claims.UserID, raw)
	emitAudit(r, observability.AuditInput{
		EventName:   "session.revoke_others",
		ActorUserID: userIDString(claims.UserID),
		TargetType:  "credential",
		TargetID:    userIDString(claims.UserID),
		Action:      "revoke_others",
	}, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "other sessions revoked", map[string]int64{"revoked_count": count})
}

func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if sessionID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	status, err := h.sessionSvc.InvalidateByID(r.Context(), claims.UserID, sessionID)
	emitAudit(r, observability.AuditInput{
		EventName:   "session.revoke",
		ActorUserID: userIDString(claims.UserID),
		TargetType:  "session",
		TargetID:    sessionID,
		Action:      "revoke",
		Reason:      status,
	}, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "session revoked", map[string]string{"session_id": sessionID, "status": status})
}
