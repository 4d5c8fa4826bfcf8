package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/erp-identity-core/internal/http/middleware"
	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/service"
)

type AdminHandler struct {
	authSvc service.AuthServiceInterface
}

func NewAdminHandler(authSvc service.AuthServiceInterface) *AdminHandler {
	return &AdminHandler{authSvc: authSvc}
}

// DeactivateCredential disables an account and ends all of its sessions.
func (h *AdminHandler) DeactivateCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	idParam := chi.URLParam(r, "id")
	targetID, ok := parsePathID(idParam)
	if !ok {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid credential id", nil)
		return
	}
	err := h.authSvc.Deactivate(r.Context(), principal, targetID)
	emitAudit(r, observability.AuditInput{
		EventName:   "admin.credential.deactivate",
		ActorUserID: userIDString(principal.UserID),
		TargetType:  "credential",
		TargetID:    idParam,
		Action:      "deactivate",
	}, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "credential deactivated", map[string]any{"id": targetID, "active": false})
}
