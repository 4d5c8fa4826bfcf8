package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/http/middleware"
	"github.com/sandeepkv93/erp-identity-core/internal/http/response"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/service"
)

type AuthHandler struct {
	authSvc service.AuthServiceInterface
}

func NewAuthHandler(authSvc service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type registerRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
	Name       string `json:"name" validate:"required,max=255"`
	Role       string `json:"role" validate:"omitempty,oneof=admin hr manager employee"`
	Department string `json:"department" validate:"max=120"`
	Phone      string `json:"phone" validate:"max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type otpSendRequest struct {
	Email string `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone string `json:"phone" validate:"required_without=Email,omitempty,max=32"`
}

type otpVerifyRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required,max=64"`
	Email       string `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"required_without=Email,omitempty,max=32"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

type passwordResetRequest struct {
	otpVerifyRequest
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password" validate:"required,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type userView struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type tokenResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         userView `json:"user"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type otpSendResponse struct {
	ChallengeID string `json:"challenge_id"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	ExpiresIn   int64  `json:"expires_in"`
	Code        string `json:"code,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", outcome(err), time.Since(start))
	}()

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		err = service.ErrInvalidToken
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req registerRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	res, err := h.authSvc.Register(r.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Role:       req.Role,
		Department: req.Department,
		Phone:      req.Phone,
		CreatedBy:  principal,
	}, sessionMeta(r))
	in := observability.AuditInput{
		EventName:   "auth.register",
		ActorUserID: userIDString(principal.UserID),
		TargetType:  "credential",
		Action:      "register",
	}
	if err != nil {
		emitAudit(r, in, err)
		writeError(w, r, err)
		return
	}
	in.TargetID = userIDString(res.User.ID)
	emitAudit(r, in, nil)
	response.JSON(w, r, http.StatusCreated, "registered", newTokenResponse(res))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", outcome(err), time.Since(start))
	}()

	var req loginRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	res, err := h.authSvc.Login(r.Context(), req.Email, req.Password, sessionMeta(r))
	h.respondLogin(w, r, "auth.login.password", res, err)
}

func (h *AuthHandler) SendLoginOTP(w http.ResponseWriter, r *http.Request) {
	h.sendOTP(w, r, "otp_send", "auth.otp.send", h.authSvc.SendLoginOTP)
}

func (h *AuthHandler) VerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "otp_verify", outcome(err), time.Since(start))
	}()

	var req otpVerifyRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	res, err := h.authSvc.VerifyLoginOTP(r.Context(), req.toInput(), sessionMeta(r))
	h.respondLogin(w, r, "auth.login.otp", res, err)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", outcome(err), time.Since(start))
	}()

	var req refreshRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	res, err := h.authSvc.Refresh(r.Context(), req.RefreshToken)
	in := observability.AuditInput{EventName: "auth.refresh", TargetType: "session", Action: "refresh"}
	emitAudit(r, in, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "token refreshed", refreshResponse{
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    res.ExpiresIn,
	})
}

// Logout ends the session of the presented access token. The token itself
// keeps verifying until it expires unless the access denylist is enabled.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", outcome(err), time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	raw, hasRaw := middleware.AccessTokenFromContext(r.Context())
	if !ok || !hasRaw {
		err = service.ErrInvalidToken
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	err = h.authSvc.Logout(r.Context(), raw)
	emitAudit(r, observability.AuditInput{
		EventName:   "auth.logout",
		ActorUserID: userIDString(claims.UserID),
		TargetType:  "session",
		TargetID:    claims.SessionID,
		Action:      "logout",
	}, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "logged out", map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_change", outcome(err), time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims == nil {
		err = service.ErrInvalidToken
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req passwordChangeRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	err = h.authSvc.ChangePassword(r.Context(), claims.UserID, claims.SessionID, req.CurrentPassword, req.NewPassword)
	emitAudit(r, observability.AuditInput{
		EventName:   "auth.password.change",
		ActorUserID: userIDString(claims.UserID),
		TargetType:  "credential",
		TargetID:    userIDString(claims.UserID),
		Action:      "password_change",
	}, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "password changed", nil)
}

func (h *AuthHandler) SendPasswordResetOTP(w http.ResponseWriter, r *http.Request) {
	h.sendOTP(w, r, "password_otp_send", "auth.password.otp.send", h.authSvc.SendPasswordResetOTP)
}

func (h *AuthHandler) ResetPasswordWithOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_otp_verify", outcome(err), time.Since(start))
	}()

	var req passwordResetRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	err = h.authSvc.ResetPasswordWithOTP(r.Context(), service.PasswordResetInput{
		OTPVerifyInput: req.toInput(),
		NewPassword:    req.NewPassword,
	}, middleware.ClientIP(r))
	emitAudit(r, observability.AuditInput{
		EventName:  "auth.password.reset",
		TargetType: "otp_challenge",
		TargetID:   req.ChallengeID,
		Action:     "password_reset",
	}, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "password reset", nil)
}

type otpSender func(ctx context.Context, in service.OTPSendInput) (*service.OTPSendResult, error)

func (h *AuthHandler) sendOTP(w http.ResponseWriter, r *http.Request, endpoint, event string, send otpSender) {
	start := time.Now()
	var err error
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), endpoint, outcome(err), time.Since(start))
	}()

	var req otpSendRequest
	if !bindJSON(w, r, &req) {
		err = errInvalidRequest
		return
	}
	res, err := send(r.Context(), service.OTPSendInput{Email: req.Email, Phone: req.Phone})
	in := observability.AuditInput{EventName: event, TargetType: "otp_challenge", Action: "send"}
	if err != nil {
		emitAudit(r, in, err)
		writeError(w, r, err)
		return
	}
	in.TargetID = res.ChallengeID
	emitAudit(r, in, nil)
	response.JSON(w, r, http.StatusOK, "OTP sent", otpSendResponse{
		ChallengeID: res.ChallengeID,
		Channel:     string(res.Channel),
		Destination: res.Destination,
		ExpiresIn:   res.ExpiresIn,
		Code:        res.Code,
	})
}

func (h *AuthHandler) respondLogin(w http.ResponseWriter, r *http.Request, event string, res *service.LoginResult, err error) {
	in := observability.AuditInput{EventName: event, TargetType: "credential", Action: "login"}
	if err != nil {
		emitAudit(r, in, err)
		writeError(w, r, err)
		return
	}
	in.ActorUserID = userIDString(res.User.ID)
	in.TargetID = in.ActorUserID
	emitAudit(r, in, nil)
	response.JSON(w, r, http.StatusOK, "login successful", newTokenResponse(res))
}

func newTokenResponse(res *service.LoginResult) tokenResponse {
	return tokenResponse{
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    res.ExpiresIn,
		User:         newUserView(res.User),
	}
}

func newUserView(c *domain.Credential) userView {
	if c == nil {
		return userView{}
	}
	return userView{ID: c.ID, Email: c.Email, Name: c.Name, Role: c.Role, Department: c.Department}
}

func (req otpVerifyRequest) toInput() service.OTPVerifyInput {
	return service.OTPVerifyInput{
		ChallengeID: req.ChallengeID,
		Email:       req.Email,
		Phone:       req.Phone,
		Code:        req.Code,
	}
}

func sessionMeta(r *http.Request) service.SessionMeta {
	return service.SessionMeta{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}

func emitAudit(r *http.Request, in observability.AuditInput, err error) {
	in.Outcome = outcome(err)
	if err != nil {
		in.Reason = reasonOf(err)
	} else if in.Reason == "" {
		in.Reason = "ok"
	}
	observability.EmitAudit(r, in)
}

func userIDString(id uint) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}
