package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/erp-identity-core/internal/config"
	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/repository"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

type AuthService struct {
	cfg        *config.Config
	hasher     *security.PasswordHasher
	tokenSvc   *TokenService
	sessionSvc *SessionService
	otpSvc     *OTPService
	credRepo   repository.CredentialRepository
	abuseGuard AuthAbuseGuard
	logger     *slog.Logger

	refreshGroup singleflight.Group
	dummyHash    string
	now          func() time.Time
}

type LoginResult struct {
	User         *domain.Credential
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	SessionID    string
}

type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	Role       string
	Department string
	Phone      string
	CreatedBy  security.Principal
}

type OTPSendInput struct {
	Email string
	Phone string
}

type OTPSendResult struct {
	ChallengeID string
	Channel     domain.OTPChannel
	Destination string
	ExpiresIn   int64
	// Code is only populated when AUTH_OTP_RETURN_CODE is enabled.
	Code string
}

type OTPVerifyInput struct {
	ChallengeID string
	Email       string
	Phone       string
	Code        string
}

type PasswordResetInput struct {
	OTPVerifyInput
	NewPassword string
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

var (
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
	specialRe   = regexp.MustCompile(`[^A-Za-z0-9]`)
)

func NewAuthService(
	cfg *config.Config,
	hasher *security.PasswordHasher,
	tokenSvc *TokenService,
	sessionSvc *SessionService,
	otpSvc *OTPService,
	credRepo repository.CredentialRepository,
	abuseGuard AuthAbuseGuard,
	logger *slog.Logger,
) *AuthService {
	if abuseGuard == nil {
		abuseGuard = NewNoopAuthAbuseGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	// Unknown emails still pay for one bcrypt comparison.
	dummy, _ := hasher.Hash("erp-identity-timing-equalizer")
	return &AuthService{
		cfg:        cfg,
		hasher:     hasher,
		tokenSvc:   tokenSvc,
		sessionSvc: sessionSvc,
		otpSvc:     otpSvc,
		credRepo:   credRepo,
		abuseGuard: abuseGuard,
		logger:     logger,
		dummyHash:  dummy,
		now:        time.Now,
	}
}

// Register creates a credential plus its employee profile on behalf of an
// authenticated admin or HR caller and signs the new account in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta SessionMeta) (_ *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.register")
	defer func() { observability.EndSpan(span, err) }()

	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	role := strings.TrimSpace(strings.ToLower(in.Role))
	if role == "" {
		role = domain.RoleEmployee
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	if role == domain.RoleAdmin && in.CreatedBy.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	taken, err := s.credRepo.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		observability.RecordRegistration(ctx, "email_taken")
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	department := strings.TrimSpace(in.Department)
	cred := &domain.Credential{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Department:   department,
		Active:       true,
	}
	if in.CreatedBy.UserID != 0 {
		creator := in.CreatedBy.UserID
		cred.CreatedBy = &creator
	}
	profile := &domain.EmployeeProfile{
		Email:      email,
		FullName:   name,
		Department: department,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		profile.Phone = &phone
	}

	if err := s.credRepo.CreateWithProfile(ctx, cred, profile); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			observability.RecordRegistration(ctx, "conflict")
			return nil, ErrConflict.withCause(err)
		}
		observability.RecordRegistration(ctx, "error")
		return nil, err
	}
	observability.RecordRegistration(ctx, "success")
	return s.startSession(ctx, cred, meta)
}

// Login authenticates with email and password. Every failure collapses into
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, meta SessionMeta) (_ *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.login", attribute.String("auth.method", "password"))
	defer func() { observability.EndSpan(span, err) }()

	email = normalizeEmail(email)
	attempt := AuthAttempt{Scope: AuthAbuseScopeLogin, Identity: email, IP: meta.IP}
	if err := s.checkAbuse(ctx, attempt); err != nil {
		observability.RecordAuthLogin(ctx, "password", "throttled")
		return nil, err
	}

	cred, err := s.credRepo.FindActiveByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, err
	}
	if cred == nil {
		s.hasher.Verify(password, s.dummyHash)
		s.registerFailure(ctx, attempt)
		observability.RecordAuthLogin(ctx, "password", "failure")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, cred.PasswordHash) {
		s.registerFailure(ctx, attempt)
		observability.RecordAuthLogin(ctx, "password", "failure")
		return nil, ErrInvalidCredentials
	}
	s.resetAbuse(ctx, attempt)

	if err := s.credRepo.TouchLastLogin(ctx, cred.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	res, err := s.startSession(ctx, cred, meta)
	if err != nil {
		observability.RecordAuthLogin(ctx, "password", "error")
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "password", "success")
	return res, nil
}

func (s *AuthService) SendLoginOTP(ctx context.Context, in OTPSendInput) (*OTPSendResult, error) {
	return s.sendOTP(ctx, in, domain.OTPPurposeLogin)
}

func (s *AuthService) SendPasswordResetOTP(ctx context.Context, in OTPSendInput) (*OTPSendResult, error) {
	return s.sendOTP(ctx, in, domain.OTPPurposePasswordReset)
}

// VerifyLoginOTP consumes a LOGIN challenge and signs the account in.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, in OTPVerifyInput, meta SessionMeta) (_ *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.login", attribute.String("auth.method", "otp"))
	defer func() { observability.EndSpan(span, err) }()

	cred, err := s.verifyOTP(ctx, in, domain.OTPPurposeLogin, meta.IP)
	if err != nil {
		observability.RecordAuthLogin(ctx, "otp", outcomeFor(err))
		return nil, err
	}
	if err := s.credRepo.TouchLastLogin(ctx, cred.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	res, err := s.startSession(ctx, cred, meta)
	if err != nil {
		observability.RecordAuthLogin(ctx, "otp", "error")
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "otp", "success")
	return res, nil
}

// ResetPasswordWithOTP consumes a PASSWORD_RESET challenge, replaces the
// password and ends every session of the account.
func (s *AuthService) ResetPasswordWithOTP(ctx context.Context, in PasswordResetInput, ip string) error {
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}
	cred, err := s.verifyOTP(ctx, in.OTPVerifyInput, domain.OTPPurposePasswordReset, ip)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, cred.ID, in.NewPassword); err != nil {
		return err
	}
	if _, err := s.sessionSvc.InvalidateAllForUser(ctx, cred.ID, revokeReasonPasswordReset); err != nil {
		return err
	}
	return nil
}

// ChangePassword replaces the password of an authenticated account after
// re-checking the current one. The calling session survives; every other
// session of the account ends.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, sessionID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	cred, err := s.credRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, cred.PasswordHash) {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return ErrSamePassword
	}
	if err := s.setPassword(ctx, cred.ID, newPassword); err != nil {
		return err
	}
	if _, err := s.sessionSvc.InvalidateOthersByID(ctx, cred.ID, sessionID, revokeReasonPasswordChange); err != nil {
		return err
	}
	return nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the refresh token is replaced too, and a replayed one ends the
// session. Concurrent refreshes of one token share a single result.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (_ *RefreshResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.refresh")
	defer func() { observability.EndSpan(span, err) }()

	key := security.HashToken(rawRefresh, s.cfg.TokenPepper)
	v, err, shared := s.refreshGroup.Do(key, func() (any, error) {
		return s.refresh(ctx, rawRefresh)
	})
	if shared {
		observability.RecordRefreshSecurityEvent(ctx, "coalesced")
	}
	if err != nil {
		observability.RecordAuthRefresh(ctx, outcomeFor(err))
		return nil, err
	}
	observability.RecordAuthRefresh(ctx, "success")
	res := *v.(*RefreshResult)
	return &res, nil
}

func (s *AuthService) refresh(ctx context.Context, rawRefresh string) (*RefreshResult, error) {
	claims, err := s.tokenSvc.VerifyRefresh(rawRefresh)
	if err != nil {
		return nil, err
	}
	cred, err := s.credRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if !cred.Active {
		return nil, ErrAccountNotFound
	}
	principal := principalOf(cred)

	if !s.cfg.AuthRefreshRotationEnabled {
		access, err := s.tokenSvc.IssueAccess(principal, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if claims.SessionID != "" {
			if err := s.sessionSvc.AttachAccessToken(ctx, claims.SessionID, access); err != nil {
				return nil, err
			}
		}
		return &RefreshResult{AccessToken: access.Token, ExpiresIn: s.tokenSvc.ExpiresIn()}, nil
	}

	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	session, err := s.sessionSvc.FindForRefresh(ctx, claims.SessionID, cred.ID)
	if err != nil {
		return nil, err
	}
	if !s.sessionSvc.PresentedRefreshMatches(session, rawRefresh) {
		s.logger.WarnContext(ctx, "refresh token reuse detected",
			"user_id", cred.ID,
			"session_id", session.ID,
		)
		if err := s.sessionSvc.RevokeFamily(ctx, session); err != nil {
			return nil, err
		}
		return nil, ErrInvalidToken
	}

	pair, err := s.tokenSvc.IssuePair(principal, session.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionSvc.Rotate(ctx, session, rawRefresh, pair); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			s.logger.WarnContext(ctx, "refresh token rotated concurrently, revoking session",
				"user_id", cred.ID,
				"session_id", session.ID,
			)
			if revokeErr := s.sessionSvc.RevokeFamily(ctx, session); revokeErr != nil {
				s.logger.WarnContext(ctx, "failed to revoke session after stale rotation",
					"user_id", cred.ID,
					"session_id", session.ID,
					"error", revokeErr,
				)
			}
		}
		return nil, err
	}
	observability.RecordRefreshSecurityEvent(ctx, "rotated")
	return &RefreshResult{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		ExpiresIn:    s.tokenSvc.ExpiresIn(),
	}, nil
}

// Logout deactivates the session of the presented access token. The token
// itself stays verifiable until expiry unless the denylist is enabled.
func (s *AuthService) Logout(ctx context.Context, rawAccess string) error {
	if err := s.sessionSvc.InvalidateByAccessToken(ctx, rawAccess); err != nil {
		observability.RecordAuthLogout(ctx, outcomeFor(err))
		return err
	}
	observability.RecordAuthLogout(ctx, "success")
	return nil
}

// ParsePrincipal verifies an access token and returns who it belongs to.
func (s *AuthService) ParsePrincipal(rawAccess string) (security.Principal, error) {
	claims, err := s.tokenSvc.VerifyAccess(rawAccess)
	if err != nil {
		return security.Principal{}, err
	}
	return claims.Principal(), nil
}

type AccountView struct {
	Credential *domain.Credential
	Profile    *domain.EmployeeProfile
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*AccountView, error) {
	cred, err := s.credRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	profile, err := s.credRepo.FindProfile(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, err
	}
	return &AccountView{Credential: cred, Profile: profile}, nil
}

// Deactivate disables an account and ends its sessions. Admins cannot
// deactivate themselves.
func (s *AuthService) Deactivate(ctx context.Context, actor security.Principal, targetID uint) error {
	if targetID == 0 {
		return ErrInvalidIdentity
	}
	if actor.UserID == targetID {
		return newValidationError("SELF_DEACTIVATION", "cannot deactivate your own account")
	}
	if err := s.credRepo.Deactivate(ctx, targetID, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	_, err := s.sessionSvc.InvalidateAllForUser(ctx, targetID, revokeReasonDeactivated)
	return err
}

func (s *AuthService) sendOTP(ctx context.Context, in OTPSendInput, purpose domain.OTPPurpose) (*OTPSendResult, error) {
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	if email == "" && phone == "" {
		return nil, ErrMissingContact
	}
	cred, profile, err := s.credRepo.FindActiveByEmailOrPhone(ctx, email, phone)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		observability.RecordOTPEvent(ctx, string(purpose), "send", "unknown_account")
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	channel, destination := domain.OTPChannelEmail, cred.Email
	if email == "" && profile != nil && profile.Phone != nil {
		channel, destination = domain.OTPChannelSMS, *profile.Phone
	}
	issued, err := s.otpSvc.Issue(ctx, cred.ID, purpose, channel, destination)
	if err != nil {
		return nil, err
	}
	res := &OTPSendResult{
		ChallengeID: issued.ChallengeID,
		Channel:     issued.Channel,
		Destination: MaskDestination(issued.Destination),
		ExpiresIn:   int64(issued.TTL / time.Second),
	}
	if s.cfg.AuthOTPReturnCode {
		res.Code = issued.Code
	}
	return res, nil
}

func (s *AuthService) verifyOTP(ctx context.Context, in OTPVerifyInput, purpose domain.OTPPurpose, ip string) (*domain.Credential, error) {
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	if email == "" && phone == "" {
		return nil, ErrMissingContact
	}
	identity := email
	if identity == "" {
		identity = phone
	}
	attempt := AuthAttempt{Scope: AuthAbuseScopeOTPVerify, Identity: identity, IP: ip, ChallengeID: in.ChallengeID}
	if err := s.checkAbuse(ctx, attempt); err != nil {
		return nil, err
	}
	cred, _, err := s.credRepo.FindActiveByEmailOrPhone(ctx, email, phone)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.otpSvc.Verify(ctx, strings.TrimSpace(in.ChallengeID), cred.ID, strings.TrimSpace(in.Code), purpose)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.registerFailure(ctx, attempt)
		return nil, ErrInvalidOTP
	}
	s.resetAbuse(ctx, attempt)
	return cred, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID uint, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.credRepo.UpdatePassword(ctx, userID, hash, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (s *AuthService) startSession(ctx context.Context, cred *domain.Credential, meta SessionMeta) (*LoginResult, error) {
	sessionID := uuid.NewString()
	pair, err := s.tokenSvc.IssuePair(principalOf(cred), sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	if _, err := s.sessionSvc.Create(ctx, sessionID, cred.ID, pair, meta); err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         cred,
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		ExpiresIn:    s.tokenSvc.ExpiresIn(),
		SessionID:    sessionID,
	}, nil
}

func (s *AuthService) checkAbuse(ctx context.Context, attempt AuthAttempt) error {
	if !s.cfg.AuthAbuseProtectionEnabled {
		return nil
	}
	scope := attempt.Scope
	retry, err := s.abuseGuard.Check(ctx, attempt)
	if err != nil {
		// The guard is advisory; a backend outage must not block sign-in.
		observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "check", "error")
		s.logger.WarnContext(ctx, "auth abuse guard check failed", "scope", string(scope), "error", err)
		return nil
	}
	if retry > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "check", "throttled")
		return cooldownError(retry)
	}
	return nil
}

func (s *AuthService) registerFailure(ctx context.Context, attempt AuthAttempt) {
	if !s.cfg.AuthAbuseProtectionEnabled {
		return
	}
	scope := attempt.Scope
	delay, err := s.abuseGuard.RegisterFailure(ctx, attempt)
	if err != nil {
		observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "register_failure", "error")
		return
	}
	observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "register_failure", "success")
	if delay > 0 {
		observability.RecordAuthAbuseCooldown(ctx, string(scope), "register_failure", delay)
	}
}

func (s *AuthService) resetAbuse(ctx context.Context, attempt AuthAttempt) {
	if !s.cfg.AuthAbuseProtectionEnabled {
		return
	}
	if err := s.abuseGuard.Reset(ctx, attempt); err != nil {
		observability.RecordAuthAbuseGuardEvent(ctx, string(attempt.Scope), "reset", "error")
	}
}

func principalOf(cred *domain.Credential) security.Principal {
	return security.Principal{UserID: cred.ID, Email: cred.Email, Role: cred.Role}
}

func outcomeFor(err error) string {
	if err == nil {
		return "success"
	}
	return string(KindOf(err))
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 || len(password) > 72 || !uppercaseRe.MatchString(password) ||
		!lowercaseRe.MatchString(password) || !digitRe.MatchString(password) || !specialRe.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}
