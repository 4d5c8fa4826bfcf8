package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/config"
	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/repository"
	"github.com/sandeepkv93/erp-identity-core/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type authServiceFixture struct {
	cfg      *config.Config
	db       *gorm.DB
	hasher   *security.PasswordHasher
	tokens   *TokenService
	sessions *SessionService
	otp      *OTPService
	denylist *InMemoryTokenDenylist
	credRepo repository.CredentialRepository
	auth     *AuthService
	admin    security.Principal
	meta     SessionMeta
}

func newServiceDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&domain.Credential{}, &domain.EmployeeProfile{}, &domain.OTPChallenge{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAuthServiceFixture(t *testing.T, mutate ...func(*config.Config)) *authServiceFixture {
	t.Helper()
	cfg := &config.Config{
		Env:                        "test",
		JWTIssuer:                  "erp-identity-core",
		JWTAudience:                "erp-api",
		JWTAccessSecret:            "abcdefghijklmnopqrstuvwxyz123456",
		JWTRefreshSecret:           "abcdefghijklmnopqrstuvwxyz654321",
		TokenPepper:                "pepper-1234567890",
		BcryptCost:                 4,
		OTPTTL:                     10 * time.Minute,
		AuthOTPReturnCode:          true,
		AuthRefreshRotationEnabled: true,
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	db := newServiceDBForTest(t)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	tokens := NewTokenService(jwtMgr, time.Hour, 7*24*time.Hour)
	denylist := NewInMemoryTokenDenylist()
	sessions := NewSessionService(repository.NewSessionRepository(db), denylist, cfg.TokenPepper)
	otp := NewOTPService(repository.NewOTPChallengeRepository(db), nil, cfg.OTPTTL, cfg.TokenPepper)
	credRepo := repository.NewCredentialRepository(db)
	guard := NewInMemoryAuthAbuseGuard(AuthAbusePolicyFromConfig(cfg))
	auth := NewAuthService(cfg, hasher, tokens, sessions, otp, credRepo, guard, nil)

	fx := &authServiceFixture{
		cfg:      cfg,
		db:       db,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		otp:      otp,
		denylist: denylist,
		credRepo: credRepo,
		auth:     auth,
		meta:     SessionMeta{IP: "10.0.0.1", UserAgent: "go-test"},
	}
	admin := fx.seedAccount(t, "admin@x.io", "Admin#Pass1", domain.RoleAdmin, "")
	fx.admin = principalOf(admin)
	return fx
}

func (fx *authServiceFixture) seedAccount(t *testing.T, email, password, role, phone string) *domain.Credential {
	t.Helper()
	hash, err := fx.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cred := &domain.Credential{Email: email, PasswordHash: hash, Name: email, Role: role, Active: true}
	profile := &domain.EmployeeProfile{Email: email, FullName: email}
	if phone != "" {
		profile.Phone = &phone
	}
	if err := fx.credRepo.CreateWithProfile(context.Background(), cred, profile); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return cred
}

func (fx *authServiceFixture) register(t *testing.T, email, password string) *LoginResult {
	t.Helper()
	res, err := fx.auth.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  password,
		Name:      "Alice",
		Role:      domain.RoleEmployee,
		CreatedBy: fx.admin,
	}, fx.meta)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func TestAuthServiceRegisterThenLogin(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()

	reg := fx.register(t, "Alice@X.io", "Secret123!")
	if reg.ExpiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", reg.ExpiresIn)
	}
	p, err := fx.auth.ParsePrincipal(reg.AccessToken)
	if err != nil {
		t.Fatalf("parse principal: %v", err)
	}
	if p.Email != "alice@x.io" || p.Role != domain.RoleEmployee || p.UserID != reg.User.ID {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if reg.User.CreatedBy == nil || *reg.User.CreatedBy != fx.admin.UserID {
		t.Fatalf("expected created_by to be recorded, got %+v", reg.User.CreatedBy)
	}

	login, err := fx.auth.Login(ctx, "alice@x.io", "Secret123!", fx.meta)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	lp, _ := fx.auth.ParsePrincipal(login.AccessToken)
	if lp != p {
		t.Fatalf("expected same principal from login, got %+v want %+v", lp, p)
	}

	var stored domain.Credential
	fx.db.First(&stored, reg.User.ID)
	if stored.PasswordHash == "Secret123!" || security.CheckHashFormat(stored.PasswordHash) != nil {
		t.Fatalf("expected bcrypt digest to be stored, got %q", stored.PasswordHash)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be stamped")
	}
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	base := RegisterInput{Email: "bob@x.io", Password: "Secret123!", Name: "Bob", CreatedBy: fx.admin}

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"invalid email", func(in *RegisterInput) { in.Email = "bad-email" }, ErrInvalidEmail},
		{"missing name", func(in *RegisterInput) { in.Name = "  " }, ErrInvalidName},
		{"weak password", func(in *RegisterInput) { in.Password = "weak" }, ErrWeakPassword},
		{"unknown role", func(in *RegisterInput) { in.Role = "ceo" }, ErrInvalidRole},
		{"hr creating admin", func(in *RegisterInput) {
			in.Role = domain.RoleAdmin
			in.CreatedBy = security.Principal{UserID: 99, Role: domain.RoleHR}
		}, ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if _, err := fx.auth.Register(ctx, in, fx.meta); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthServiceRegisterDuplicateEmailAcrossTables(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")

	_, err := fx.auth.Register(ctx, RegisterInput{Email: "ALICE@x.io", Password: "Other123!", Name: "Alice 2", CreatedBy: fx.admin}, fx.meta)
	if !errors.Is(err, ErrEmailTaken) || KindOf(err) != KindValidation {
		t.Fatalf("expected ErrEmailTaken validation error, got %v", err)
	}

	// A profile whose email differs from its credential still reserves it.
	cred := &domain.Credential{Email: "legacy-login@x.io", PasswordHash: "x", Name: "Legacy", Role: domain.RoleEmployee, Active: true}
	if err := fx.credRepo.CreateWithProfile(ctx, cred, &domain.EmployeeProfile{Email: "legacy@x.io", FullName: "Legacy"}); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	_, err = fx.auth.Register(ctx, RegisterInput{Email: "legacy@x.io", Password: "Secret123!", Name: "New", CreatedBy: fx.admin}, fx.meta)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected profile email to be reserved, got %v", err)
	}
}

func TestAuthServiceLoginFailuresAreIndistinguishable(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")

	_, wrongPassword := fx.auth.Login(ctx, "alice@x.io", "Wrong123!", fx.meta)
	_, unknownEmail := fx.auth.Login(ctx, "nobody@x.io", "Secret123!", fx.meta)
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("expected identical messages, got %q / %q", wrongPassword, unknownEmail)
	}
}

func TestAuthServiceLoginAbuseGuardThrottles(t *testing.T) {
	fx := newAuthServiceFixture(t, func(cfg *config.Config) {
		cfg.AuthAbuseProtectionEnabled = true
		cfg.AuthAbuseFreeAttempts = 1
		cfg.AuthAbuseBaseDelay = time.Minute
		cfg.AuthAbuseMultiplier = 2
		cfg.AuthAbuseMaxDelay = time.Hour
		cfg.AuthAbuseResetWindow = time.Hour
	})
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")

	for i := 0; i < 2; i++ {
		if _, err := fx.auth.Login(ctx, "alice@x.io", "Wrong123!", fx.meta); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	_, err := fx.auth.Login(ctx, "alice@x.io", "Secret123!", fx.meta)
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind != KindRateLimited || appErr.RetryAfter <= 0 {
		t.Fatalf("expected cooldown error, got %v", err)
	}
}

func TestAuthServiceOTPLoginFlow(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")

	sent, err := fx.auth.SendLoginOTP(ctx, OTPSendInput{Email: "alice@x.io"})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}
	if len(sent.Code) != 6 || sent.ExpiresIn != 600 || sent.Channel != domain.OTPChannelEmail {
		t.Fatalf("unexpected send result: %+v", sent)
	}

	wrong := "100000"
	if sent.Code == wrong {
		wrong = "100001"
	}
	in := OTPVerifyInput{ChallengeID: sent.ChallengeID, Email: "alice@x.io", Code: wrong}
	if _, err := fx.auth.VerifyLoginOTP(ctx, in, fx.meta); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
	if ErrInvalidOTP.Message != "invalid or expired OTP" || KindOf(ErrInvalidOTP) != KindValidation {
		t.Fatalf("unexpected invalid otp error shape: %+v", ErrInvalidOTP)
	}

	in.Code = sent.Code
	res, err := fx.auth.VerifyLoginOTP(ctx, in, fx.meta)
	if err != nil {
		t.Fatalf("expected wrong attempt not to consume challenge: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected tokens after otp login")
	}
	if _, err := fx.auth.VerifyLoginOTP(ctx, in, fx.meta); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected reused code to fail, got %v", err)
	}
}

func TestAuthServiceOTPByPhoneUsesSMS(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.seedAccount(t, "carol@x.io", "Secret123!", domain.RoleManager, "+15550100")

	sent, err := fx.auth.SendLoginOTP(ctx, OTPSendInput{Phone: "+15550100"})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}
	if sent.Channel != domain.OTPChannelSMS || !strings.HasSuffix(sent.Destination, "0100") {
		t.Fatalf("unexpected sms send result: %+v", sent)
	}
	if _, err := fx.auth.VerifyLoginOTP(ctx, OTPVerifyInput{ChallengeID: sent.ChallengeID, Phone: "+15550100", Code: sent.Code}, fx.meta); err != nil {
		t.Fatalf("verify by phone: %v", err)
	}
}

func TestAuthServiceOTPSendUnknownAccount(t *testing.T) {
	fx := newAuthServiceFixture(t)
	_, err := fx.auth.SendLoginOTP(context.Background(), OTPSendInput{Email: "ghost@x.io"})
	if !errors.Is(err, ErrAccountNotFound) || KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fx.auth.SendLoginOTP(context.Background(), OTPSendInput{}); !errors.Is(err, ErrMissingContact) {
		t.Fatalf("expected ErrMissingContact, got %v", err)
	}
}

func TestAuthServiceOTPCodeWithheldWhenReturnDisabled(t *testing.T) {
	fx := newAuthServiceFixture(t, func(cfg *config.Config) { cfg.AuthOTPReturnCode = false })
	fx.register(t, "alice@x.io", "Secret123!")

	sent, err := fx.auth.SendLoginOTP(context.Background(), OTPSendInput{Email: "alice@x.io"})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}
	if sent.Code != "" || sent.ChallengeID == "" {
		t.Fatalf("expected challenge without code, got %+v", sent)
	}
}

func TestAuthServiceOTPExpiry(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")

	sent, err := fx.auth.SendLoginOTP(ctx, OTPSendInput{Email: "alice@x.io"})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}
	fx.otp.now = func() time.Time { return time.Now().Add(601 * time.Second) }

	_, err = fx.auth.VerifyLoginOTP(ctx, OTPVerifyInput{ChallengeID: sent.ChallengeID, Email: "alice@x.io", Code: sent.Code}, fx.meta)
	if !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected expired otp to fail, got %v", err)
	}
}

func TestAuthServiceOTPPurposeIsolation(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")

	sent, err := fx.auth.SendLoginOTP(ctx, OTPSendInput{Email: "alice@x.io"})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}
	err = fx.auth.ResetPasswordWithOTP(ctx, PasswordResetInput{
		OTPVerifyInput: OTPVerifyInput{ChallengeID: sent.ChallengeID, Email: "alice@x.io", Code: sent.Code},
		NewPassword:    "Changed123!",
	}, fx.meta.IP)
	if !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected login challenge to be rejected for reset, got %v", err)
	}
}

func TestAuthServiceConcurrentOTPVerifySingleSuccess(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	fx.register(t, "alice@x.io", "Secret123!")
	sent, err := fx.auth.SendLoginOTP(ctx, OTPSendInput{Email: "alice@x.io"})
	if err != nil {
		t.Fatalf("send otp: %v", err)
	}

	const workers = 12
	var wins, invalid atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := fx.auth.VerifyLoginOTP(ctx, OTPVerifyInput{ChallengeID: sent.ChallengeID, Email: "alice@x.io", Code: sent.Code}, fx.meta)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidOTP):
				invalid.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 || invalid.Load() != workers-1 {
		t.Fatalf("expected 1 success and %d failures, got %d/%d", workers-1, wins.Load(), invalid.Load())
	}
}

func TestAuthServiceRefreshRotation(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	first, err := fx.auth.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if first.AccessToken == "" || first.RefreshToken == "" || first.RefreshToken == login.RefreshToken {
		t.Fatalf("expected rotated pair, got %+v", first)
	}
	if first.ExpiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", first.ExpiresIn)
	}

	// Replaying the rotated-out token revokes the session for everyone.
	if _, err := fx.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	if _, err := fx.auth.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected session family to be revoked, got %v", err)
	}
	var session domain.Session
	fx.db.First(&session, "id = ?", login.SessionID)
	if session.Active || session.RevokeReason != revokeReasonRefreshReuse {
		t.Fatalf("unexpected session after reuse: %+v", session)
	}
}

func TestAuthServiceRefreshWithoutRotation(t *testing.T) {
	fx := newAuthServiceFixture(t, func(cfg *config.Config) { cfg.AuthRefreshRotationEnabled = false })
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	for i := 0; i < 2; i++ {
		res, err := fx.auth.Refresh(ctx, login.RefreshToken)
		if err != nil {
			t.Fatalf("refresh %d: %v", i+1, err)
		}
		if res.RefreshToken != "" {
			t.Fatal("expected access-only refresh")
		}
		p, err := fx.auth.ParsePrincipal(res.AccessToken)
		if err != nil || p.Email != "alice@x.io" {
			t.Fatalf("unexpected refreshed principal %+v err=%v", p, err)
		}
	}
}

func TestAuthServiceRefreshRejectsBadTokens(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	tampered := login.RefreshToken[:len(login.RefreshToken)-2] + "xx"
	for name, raw := range map[string]string{
		"tampered":          tampered,
		"access as refresh": login.AccessToken,
		"garbage":           "nope",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := fx.auth.Refresh(ctx, raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	expired, err := fx.tokens.jwtMgr.SignRefreshToken(security.Principal{UserID: login.User.ID}, login.SessionID, -time.Minute)
	if err != nil {
		t.Fatalf("sign expired refresh: %v", err)
	}
	if _, err := fx.auth.Refresh(ctx, expired.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired refresh to fail, got %v", err)
	}
}

func TestAuthServiceRefreshForDeletedAccount(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	fx.db.Where("credential_id = ?", login.User.ID).Delete(&domain.EmployeeProfile{})
	fx.db.Delete(&domain.Credential{}, login.User.ID)

	if _, err := fx.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAuthServiceLogoutLeavesAccessTokenVerifiable(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	if err := fx.auth.Logout(ctx, login.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	var session domain.Session
	fx.db.First(&session, "id = ?", login.SessionID)
	if session.Active {
		t.Fatal("expected session to be inactive")
	}
	if _, err := fx.auth.ParsePrincipal(login.AccessToken); err != nil {
		t.Fatalf("expected access token to stay verifiable until expiry: %v", err)
	}
	if err := fx.auth.Logout(ctx, login.AccessToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected second logout to report not found, got %v", err)
	}

	claims, _ := fx.tokens.VerifyAccess(login.AccessToken)
	if revoked, _ := fx.denylist.IsRevoked(ctx, claims.ID); !revoked {
		t.Fatal("expected logged out jti to be recorded for the denylist")
	}
}

func TestAuthServiceChangePassword(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")
	id := login.User.ID
	sid := login.SessionID

	other, err := fx.auth.Login(ctx, "alice@x.io", "Secret123!", fx.meta)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := fx.auth.ChangePassword(ctx, id, sid, "Wrong123!", "Changed123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := fx.auth.ChangePassword(ctx, id, sid, "Secret123!", "Secret123!"); !errors.Is(err, ErrSamePassword) {
		t.Fatalf("expected ErrSamePassword, got %v", err)
	}
	if err := fx.auth.ChangePassword(ctx, id, sid, "Secret123!", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := fx.auth.ChangePassword(ctx, 9999, sid, "Secret123!", "Changed123!"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	var active int64
	fx.db.Model(&domain.Session{}).Where("user_id = ? AND active = ?", id, true).Count(&active)
	if active != 2 {
		t.Fatalf("expected rejected changes to leave both sessions, got %d", active)
	}

	if err := fx.auth.ChangePassword(ctx, id, sid, "Secret123!", "Changed123!"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	var current, ended domain.Session
	fx.db.First(&current, "id = ?", sid)
	fx.db.First(&ended, "id = ?", other.SessionID)
	if !current.Active {
		t.Fatal("expected the calling session to survive a password change")
	}
	if ended.Active || ended.RevokeReason != revokeReasonPasswordChange {
		t.Fatalf("expected other session revoked for password change, got %+v", ended)
	}
	if _, err := fx.auth.Refresh(ctx, other.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh on the ended session to fail, got %v", err)
	}
	if _, err := fx.auth.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("expected refresh on the calling session to work: %v", err)
	}

	if _, err := fx.auth.Login(ctx, "alice@x.io", "Secret123!", fx.meta); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	if _, err := fx.auth.Login(ctx, "alice@x.io", "Changed123!", fx.meta); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}
	var stored domain.Credential
	fx.db.First(&stored, id)
	if stored.PasswordChangedAt == nil {
		t.Fatal("expected password change to be stamped")
	}
}

func TestAuthServiceResetPasswordWithOTP(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	sent, err := fx.auth.SendPasswordResetOTP(ctx, OTPSendInput{Email: "alice@x.io"})
	if err != nil {
		t.Fatalf("send reset otp: %v", err)
	}
	err = fx.auth.ResetPasswordWithOTP(ctx, PasswordResetInput{
		OTPVerifyInput: OTPVerifyInput{ChallengeID: sent.ChallengeID, Email: "alice@x.io", Code: sent.Code},
		NewPassword:    "Recovered1!",
	}, fx.meta.IP)
	if err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := fx.auth.Login(ctx, "alice@x.io", "Recovered1!", fx.meta); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
	var session domain.Session
	fx.db.First(&session, "id = ?", login.SessionID)
	if session.Active {
		t.Fatal("expected existing sessions to end after reset")
	}
}

func TestAuthServiceDeactivate(t *testing.T) {
	fx := newAuthServiceFixture(t)
	ctx := context.Background()
	login := fx.register(t, "alice@x.io", "Secret123!")

	if err := fx.auth.Deactivate(ctx, fx.admin, fx.admin.UserID); KindOf(err) != KindValidation {
		t.Fatalf("expected self deactivation to be rejected, got %v", err)
	}
	if err := fx.auth.Deactivate(ctx, fx.admin, 9999); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := fx.auth.Deactivate(ctx, fx.admin, login.User.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := fx.auth.Login(ctx, "alice@x.io", "Secret123!", fx.meta); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected deactivated login to fail, got %v", err)
	}
	if _, err := fx.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected refresh for deactivated account to fail, got %v", err)
	}
}

func TestAuthServiceMe(t *testing.T) {
	fx := newAuthServiceFixture(t)
	login := fx.register(t, "alice@x.io", "Secret123!")

	view, err := fx.auth.Me(context.Background(), login.User.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if view.Credential.Email != "alice@x.io" || view.Profile == nil || view.Profile.FullName != "Alice" {
		t.Fatalf("unexpected account view: %+v", view)
	}
	if _, err := fx.auth.Me(context.Background(), 9999); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
