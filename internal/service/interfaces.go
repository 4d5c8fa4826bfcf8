package service

import (
	"context"

	"github.com/sandeepkv93/erp-identity-core/internal/security"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput, meta SessionMeta) (*LoginResult, error)
	Login(ctx context.Context, email, password string, meta SessionMeta) (*LoginResult, error)
	SendLoginOTP(ctx context.Context, in OTPSendInput) (*OTPSendResult, error)
	VerifyLoginOTP(ctx context.Context, in OTPVerifyInput, meta SessionMeta) (*LoginResult, error)
	SendPasswordResetOTP(ctx context.Context, in OTPSendInput) (*OTPSendResult, error)
	ResetPasswordWithOTP(ctx context.Context, in PasswordResetInput, ip string) error
	ChangePassword(ctx context.Context, userID uint, sessionID, currentPassword, newPassword string) error
	Refresh(ctx context.Context, rawRefresh string) (*RefreshResult, error)
	Logout(ctx context.Context, rawAccess string) error
	Me(ctx context.Context, userID uint) (*AccountView, error)
	Deactivate(ctx context.Context, actor security.Principal, targetID uint) error
}

type SessionServiceInterface interface {
	ListActive(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error)
	InvalidateByID(ctx context.Context, userID uint, sessionID string) (string, error)
	InvalidateAllExcept(ctx context.Context, userID uint, currentAccess string) (int64, error)
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ SessionServiceInterface = (*SessionService)(nil)
)
