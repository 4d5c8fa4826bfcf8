package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/erp-identity-core/internal/app"
	"github.com/sandeepkv93/erp-identity-core/internal/config"
	"github.com/sandeepkv93/erp-identity-core/internal/database"
	"github.com/sandeepkv93/erp-identity-core/internal/health"
	"github.com/sandeepkv93/erp-identity-core/internal/http/handler"
	"github.com/sandeepkv93/erp-identity-core/internal/http/middleware"
	"github.com/sandeepkv93/erp-identity-core/internal/http/router"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/repository"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
	"github.com/sandeepkv93/erp-identity-core/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewCredentialRepository,
	repository.NewSessionRepository,
	repository.NewOTPChallengeRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	providePasswordHasher,
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideTokenDenylist,
	provideSessionService,
	service.NewDevOTPNotifier,
	wire.Bind(new(service.OTPNotifier), new(*service.DevOTPNotifier)),
	provideOTPService,
	provideAuthAbuseGuard,
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.SessionServiceInterface), new(*service.SessionService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewUserHandler,
	handler.NewAdminHandler,
	provideRevocationChecker,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	cfg    *config.Config
	db     *gorm.DB
	hasher *security.PasswordHasher
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB, hasher *security.PasswordHasher) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db, hasher: hasher}
}

// Run migrates the schema and makes sure the bootstrap admin exists.
func (m *MigrationRunner) Run() (*database.SeedReport, error) {
	if err := database.Migrate(m.db); err != nil {
		return nil, err
	}
	return seedBootstrapAdmin(m.cfg, m.db, m.hasher)
}

// Cleanup removes sessions and OTP challenges that can no longer be used.
func (m *MigrationRunner) Cleanup(now time.Time) (*database.CleanupReport, error) {
	return database.CleanupExpired(context.Background(), m.db, now)
}

func seedBootstrapAdmin(cfg *config.Config, db *gorm.DB, hasher *security.PasswordHasher) (*database.SeedReport, error) {
	if cfg.BootstrapAdminEmail == "" {
		return &database.SeedReport{Noop: true}, nil
	}
	hash, err := hasher.Hash(cfg.BootstrapAdminPassword)
	if err != nil {
		return nil, fmt.Errorf("hash bootstrap admin password: %w", err)
	}
	return database.SeedBootstrapAdmin(db, database.BootstrapAdmin{
		Email:        cfg.BootstrapAdminEmail,
		Name:         cfg.BootstrapAdminName,
		PasswordHash: hash,
	})
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config, hasher *security.PasswordHasher, logger *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	report, err := seedBootstrapAdmin(cfg, db, hasher)
	if err != nil {
		return nil, err
	}
	if !report.Noop {
		logger.Info("bootstrap admin ensured", "created", report.CreatedAdmin, "promoted", report.PromotedAdmin)
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, cfg.RedisPrefix, logger)
	return client
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

// provideTokenService falls back to the default lifetimes when a configured
// TTL cannot be parsed.
func provideTokenService(cfg *config.Config, jwt *security.JWTManager, logger *slog.Logger) *service.TokenService {
	accessTTL, ok := security.ParseTTL(cfg.JWTAccessTTL, security.DefaultAccessTTL)
	if !ok {
		logger.Warn("invalid JWT_ACCESS_TTL, using default", "value", cfg.JWTAccessTTL, "default", security.DefaultAccessTTL.String())
	}
	refreshTTL, ok := security.ParseTTL(cfg.JWTRefreshTTL, security.DefaultRefreshTTL)
	if !ok {
		logger.Warn("invalid JWT_REFRESH_TTL, using default", "value", cfg.JWTRefreshTTL, "default", security.DefaultRefreshTTL.String())
	}
	tokens := service.NewTokenService(jwt, accessTTL, refreshTTL)
	logger.Info("token lifetimes configured", "access_ttl", tokens.AccessTTL().String(), "refresh_ttl", tokens.RefreshTTL().String())
	return tokens
}

func provideTokenDenylist(cfg *config.Config, redisClient redis.UniversalClient) service.TokenDenylist {
	switch {
	case !cfg.AuthAccessDenylistEnabled:
		return service.NewNoopTokenDenylist()
	case redisClient != nil:
		return service.NewRedisTokenDenylist(redisClient, cfg.RedisPrefix)
	default:
		return service.NewInMemoryTokenDenylist()
	}
}

// provideRevocationChecker returns nil when the denylist is disabled so the
// auth middleware skips the lookup entirely.
func provideRevocationChecker(cfg *config.Config, denylist service.TokenDenylist) middleware.RevocationChecker {
	if !cfg.AuthAccessDenylistEnabled {
		return nil
	}
	return denylist
}

func provideSessionService(cfg *config.Config, sessionRepo repository.SessionRepository, denylist service.TokenDenylist) *service.SessionService {
	return service.NewSessionService(sessionRepo, denylist, cfg.TokenPepper)
}

func provideOTPService(cfg *config.Config, repo repository.OTPChallengeRepository, notifier service.OTPNotifier) *service.OTPService {
	return service.NewOTPService(repo, notifier, cfg.OTPTTL, cfg.TokenPepper)
}

func provideAuthAbuseGuard(cfg *config.Config, redisClient redis.UniversalClient) service.AuthAbuseGuard {
	if !cfg.AuthAbuseProtectionEnabled {
		return service.NewNoopAuthAbuseGuard()
	}
	policy := service.AuthAbusePolicyFromConfig(cfg)
	if redisClient != nil {
		return service.NewRedisAuthAbuseGuard(redisClient, cfg.RedisPrefix, policy)
	}
	return service.NewInMemoryAuthAbuseGuard(policy)
}

func rateLimitFailureMode(cfg *config.Config) middleware.FailureMode {
	if cfg.RateLimitFailOpen {
		return middleware.FailOpen
	}
	return middleware.FailClosed
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(
			middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisPrefix),
			cfg.APIRateLimitPerMin,
			time.Minute,
			rateLimitFailureMode(cfg),
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute, "api").Middleware()
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(
			middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisPrefix),
			cfg.AuthRateLimitPerMin,
			time.Minute,
			rateLimitFailureMode(cfg),
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute, "auth").Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	tokens *service.TokenService,
	revocations middleware.RevocationChecker,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		AdminHandler:      adminHandler,
		TokenVerifier:     tokens,
		Revocations:       revocations,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		GlobalRateLimiter: globalRateLimiter,
		AuthRateLimiter:   authRateLimiter,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db), health.NewSchemaChecker(db)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
