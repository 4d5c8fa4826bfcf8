package di

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sandeepkv93/erp-identity-core/internal/config"
	"github.com/sandeepkv93/erp-identity-core/internal/database"
	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/http/middleware"
	"github.com/sandeepkv93/erp-identity-core/internal/http/router"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
	"github.com/sandeepkv93/erp-identity-core/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDIUnitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
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
	return db
}

func TestProvideHTTPServer(t *testing.T) {
	cfg := &config.Config{HTTPPort: "9999"}
	srv := provideHTTPServer(cfg, nil)
	if srv.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", srv.Addr)
	}
	if srv.ReadTimeout.Seconds() != 10 {
		t.Fatalf("unexpected read timeout: %v", srv.ReadTimeout)
	}
}

func TestProvideRouterDependencies(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"http://localhost:3000"}, AuthRateLimitPerMin: 10, APIRateLimitPerMin: 100, OTELMetricsEnabled: true}
	dep := provideRouterDependencies(nil, nil, nil, nil, nil, nil, nil, nil, cfg)
	if dep.AuthRateLimitRPM != 10 || dep.APIRateLimitRPM != 100 {
		t.Fatalf("unexpected rate limits: %+v", dep)
	}
	if !dep.EnableOTelHTTP {
		t.Fatal("expected otel http enabled")
	}
	if len(dep.CORSOrigins) != 1 || dep.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %+v", dep.CORSOrigins)
	}
	if dep.Revocations != nil {
		t.Fatal("expected no revocation checker")
	}
	_ = router.Dependencies(dep)
}

func TestProvideTokenServiceFallsBackOnInvalidTTL(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	jwt := security.NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456", "abcdefghijklmnopqrstuvwxyz654321")

	tokens := provideTokenService(&config.Config{JWTAccessTTL: "15m", JWTRefreshTTL: "2d"}, jwt, logger)
	if tokens.AccessTTL() != 15*time.Minute || tokens.RefreshTTL() != 48*time.Hour {
		t.Fatalf("unexpected ttls: %v %v", tokens.AccessTTL(), tokens.RefreshTTL())
	}
	if strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected no warnings for valid ttls, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "access_ttl=15m0s") || !strings.Contains(buf.String(), "refresh_ttl=48h0m0s") {
		t.Fatalf("expected configured lifetimes to be logged, got %q", buf.String())
	}

	tokens = provideTokenService(&config.Config{JWTAccessTTL: "soon", JWTRefreshTTL: "7w"}, jwt, logger)
	if tokens.AccessTTL() != security.DefaultAccessTTL || tokens.RefreshTTL() != security.DefaultRefreshTTL {
		t.Fatalf("expected default ttls, got %v %v", tokens.AccessTTL(), tokens.RefreshTTL())
	}
	if !strings.Contains(buf.String(), "invalid JWT_ACCESS_TTL") || !strings.Contains(buf.String(), "invalid JWT_REFRESH_TTL") {
		t.Fatalf("expected fallback warnings, got %q", buf.String())
	}
}

func TestProvideTokenDenylist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cases := []struct {
		name    string
		enabled bool
		client  redis.UniversalClient
		want    string
	}{
		{"disabled", false, client, "*service.NoopTokenDenylist"},
		{"in memory", true, nil, "*service.InMemoryTokenDenylist"},
		{"redis", true, client, "*service.RedisTokenDenylist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{AuthAccessDenylistEnabled: tc.enabled, RedisPrefix: "erp_test"}
			got := provideTokenDenylist(cfg, tc.client)
			if typ := fmt.Sprintf("%T", got); typ != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, typ)
			}
			checker := provideRevocationChecker(cfg, got)
			if (checker != nil) != tc.enabled {
				t.Fatalf("expected revocation checker presence %v", tc.enabled)
			}
		})
	}
}

func TestProvideAuthAbuseGuard(t *testing.T) {
	cfg := &config.Config{
		AuthAbuseProtectionEnabled: true,
		AuthAbuseFreeAttempts:      3,
		AuthAbuseBaseDelay:         time.Second,
		AuthAbuseMultiplier:        2,
		AuthAbuseMaxDelay:          5 * time.Minute,
		AuthAbuseResetWindow:       30 * time.Minute,
		RedisPrefix:                "erp_test",
	}
	if _, ok := provideAuthAbuseGuard(cfg, nil).(*service.InMemoryAuthAbuseGuard); !ok {
		t.Fatal("expected in-memory auth abuse guard without redis")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if _, ok := provideAuthAbuseGuard(cfg, client).(*service.RedisAuthAbuseGuard); !ok {
		t.Fatal("expected redis auth abuse guard")
	}

	cfg.AuthAbuseProtectionEnabled = false
	if _, ok := provideAuthAbuseGuard(cfg, client).(*service.NoopAuthAbuseGuard); !ok {
		t.Fatal("expected noop auth abuse guard when disabled")
	}
}

func TestProvideRedisClient(t *testing.T) {
	cfg := &config.Config{RedisEnabled: false, RedisAddr: "localhost:6379"}
	if client := provideRedisClient(cfg, discardLogger()); client != nil {
		t.Fatal("expected nil redis client when redis is disabled")
	}

	cfg = &config.Config{RedisEnabled: true, RedisAddr: "redis.internal:6380", RedisPassword: "secret", RedisDB: 2, RedisPrefix: "erp"}
	client := provideRedisClient(cfg, discardLogger())
	redisClient, ok := client.(*redis.Client)
	if !ok {
		t.Fatalf("expected *redis.Client, got %T", client)
	}
	t.Cleanup(func() { _ = redisClient.Close() })
	opts := redisClient.Options()
	if opts.Addr != cfg.RedisAddr || opts.Password != cfg.RedisPassword || opts.DB != cfg.RedisDB {
		t.Fatalf("unexpected redis options: addr=%s db=%d", opts.Addr, opts.DB)
	}
}

func TestProvideGlobalRateLimiterRedisFailClosed(t *testing.T) {
	cfg := &config.Config{RedisPrefix: "erp_test", APIRateLimitPerMin: 5, RateLimitFailOpen: false}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	h := provideGlobalRateLimiter(cfg, client)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected fail-closed response when redis unavailable, got %d", rr.Code)
	}
}

func TestProvideAuthRateLimiterRedisFailOpen(t *testing.T) {
	cfg := &config.Config{RedisPrefix: "erp_test", AuthRateLimitPerMin: 1, RateLimitFailOpen: true}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	h := provideAuthRateLimiter(cfg, client)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected fail-open response when redis unavailable, got %d", rr.Code)
	}
}

func TestProvideAuthRateLimiterLocalEnforcesLimit(t *testing.T) {
	cfg := &config.Config{AuthRateLimitPerMin: 2}
	h := provideAuthRateLimiter(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}
}

func TestProvideReadinessProbeRunner(t *testing.T) {
	db := newDIUnitTestDB(t)
	cfg := &config.Config{ReadinessProbeTimeout: time.Second}

	runner := provideReadinessProbeRunner(cfg, db, nil)
	if ready, results := runner.Ready(context.Background()); ready {
		t.Fatalf("expected unmigrated schema to be unready, got %+v", results)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if ready, results := runner.Ready(context.Background()); !ready {
		t.Fatalf("expected ready after migration, got %+v", results)
	}
}

func TestMigrationRunnerSeedsBootstrapAdmin(t *testing.T) {
	db := newDIUnitTestDB(t)
	cfg := &config.Config{
		BootstrapAdminEmail:    "root@erp.test",
		BootstrapAdminPassword: "Root#Pass1",
		BootstrapAdminName:     "Root",
	}
	hasher := security.NewPasswordHasher(4)
	runner := NewMigrationRunner(cfg, db, hasher)

	report, err := runner.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.CreatedAdmin {
		t.Fatalf("expected admin to be created, got %+v", report)
	}
	var cred domain.Credential
	if err := db.Where("email = ?", "root@erp.test").First(&cred).Error; err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if cred.Role != domain.RoleAdmin || !hasher.Verify("Root#Pass1", cred.PasswordHash) {
		t.Fatalf("unexpected bootstrap admin: role=%s", cred.Role)
	}

	report, err = runner.Run()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.CreatedAdmin {
		t.Fatal("expected second run not to create another admin")
	}

	if _, err := runner.Cleanup(time.Now()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestMigrationRunnerWithoutBootstrapAdmin(t *testing.T) {
	db := newDIUnitTestDB(t)
	report, err := NewMigrationRunner(&config.Config{}, db, security.NewPasswordHasher(4)).Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Noop {
		t.Fatalf("expected noop seed report, got %+v", report)
	}
}

func TestProvideApp(t *testing.T) {
	cfg := &config.Config{HTTPPort: "8080", ShutdownTimeout: 20 * time.Second}
	logger := slog.Default()
	srv := &http.Server{Addr: ":8080", ReadHeaderTimeout: time.Second}
	runtime := &observability.Runtime{}

	a := provideApp(cfg, logger, srv, runtime, nil, nil, nil)
	if a == nil {
		t.Fatal("expected app")
	}
	if a.Config != cfg || a.Logger != logger || a.Server != srv || a.Observability != runtime {
		t.Fatal("app dependencies not wired as expected")
	}
	if a.ShutdownTimeout != 20*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", a.ShutdownTimeout)
	}
}

var _ middleware.RevocationChecker = (*service.InMemoryTokenDenylist)(nil)
