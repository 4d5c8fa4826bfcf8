package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once at startup and treated as read-only afterwards.
type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	JWTIssuer        string
	JWTAudience      string
	JWTAccessSecret  string
	JWTRefreshSecret string
	// Compact "<int><s|m|h|d>" values; parsed by security.ParseTTL.
	JWTAccessTTL  string
	JWTRefreshTTL string
	TokenPepper   string

	BcryptCost int
	OTPTTL     time.Duration

	AuthOTPReturnCode          bool
	AuthRefreshRotationEnabled bool
	AuthAccessDenylistEnabled  bool

	AuthAbuseProtectionEnabled bool
	AuthAbuseFreeAttempts      int
	AuthAbuseBaseDelay         time.Duration
	AuthAbuseMultiplier        float64
	AuthAbuseMaxDelay          time.Duration
	AuthAbuseResetWindow       time.Duration

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int
	RateLimitFailOpen   bool

	CORSAllowedOrigins []string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	ReadinessProbeTimeout        time.Duration
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
	// Zero disables the background sweep of expired sessions and challenges.
	CleanupInterval time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:                        env,
		HTTPPort:                   getEnv("HTTP_PORT", "8080"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		JWTIssuer:                  getEnv("JWT_ISSUER", "erp-identity-core"),
		JWTAudience:                getEnv("JWT_AUDIENCE", "erp-api"),
		JWTAccessSecret:            os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:           os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTTL:               getEnv("JWT_ACCESS_TTL", "1h"),
		JWTRefreshTTL:              getEnv("JWT_REFRESH_TTL", "7d"),
		TokenPepper:                os.Getenv("TOKEN_HASH_PEPPER"),
		BcryptCost:                 getEnvInt("BCRYPT_COST", 10),
		AuthOTPReturnCode:          getEnvBool("AUTH_OTP_RETURN_CODE", !isProductionEnv(env)),
		AuthRefreshRotationEnabled: getEnvBool("AUTH_REFRESH_ROTATION_ENABLED", true),
		AuthAccessDenylistEnabled:  getEnvBool("AUTH_ACCESS_DENYLIST_ENABLED", false),
		AuthAbuseProtectionEnabled: getEnvBool("AUTH_ABUSE_PROTECTION_ENABLED", true),
		AuthAbuseFreeAttempts:      getEnvInt("AUTH_ABUSE_FREE_ATTEMPTS", 3),
		AuthAbuseMultiplier:        getEnvFloat("AUTH_ABUSE_MULTIPLIER", 2.0),
		AuthRateLimitPerMin:        getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:         getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		RateLimitFailOpen:          getEnvBool("RATE_LIMIT_FAIL_OPEN", true),
		CORSAllowedOrigins:         splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		BootstrapAdminEmail:        strings.TrimSpace(strings.ToLower(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		BootstrapAdminPassword:     os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminName:         getEnv("BOOTSTRAP_ADMIN_NAME", "System Administrator"),
		RedisEnabled:               getEnvBool("REDIS_ENABLED", false),
		RedisAddr:                  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:              os.Getenv("REDIS_PASSWORD"),
		RedisDB:                    getEnvInt("REDIS_DB", 0),
		RedisPrefix:                getEnv("REDIS_PREFIX", "erp_identity"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "erp-identity-core"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key    string
		def    string
		target *time.Duration
	}{
		{"OTP_TTL", "10m", &cfg.OTPTTL},
		{"AUTH_ABUSE_BASE_DELAY", "2s", &cfg.AuthAbuseBaseDelay},
		{"AUTH_ABUSE_MAX_DELAY", "5m", &cfg.AuthAbuseMaxDelay},
		{"AUTH_ABUSE_RESET_WINDOW", "30m", &cfg.AuthAbuseResetWindow},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "2s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
		{"CLEANUP_INTERVAL", "15m", &cfg.CleanupInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if len(c.JWTRefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 chars")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if len(c.TokenPepper) < 16 {
		errs = append(errs, "TOKEN_HASH_PEPPER must be at least 16 chars")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, "BCRYPT_COST must be between 4 and 31")
	}
	if c.OTPTTL < time.Minute || c.OTPTTL > time.Hour {
		errs = append(errs, "OTP_TTL must be between 1m and 1h")
	}
	if c.AuthOTPReturnCode && c.IsProduction() {
		errs = append(errs, "AUTH_OTP_RETURN_CODE must be false in production")
	}
	if c.AuthAbuseProtectionEnabled {
		if c.AuthAbuseFreeAttempts < 0 {
			errs = append(errs, "AUTH_ABUSE_FREE_ATTEMPTS must be >= 0")
		}
		if c.AuthAbuseBaseDelay <= 0 {
			errs = append(errs, "AUTH_ABUSE_BASE_DELAY must be > 0")
		}
		if c.AuthAbuseMultiplier < 1 {
			errs = append(errs, "AUTH_ABUSE_MULTIPLIER must be >= 1")
		}
		if c.AuthAbuseMaxDelay < c.AuthAbuseBaseDelay {
			errs = append(errs, "AUTH_ABUSE_MAX_DELAY must be >= AUTH_ABUSE_BASE_DELAY")
		}
		if c.AuthAbuseResetWindow <= 0 {
			errs = append(errs, "AUTH_ABUSE_RESET_WINDOW must be > 0")
		}
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RedisEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, "REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.BootstrapAdminEmail != "" && len(c.BootstrapAdminPassword) < 8 {
		errs = append(errs, "BOOTSTRAP_ADMIN_PASSWORD must be at least 8 chars when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.ShutdownHTTPDrainTimeout <= 0 || c.ShutdownHTTPDrainTimeout > c.ShutdownTimeout {
		errs = append(errs, "SHUTDOWN_HTTP_DRAIN_TIMEOUT must be > 0 and <= SHUTDOWN_TIMEOUT")
	}
	if c.CleanupInterval < 0 {
		errs = append(errs, "CLEANUP_INTERVAL must be >= 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return isProductionEnv(c.Env)
}

func isProductionEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
