package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "erp-identity-core"

type AppMetrics struct {
	authLoginCounter             metric.Int64Counter
	authRefreshCounter           metric.Int64Counter
	authLogoutCounter            metric.Int64Counter
	registrationCounter          metric.Int64Counter
	otpCounter                   metric.Int64Counter
	authReqDuration              metric.Float64Histogram
	accessTokenValidationCounter metric.Int64Counter
	rateLimitDecisionCounter     metric.Int64Counter
	rateLimitRetryAfter          metric.Float64Histogram
	abuseGuardCounter            metric.Int64Counter
	abuseGuardCooldown           metric.Float64Histogram
	refreshSecurityCounter       metric.Int64Counter
	sessionManagementCounter     metric.Int64Counter
	sessionRevokedCount          metric.Float64Histogram
	healthCheckResultCounter     metric.Int64Counter
	healthCheckDuration          metric.Float64Histogram
	databaseStartupCounter       metric.Int64Counter
	databaseStartupDuration      metric.Float64Histogram
	databaseCleanupDeleted       metric.Float64Histogram
	repositoryOpsCounter         metric.Int64Counter
	toolCommandRuns              metric.Int64Counter
	toolCommandDuration          metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var firstErr error
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create counter %s: %w", name, err)
		}
		return c
	}
	histogram := func(name, unit, description string) metric.Float64Histogram {
		opts := []metric.Float64HistogramOption{metric.WithDescription(description)}
		if unit != "" {
			opts = append(opts, metric.WithUnit(unit))
		}
		h, err := meter.Float64Histogram(name, opts...)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create histogram %s: %w", name, err)
		}
		return h
	}

	m := &AppMetrics{
		authLoginCounter:             counter("auth.login.attempts", "Login attempts by method and status"),
		authRefreshCounter:           counter("auth.refresh.attempts", "Refresh attempts by status"),
		authLogoutCounter:            counter("auth.logout.attempts", "Logout attempts by status"),
		registrationCounter:          counter("auth.registration.events", "Account registrations by outcome"),
		otpCounter:                   counter("auth.otp.events", "OTP challenge issue and verify events"),
		authReqDuration:              histogram("auth.request.duration", "s", "Duration of auth endpoint requests in seconds"),
		accessTokenValidationCounter: counter("auth.access_token.validation.events", "Access token validation outcomes"),
		rateLimitDecisionCounter:     counter("http.rate_limit.decisions", "Rate limiter decisions"),
		rateLimitRetryAfter:          histogram("http.rate_limit.retry_after", "s", "Retry-after duration in seconds for throttled requests"),
		abuseGuardCounter:            counter("auth.abuse_guard.events", "Auth abuse guard events"),
		abuseGuardCooldown:           histogram("auth.abuse_guard.cooldown", "s", "Cooldown duration returned by auth abuse guard"),
		refreshSecurityCounter:       counter("auth.refresh.security.events", "Refresh rotation and reuse events"),
		sessionManagementCounter:     counter("session.management.events", "Session lifecycle events"),
		sessionRevokedCount:          histogram("session.revoked.count", "", "Number of sessions revoked per action"),
		healthCheckResultCounter:     counter("health.check.results", "Health dependency check results"),
		healthCheckDuration:          histogram("health.check.duration", "s", "Duration of health dependency checks in seconds"),
		databaseStartupCounter:       counter("database.startup.events", "Database migrate, seed and cleanup events"),
		databaseStartupDuration:      histogram("database.startup.duration", "s", "Duration of database startup phases in seconds"),
		databaseCleanupDeleted:       histogram("database.cleanup.deleted_rows", "", "Rows removed by expired-row cleanup"),
		repositoryOpsCounter:         counter("repository.operations", "Repository operations by entity and outcome"),
		toolCommandRuns:              counter("tool.command.runs", "CLI tool command runs"),
		toolCommandDuration:          histogram("tool.command.duration", "s", "CLI tool command duration in seconds"),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(ctx context.Context, method, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
		),
	)
}

func RecordAuthRefresh(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordRegistration(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.registrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordOTPEvent(ctx context.Context, purpose, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.otpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.authReqDuration.Record(
		ctx,
		duration.Seconds(),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := current()
	if m == nil {
		return
	}
	m.accessTokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordAuthAbuseGuardEvent(ctx context.Context, scope, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.abuseGuardCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthAbuseCooldown(ctx context.Context, scope, action string, cooldown time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.abuseGuardCooldown.Record(ctx, cooldown.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("action", action),
	))
}

func RecordRefreshSecurityEvent(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.refreshSecurityCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordSessionManagementEvent(ctx context.Context, action, status string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionManagementCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

func RecordSessionRevokedCount(ctx context.Context, action string, count int64) {
	m := current()
	if m == nil {
		return
	}
	m.sessionRevokedCount.Record(ctx, float64(count), metric.WithAttributes(
		attribute.String("action", action),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, result string) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("result", result),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}

func RecordDatabaseStartupEvent(ctx context.Context, phase, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, phase string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.databaseStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("phase", phase),
	))
}

func RecordDatabaseCleanupDeletedRows(ctx context.Context, table string, rows int64) {
	m := current()
	if m == nil {
		return
	}
	m.databaseCleanupDeleted.Record(ctx, float64(rows), metric.WithAttributes(
		attribute.String("table", table),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandRun(ctx context.Context, tool, command, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.toolCommandRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandDuration(ctx context.Context, tool, command, outcome string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.toolCommandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}
