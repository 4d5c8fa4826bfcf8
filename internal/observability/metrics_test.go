package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/config"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func recordEveryMetric(ctx context.Context) {
	RecordAuthLogin(ctx, "password", "success")
	RecordAuthRefresh(ctx, "success")
	RecordAuthLogout(ctx, "success")
	RecordRegistration(ctx, "success")
	RecordOTPEvent(ctx, "LOGIN", "verify", "success")
	RecordAuthRequestDuration(ctx, "login", "success", 10*time.Millisecond)
	RecordAccessTokenValidation(ctx, "ok", "header")
	RecordRateLimitDecision(ctx, "auth", "allow", "local", "ip")
	RecordRateLimitRetryAfter(ctx, "auth", "burst", time.Second)
	RecordAuthAbuseGuardEvent(ctx, "login", "check", "ok")
	RecordAuthAbuseCooldown(ctx, "login", "check", time.Second)
	RecordRefreshSecurityEvent(ctx, "rotated")
	RecordSessionManagementEvent(ctx, "logout", "success")
	RecordSessionRevokedCount(ctx, "revoke_others", 2)
	RecordHealthCheckResult(ctx, "db", "ready")
	RecordHealthCheckDuration(ctx, "db", 5*time.Millisecond)
	RecordDatabaseStartupEvent(ctx, "migrate", "success")
	RecordDatabaseStartupDuration(ctx, "migrate", 15*time.Millisecond)
	RecordDatabaseCleanupDeletedRows(ctx, "sessions", 3)
	RecordRepositoryOperation(ctx, "session", "create", "success")
	RecordToolCommandRun(ctx, "migrate", "up", "success")
	RecordToolCommandDuration(ctx, "seed", "run", "success", 30*time.Millisecond)
}

func TestRecordMetricHelpersNoPanicWhenUninitialized(t *testing.T) {
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	recordEveryMetric(context.Background())
}

func TestRecordMetricHelpersEmitExpectedLabelCardinality(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := newAppMetrics(provider.Meter("observability-test"))
	if err != nil {
		t.Fatalf("new app metrics: %v", err)
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	defer func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	}()

	recordEveryMetric(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	expected := map[string]int{
		"auth.login.attempts":                 2,
		"auth.refresh.attempts":               1,
		"auth.logout.attempts":                1,
		"auth.registration.events":            1,
		"auth.otp.events":                     3,
		"auth.request.duration":               2,
		"auth.access_token.validation.events": 2,
		"http.rate_limit.decisions":           4,
		"http.rate_limit.retry_after":         2,
		"auth.abuse_guard.events":             3,
		"auth.abuse_guard.cooldown":           2,
		"auth.refresh.security.events":        1,
		"session.management.events":           2,
		"session.revoked.count":               1,
		"health.check.results":                2,
		"health.check.duration":               1,
		"database.startup.events":             2,
		"database.startup.duration":           1,
		"database.cleanup.deleted_rows":       1,
		"repository.operations":               3,
		"tool.command.runs":                   3,
		"tool.command.duration":               3,
	}

	observed := collectLabelCardinality(t, rm)
	for metricName, want := range expected {
		got, ok := observed[metricName]
		if !ok {
			t.Fatalf("missing metric datapoint for %s", metricName)
		}
		if got != want {
			t.Fatalf("metric %s label cardinality mismatch: got=%d want=%d", metricName, got, want)
		}
	}
}

func TestInitMetricsDisabledReturnsProvider(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{OTELMetricsEnabled: false}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("init metrics disabled: %v", err)
	}
	if mp == nil {
		t.Fatal("expected non-nil meter provider")
	}
	_ = mp.Shutdown(ctx)
}

func TestInitRuntimeAllDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt, err := InitRuntime(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	if rt.LoggerProvider != nil {
		t.Fatal("expected no logger provider when otel logs are disabled")
	}
	if rt.MeterProvider == nil || rt.TracerProvider == nil {
		t.Fatal("expected no-export meter and tracer providers")
	}
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func collectLabelCardinality(t *testing.T, rm metricdata.ResourceMetrics) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Sum[float64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Histogram[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Histogram[float64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			}
		}
	}
	return out
}
