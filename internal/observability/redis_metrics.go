package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisInstrumentationOnce sync.Once

// InstrumentRedisClient records command counts, errors and latency for the
// shared client, labelled by key family (denylist, abuse guard, rate limit).
// Instrumentation is installed once per process.
func InstrumentRedisClient(client redis.UniversalClient, prefix string, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	redisInstrumentationOnce.Do(func() {
		hook, err := newRedisMetricsHook(client, prefix)
		if err != nil {
			logger.Warn("redis observability instrumentation disabled", "error", err)
			return
		}
		client.AddHook(hook)
		logger.Info("redis observability instrumentation enabled")
	})
}

type redisMetricsHook struct {
	prefix     string
	cmdTotal   metric.Int64Counter
	cmdErrors  metric.Int64Counter
	cmdLatency metric.Float64Histogram
}

func newRedisMetricsHook(client redis.UniversalClient, prefix string) (*redisMetricsHook, error) {
	meter := otel.Meter(meterName)

	cmdTotal, err := meter.Int64Counter("redis.command.total", metric.WithDescription("Total number of Redis commands executed"))
	if err != nil {
		return nil, err
	}
	cmdErrors, err := meter.Int64Counter("redis.command.errors", metric.WithDescription("Total number of Redis command errors"))
	if err != nil {
		return nil, err
	}
	cmdLatency, err := meter.Float64Histogram("redis.command.duration", metric.WithUnit("s"), metric.WithDescription("Redis command latency in seconds"))
	if err != nil {
		return nil, err
	}
	saturation, err := meter.Float64ObservableGauge("redis.pool.saturation", metric.WithUnit("1"), metric.WithDescription("Redis pool saturation ratio (used_conns / total_conns)"))
	if err != nil {
		return nil, err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		stats := client.PoolStats()
		if stats != nil && stats.TotalConns > 0 {
			used := stats.TotalConns - stats.IdleConns
			observer.ObserveFloat64(saturation, clampRatio(float64(used)/float64(stats.TotalConns)))
		}
		return nil
	}, saturation)
	if err != nil {
		return nil, err
	}

	return &redisMetricsHook{prefix: prefix, cmdTotal: cmdTotal, cmdErrors: cmdErrors, cmdLatency: cmdLatency}, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, err, time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err(), elapsed)
		}
		return err
	}
}

func (h *redisMetricsHook) observe(ctx context.Context, cmd redis.Cmder, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("command", strings.ToLower(cmd.Name())),
		attribute.String("keyspace", h.keyspace(cmd)),
		attribute.String("status", redisCommandStatus(err)),
	)
	h.cmdTotal.Add(ctx, 1, attrs)
	h.cmdLatency.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil && !errors.Is(err, redis.Nil) {
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", strings.ToLower(cmd.Name())),
			attribute.String("error_type", classifyRedisError(err)),
		))
	}
}

// keyspace maps "<prefix>:<family>:..." keys to their family.
func (h *redisMetricsHook) keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "none"
	}
	key, ok := args[1].(string)
	if !ok {
		return "other"
	}
	key = strings.TrimPrefix(key, h.prefix+":")
	family, _, _ := strings.Cut(key, ":")
	switch family {
	case "access_denylist", "auth_abuse", "rate_limit":
		return family
	default:
		return "other"
	}
}

func redisCommandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "connection"):
		return "connection"
	default:
		return "other"
	}
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
