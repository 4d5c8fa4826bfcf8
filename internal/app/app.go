package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/erp-identity-core/internal/config"
	"github.com/sandeepkv93/erp-identity-core/internal/database"
	"github.com/sandeepkv93/erp-identity-core/internal/health"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *App {
	a := &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
		Readiness:     readiness,
	}
	if cfg != nil {
		a.ShutdownTimeout = cfg.ShutdownTimeout
		a.ShutdownHTTPDrainTimeout = cfg.ShutdownHTTPDrainTimeout
		a.ShutdownObservabilityTimeout = cfg.ShutdownObservabilityTimeout
	}
	return a
}

// StartCleanup sweeps expired sessions and OTP challenges every interval.
// It returns nil when there is nothing to run.
func (a *App) StartCleanup(interval time.Duration) (stop func()) {
	if a.DB == nil || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.runCleanup(ctx, now)
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func (a *App) runCleanup(ctx context.Context, now time.Time) {
	report, err := database.CleanupExpired(ctx, a.DB, now)
	if err != nil {
		a.Logger.ErrorContext(ctx, "expired credential state cleanup failed", "error", err)
		return
	}
	if report.ExpiredSessions > 0 || report.ExpiredChallenges > 0 {
		a.Logger.InfoContext(ctx, "expired credential state cleaned up",
			"sessions", report.ExpiredSessions,
			"challenges", report.ExpiredChallenges,
		)
	}
}

// Shutdown drains HTTP first, then flushes telemetry, then closes storage.
func (a *App) Shutdown(ctx context.Context) {
	totalTimeout := a.ShutdownTimeout
	if totalTimeout <= 0 {
		totalTimeout = 20 * time.Second
	}
	totalCtx, totalCancel := context.WithTimeout(ctx, totalTimeout)
	defer totalCancel()

	httpTimeout := a.ShutdownHTTPDrainTimeout
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}
	httpCtx, httpCancel := context.WithTimeout(totalCtx, httpTimeout)
	if err := a.Server.Shutdown(httpCtx); err != nil {
		a.Logger.Error("failed to shutdown http server", "error", err)
	}
	httpCancel()

	if a.Observability != nil {
		obsTimeout := a.ShutdownObservabilityTimeout
		if obsTimeout <= 0 {
			obsTimeout = 8 * time.Second
		}
		obsCtx, obsCancel := context.WithTimeout(totalCtx, obsTimeout)
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			a.Logger.Error("failed to shutdown observability", "error", err)
		}
		obsCancel()
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Logger.Error("failed to close database connection", "error", err)
			}
		}
	}
}
