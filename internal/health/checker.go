package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/erp-identity-core/internal/observability"
)

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner answers readiness by running every dependency check in
// parallel, each under its own timeout.
type ProbeRunner struct {
	checkers    []Checker
	timeout     time.Duration
	gracePeriod time.Duration
	startedAt   time.Time
	now         func() time.Time
}

func NewProbeRunner(timeout, gracePeriod time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	active := make([]Checker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			active = append(active, c)
		}
	}
	return &ProbeRunner{
		checkers:    active,
		timeout:     timeout,
		gracePeriod: gracePeriod,
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

func (r *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	if r == nil {
		return true, nil
	}
	if r.gracePeriod > 0 && r.now().Sub(r.startedAt) < r.gracePeriod {
		observability.RecordHealthCheckResult(ctx, "startup_grace", "not_ready")
		return false, []CheckResult{{Name: "startup_grace", Healthy: false, Error: "startup grace period active"}}
	}

	results := make([]CheckResult, len(r.checkers))
	var g errgroup.Group
	for i, c := range r.checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			start := time.Now()
			res := c.Check(checkCtx)
			elapsed := time.Since(start)
			res.LatencyMS = elapsed.Milliseconds()
			results[i] = res

			observability.RecordHealthCheckDuration(ctx, res.Name, elapsed)
			outcome := "ready"
			if !res.Healthy {
				outcome = "not_ready"
			}
			observability.RecordHealthCheckResult(ctx, res.Name, outcome)
			return nil
		})
	}
	_ = g.Wait()

	allHealthy := true
	for _, res := range results {
		if !res.Healthy {
			allHealthy = false
		}
	}
	return allHealthy, results
}
