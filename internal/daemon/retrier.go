// Package daemon implements the retry loop for deployments deferred by locked files.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// RetryConfig holds retry loop configuration.
type RetryConfig struct {
	Interval    time.Duration // Wait between attempts
	MaxAttempts int           // Total attempts per selection; 0 means until ctx is done
}

// DefaultRetryConfig returns default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Interval:    30 * time.Second,
		MaxAttempts: 10,
	}
}

// Result is the last outcome for one selection.
type Result struct {
	Selection domain.TargetSelection
	Report    *domain.InstallReport
	Err       error
	Attempts  int
}

// Status returns the report status, or failed when Install returned an error.
func (r Result) Status() domain.Status {
	if r.Err != nil || r.Report == nil {
		return domain.StatusFailed
	}
	return r.Report.Status()
}

// Retrier re-runs installs that were deferred because a file was in use
// (typically the game is running) until they converge.
type Retrier struct {
	config   RetryConfig
	deployer domain.Deployer
	logger   *zap.Logger
}

// NewRetrier creates a new retrier.
func NewRetrier(config RetryConfig, deployer domain.Deployer, logger *zap.Logger) *Retrier {
	if config.Interval <= 0 {
		config.Interval = DefaultRetryConfig().Interval
	}
	return &Retrier{config: config, deployer: deployer, logger: logger}
}

// Run installs every selection once, then retries the partial ones every
// Interval. It returns when none is partial, the attempt budget is spent or
// ctx is canceled; results are in selection order. A pass cut short by ctx
// returns ctx.Err(), and selections it never reached have Attempts == 0.
func (r *Retrier) Run(ctx context.Context, selections []domain.TargetSelection) ([]Result, error) {
	results := make([]Result, len(selections))
	pending := make([]int, len(selections))
	for i, sel := range selections {
		results[i].Selection = sel
		pending[i] = i
	}

	for attempt := 1; ; attempt++ {
		var next []int
		interrupted := false
		for _, i := range pending {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			res := &results[i]
			res.Report, res.Err = r.deployer.Install(ctx, res.Selection)
			res.Attempts = attempt
			r.logAttempt(*res)

			if res.Err == nil && res.Report.Status() == domain.StatusPartial {
				next = append(next, i)
			}
		}

		if interrupted || (len(next) > 0 && ctx.Err() != nil) {
			r.logger.Info("retry loop interrupted", zap.Int("attempt", attempt))
			return results, ctx.Err()
		}
		if len(next) == 0 {
			return results, nil
		}
		if r.config.MaxAttempts > 0 && attempt >= r.config.MaxAttempts {
			r.logger.Warn("giving up on deferred installs",
				zap.Int("attempts", attempt),
				zap.Int("remaining", len(next)))
			return results, nil
		}

		timer := time.NewTimer(r.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("retry loop stopped", zap.Int("remaining", len(next)))
			return results, ctx.Err()
		case <-timer.C:
		}
		pending = next
	}
}

func (r *Retrier) logAttempt(res Result) {
	fields := []zap.Field{
		zap.String("dir", res.Selection.Directory),
		zap.String("name", res.Selection.Label()),
		zap.Int("attempt", res.Attempts),
	}
	if res.Err != nil {
		r.logger.Error("install rejected", append(fields, zap.Error(res.Err))...)
		return
	}
	fields = append(fields,
		zap.String("run_id", res.Report.RunID),
		zap.String("status", string(res.Report.Status())))

	if res.Report.Status() == domain.StatusPartial {
		r.logger.Info("install deferred, files in use", append(fields,
			zap.Int("skipped_locked", res.Report.Count(domain.OutcomeSkippedLocked)))...)
		return
	}
	r.logger.Info("install attempt finished", fields...)
}
