package relay

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-channels/core"
)

type RunnerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:  2 * time.Second,
		BatchSize: 50,
	}
}

// Runner drains the outbox on a fixed interval until the context ends.
// Dispatch errors are logged and the loop keeps going; a broken broker must
// not stall the ticker.
type Runner struct {
	relay  core.OutboxRelay
	config RunnerConfig
	logger core.Logger
}

func NewRunner(relay core.OutboxRelay, config RunnerConfig, logger core.Logger) (*Runner, error) {
	if relay == nil {
		return nil, fmt.Errorf("relay: outbox relay is required")
	}
	defaults := DefaultRunnerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &Runner{
		relay:  relay,
		config: config,
		logger: glog.Ensure(logger),
	}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.relay == nil {
		return fmt.Errorf("relay: runner is not configured")
	}
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := r.relay.DispatchPending(ctx, r.config.BatchSize)
			if err != nil {
				r.logWarn("outbox dispatch failed", map[string]any{
					"claimed":   stats.Claimed,
					"delivered": stats.Delivered,
					"retried":   stats.Retried,
					"failed":    stats.Failed,
					"error":     err.Error(),
				})
			}
		}
	}
}

func (r *Runner) logWarn(msg string, fields map[string]any) {
	if r == nil || r.logger == nil {
		return
	}
	if fl, ok := r.logger.(core.FieldsLogger); ok {
		fl.WithFields(core.RedactSensitiveMap(fields)).Warn(msg)
		return
	}
	r.logger.Warn(msg)
}
