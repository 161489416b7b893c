// Package refresh keeps the event cache current by re-syncing it from the
// source on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/starford/agenda/internal/index"
	"github.com/starford/agenda/internal/source"
)

// ErrInProgress is returned by RunOnce when another refresh is running.
var ErrInProgress = errors.New("refresh already in progress")

// Runner runs index.Sync one at a time, either on demand or on schedule.
type Runner struct {
	db     index.EventIndex
	src    source.Source
	logger *slog.Logger
	onSync index.EventCallback
	after  func(index.Stats)

	mu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithChangeCallback sets the per-event change callback passed to Sync.
func WithChangeCallback(cb index.EventCallback) Option {
	return func(r *Runner) { r.onSync = cb }
}

// WithAfterSync sets a hook called once after every successful Sync.
func WithAfterSync(fn func(index.Stats)) Option {
	return func(r *Runner) { r.after = fn }
}

// New returns a Runner syncing db from src.
func New(db index.EventIndex, src source.Source, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{db: db, src: src, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunOnce performs one Sync. Concurrent calls do not queue: the loser gets
// ErrInProgress.
func (r *Runner) RunOnce(ctx context.Context) (index.Stats, error) {
	if !r.mu.TryLock() {
		return index.Stats{}, ErrInProgress
	}
	defer r.mu.Unlock()

	stats, err := index.Sync(ctx, r.db, r.src, r.logger, r.onSync)
	if err != nil {
		return stats, err
	}
	if r.after != nil {
		r.after(stats)
	}
	return stats, nil
}

// Schedule runs RunOnce on spec (standard 5-field cron syntax, or a
// descriptor such as "@every 15m") until ctx is cancelled. An empty spec
// disables scheduling and returns immediately.
func (r *Runner) Schedule(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}
	logger := cronLogger{r.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("refresh: scheduled run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}

	c.Start()
	r.logger.Info("refresh: scheduled", slog.String("spec", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("refresh: stopped")
	return nil
}

// ValidateSpec reports whether spec parses as a cron schedule.
func ValidateSpec(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := cron.ParseStandard(spec)
	return err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
