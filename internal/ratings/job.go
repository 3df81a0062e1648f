// Package ratings periodically derives destination ratings from reviews.
package ratings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const runTimeout = time.Minute

type Store interface {
	RecomputeRatings(ctx context.Context) (int64, error)
}

// Invalidator drops cached catalog data after ratings change.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Job recomputes ratings on a cron schedule. A run that is still going when
// the next one is due causes the next one to be skipped.
type Job struct {
	cron     *cron.Cron
	store    Store
	cache    Invalidator
	schedule string
	log      *slog.Logger
}

func NewJob(store Store, cache Invalidator, schedule string, log *slog.Logger) *Job {
	logger := cronLogger{log: log}
	return &Job{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		store:    store,
		cache:    cache,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the job and starts the scheduler. It fails on an invalid
// schedule.
func (j *Job) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.log.Error("rating recompute failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling rating job %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.log.Info("rating job started", "schedule", j.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running job until ctx is done.
func (j *Job) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
		j.log.Info("rating job stopped")
	case <-ctx.Done():
		j.log.Warn("rating job still running at shutdown")
	}
}

// Run performs one recompute and invalidates the catalog cache when any
// rating changed. It returns the number of destinations updated.
func (j *Job) Run(ctx context.Context) (int64, error) {
	n, err := j.store.RecomputeRatings(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	if err := j.cache.InvalidateAll(ctx); err != nil {
		j.log.Warn("cache invalidate after rating recompute failed", "err", err)
	}
	j.log.Info("ratings recomputed", "updated", n)
	return n, nil
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
