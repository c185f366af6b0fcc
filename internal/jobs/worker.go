// Package jobs runs the periodic maintenance sweeps: expiring freezes and
// resetting limit usage. Each run holds a lease so only one replica sweeps
// at a time.
package jobs

import (
	"context"
	"sync"
	"time"

	"wallet/internal/metrics"

	"go.uber.org/zap"
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Worker struct {
	name     string
	interval time.Duration
	lockTTL  time.Duration
	locker   Locker
	logger   *zap.Logger
	task     func(ctx context.Context) (int, error)
	stopChan chan struct{}
	stopOnce sync.Once
}

func newWorker(name string, interval time.Duration, locker Locker, logger *zap.Logger, task func(ctx context.Context) (int, error)) *Worker {
	return &Worker{
		name:     name,
		interval: interval,
		lockTTL:  interval,
		locker:   locker,
		logger:   logger.With(zap.String("job", name)),
		task:     task,
		stopChan: make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return w.name
}

// Start blocks, running the task once per interval until Stop is called or
// ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting job", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("job run failed", zap.Error(err))
			}
		case <-w.stopChan:
			w.logger.Info("stopping job")
			return
		case <-ctx.Done():
			w.logger.Info("context cancelled, stopping job")
			return
		}
	}
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// RunOnce runs the task if the lease is free. ran is false when another
// holder has it.
func (w *Worker) RunOnce(ctx context.Context) (ran bool, items int, err error) {
	acquired, err := w.locker.TryLock(ctx, w.name, w.lockTTL)
	if err != nil {
		metrics.JobRuns.WithLabelValues(w.name, "lock_error").Inc()
		return false, 0, err
	}
	if !acquired {
		metrics.JobRuns.WithLabelValues(w.name, "skipped").Inc()
		w.logger.Debug("lease held elsewhere, skipping run")
		return false, 0, nil
	}
	defer func() {
		// a fresh context so the lease is released even when ctx was cancelled mid-run
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if unlockErr := w.locker.Unlock(unlockCtx, w.name); unlockErr != nil {
			w.logger.Warn("release lease", zap.Error(unlockErr))
		}
	}()

	items, err = w.task(ctx)
	metrics.JobItems.WithLabelValues(w.name).Add(float64(items))
	if err != nil {
		metrics.JobRuns.WithLabelValues(w.name, "failed").Inc()
		return true, items, err
	}
	metrics.JobRuns.WithLabelValues(w.name, "succeeded").Inc()
	return true, items, nil
}
