package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type FreezeSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

func NewFreezeExpiryJob(sweeper FreezeSweeper, locker Locker, interval time.Duration, logger *zap.Logger) *Worker {
	return newWorker("freeze-expiry", interval, locker, logger, sweeper.SweepExpired)
}
