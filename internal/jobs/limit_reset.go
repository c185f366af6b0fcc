package jobs

import (
	"context"
	"errors"
	"time"

	"wallet/internal/models"

	"go.uber.org/zap"
)

type LimitResetter interface {
	ResetPeriod(ctx context.Context, period models.ResetPeriod) (int, error)
}

var resetPeriods = []models.ResetPeriod{models.ResetDaily, models.ResetWeekly, models.ResetMonthly}

// NewLimitResetJob resets due limits of every period on each run. A failing
// period does not stop the others.
func NewLimitResetJob(resetter LimitResetter, locker Locker, interval time.Duration, logger *zap.Logger) *Worker {
	return newWorker("limit-reset", interval, locker, logger, func(ctx context.Context) (int, error) {
		total := 0
		var errs []error
		for _, period := range resetPeriods {
			count, err := resetter.ResetPeriod(ctx, period)
			total += count
			if err != nil {
				errs = append(errs, err)
			}
		}
		return total, errors.Join(errs...)
	})
}
