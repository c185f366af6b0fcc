package services

import (
	"context"
	"errors"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/money"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LimitService struct {
	txRunner    db.TxRunner
	limits      LimitStore
	wallets     WalletStore
	audit       AuditSink
	logger      *zap.Logger
	systemActor uuid.UUID
	now         func() time.Time
}

func NewLimitService(txRunner db.TxRunner, limits LimitStore, wallets WalletStore, audit AuditSink, logger *zap.Logger, systemActor uuid.UUID) *LimitService {
	return &LimitService{
		txRunner:    txRunner,
		limits:      limits,
		wallets:     wallets,
		audit:       audit,
		logger:      logger,
		systemActor: systemActor,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateLimitRequest struct {
	WalletID    uuid.UUID
	LimitType   models.LimitType
	LimitAmount decimal.Decimal
	ResetPeriod models.ResetPeriod
	PerformedBy uuid.UUID
}

func (s *LimitService) CreateLimit(ctx context.Context, req CreateLimitRequest) (models.Limit, error) {
	if !req.LimitType.Valid() {
		return models.Limit{}, apperr.Validation("unknown limit type %q", req.LimitType)
	}
	if !req.ResetPeriod.Valid() {
		return models.Limit{}, apperr.Validation("unknown reset period %q", req.ResetPeriod)
	}
	if err := positiveAmount(req.LimitAmount, "limit amount"); err != nil {
		return models.Limit{}, err
	}
	exists, err := s.wallets.Exists(ctx, req.WalletID)
	if err != nil {
		return models.Limit{}, err
	}
	if !exists {
		return models.Limit{}, apperr.NotFound("wallet not found")
	}
	_, err = s.limits.GetActive(ctx, req.WalletID, req.LimitType)
	switch {
	case err == nil:
		return models.Limit{}, apperr.Conflict("wallet already has an active %s limit", req.LimitType)
	case !errors.Is(err, apperr.ErrNotFound):
		return models.Limit{}, err
	}

	now := s.now()
	limit := models.Limit{
		Entity:       models.NewEntity(now),
		WalletID:     req.WalletID,
		LimitType:    req.LimitType,
		LimitAmount:  req.LimitAmount,
		CurrentUsage: decimal.Zero,
		ResetPeriod:  req.ResetPeriod,
		LastReset:    now,
		IsActive:     true,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.limits.Create(ctx, tx, limit)
	})
	if err != nil {
		return models.Limit{}, err
	}
	s.audit.Emit(auditEntry(limit.WalletID, models.ActionLimitCreated, models.EntityLimit, limit.ID,
		nil, limitValues(limit), req.PerformedBy))
	return limit, nil
}

func (s *LimitService) GetLimit(ctx context.Context, limitID uuid.UUID) (models.Limit, error) {
	return s.limits.GetByID(ctx, limitID)
}

func (s *LimitService) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error) {
	return s.limits.ListByWallet(ctx, walletID)
}

// WouldExceed reports whether accruing amount would push the active limit
// of limitType past its ceiling. A wallet with no such limit never exceeds.
func (s *LimitService) WouldExceed(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (bool, error) {
	limit, err := s.limits.GetActive(ctx, walletID, limitType)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return limit.WouldExceed(amount), nil
}

// Remaining is the headroom left on the active limit; ok is false when the
// wallet has none.
func (s *LimitService) Remaining(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (remaining decimal.Decimal, ok bool, err error) {
	limit, err := s.limits.GetActive(ctx, walletID, limitType)
	if errors.Is(err, apperr.ErrNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return limit.Remaining(), true, nil
}

// Accrue adds amount to the usage of the active limit in one statement. It
// does not re-check the ceiling; callers check with WouldExceed first and
// accept the window between the two. TryAccrue closes that window.
func (s *LimitService) Accrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal, performedBy uuid.UUID) error {
	if err := positiveAmount(amount, "amount"); err != nil {
		return err
	}
	rows, err := s.limits.Accrue(ctx, walletID, limitType, amount)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}
	s.emitUsage(ctx, walletID, limitType, amount, performedBy)
	return nil
}

// TryAccrue accrues only if the result stays within the ceiling and reports
// whether it did. Without an active limit it accrues nothing and returns true.
func (s *LimitService) TryAccrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal, performedBy uuid.UUID) (bool, error) {
	if err := positiveAmount(amount, "amount"); err != nil {
		return false, err
	}
	rows, err := s.limits.TryAccrue(ctx, walletID, limitType, amount)
	if err != nil {
		return false, err
	}
	if rows > 0 {
		s.emitUsage(ctx, walletID, limitType, amount, performedBy)
		return true, nil
	}
	_, err = s.limits.GetActive(ctx, walletID, limitType)
	if errors.Is(err, apperr.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *LimitService) Reset(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error) {
	limit, err := s.limits.GetByID(ctx, limitID)
	if err != nil {
		return models.Limit{}, err
	}
	now := s.now()
	rows, err := s.limits.Reset(ctx, limitID, now)
	if err != nil {
		return models.Limit{}, err
	}
	if rows == 0 {
		return models.Limit{}, apperr.NotFound("limit not found")
	}
	before := limitValues(limit)
	limit.CurrentUsage = decimal.Zero
	limit.LastReset = now
	limit.UpdatedAt = now
	s.audit.Emit(auditEntry(limit.WalletID, models.ActionLimitReset, models.EntityLimit, limit.ID,
		before, limitValues(limit), performedBy))
	return limit, nil
}

// ResetDue lists the active limits of period whose last reset predates the
// period boundary.
func (s *LimitService) ResetDue(ctx context.Context, period models.ResetPeriod) ([]models.Limit, error) {
	boundary, err := period.Boundary(s.now())
	if err != nil {
		return nil, apperr.Validation("unknown reset period %q", period)
	}
	return s.limits.ListDueForReset(ctx, period, boundary)
}

// ResetPeriod resets every due limit of period on behalf of the system actor.
// A failure on one limit is logged and the rest still reset.
func (s *LimitService) ResetPeriod(ctx context.Context, period models.ResetPeriod) (int, error) {
	due, err := s.ResetDue(ctx, period)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, limit := range due {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, err := s.Reset(ctx, limit.ID, s.systemActor); err != nil {
			s.logger.Error("reset limit",
				zap.Stringer("limit_id", limit.ID),
				zap.String("reset_period", string(period)),
				zap.Error(err),
			)
			continue
		}
		count++
	}
	if count > 0 {
		s.logger.Info("limits reset", zap.String("reset_period", string(period)), zap.Int("count", count))
	}
	return count, nil
}

func (s *LimitService) UpdateLimitAmount(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Limit, error) {
	if err := positiveAmount(amount, "limit amount"); err != nil {
		return models.Limit{}, err
	}
	limit, err := s.limits.GetByID(ctx, limitID)
	if err != nil {
		return models.Limit{}, err
	}
	rows, err := s.limits.UpdateAmount(ctx, limitID, amount)
	if err != nil {
		return models.Limit{}, err
	}
	if rows == 0 {
		return models.Limit{}, apperr.InvalidState("limit is not active")
	}
	before := limitValues(limit)
	limit.LimitAmount = amount
	limit.UpdatedAt = s.now()
	s.audit.Emit(auditEntry(limit.WalletID, models.ActionLimitUpdated, models.EntityLimit, limit.ID,
		before, limitValues(limit), performedBy))
	return limit, nil
}

func (s *LimitService) Deactivate(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error) {
	limit, err := s.limits.GetByID(ctx, limitID)
	if err != nil {
		return models.Limit{}, err
	}
	rows, err := s.limits.Deactivate(ctx, limitID)
	if err != nil {
		return models.Limit{}, err
	}
	if rows == 0 {
		return models.Limit{}, apperr.InvalidState("limit is already inactive")
	}
	before := limitValues(limit)
	limit.IsActive = false
	limit.UpdatedAt = s.now()
	s.audit.Emit(auditEntry(limit.WalletID, models.ActionLimitDeactivated, models.EntityLimit, limit.ID,
		before, limitValues(limit), performedBy))
	return limit, nil
}

// emitUsage audits an accrual against the limit row it landed on. The row is
// re-read after the write so the entry carries the resulting usage.
func (s *LimitService) emitUsage(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal, performedBy uuid.UUID) {
	values := map[string]string{"limit_type": string(limitType), "accrued": money.Format(amount)}
	entityID := walletID
	if limit, err := s.limits.GetActive(ctx, walletID, limitType); err == nil {
		entityID = limit.ID
		values["current_usage"] = money.Format(limit.CurrentUsage)
	}
	s.audit.Emit(auditEntry(walletID, models.ActionLimitUsageUpdated, models.EntityLimit, entityID,
		nil, values, performedBy))
}

func limitValues(l models.Limit) map[string]any {
	return map[string]any{
		"limit_type":    l.LimitType,
		"limit_amount":  money.Format(l.LimitAmount),
		"current_usage": money.Format(l.CurrentUsage),
		"reset_period":  l.ResetPeriod,
		"is_active":     l.IsActive,
	}
}

func positiveAmount(amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return apperr.Validation("%s must be positive", field)
	}
	if !amount.Equal(amount.Truncate(money.Scale)) {
		return apperr.Validation("%s has more than %d decimal places", field, money.Scale)
	}
	if !money.InRange(amount) {
		return apperr.Validation("%s has more than %d integer digits", field, money.IntegerDigits)
	}
	return nil
}
