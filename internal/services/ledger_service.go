package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/db"
	"wallet/internal/metrics"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService owns every mutation of a wallet balance. Available-balance
// deltas use optimistic concurrency on the row version and are retried a
// bounded number of times; reserve and release hold the row lock instead
// because they move value between two fields.
type LedgerService struct {
	txRunner   db.TxRunner
	balances   BalanceStore
	audit      AuditSink
	hub        BalanceHub
	logger     *zap.Logger
	maxRetries int
	sleep      func(ctx context.Context, attempt int) error
}

func NewLedgerService(txRunner db.TxRunner, balances BalanceStore, audit AuditSink, hub BalanceHub, logger *zap.Logger, maxRetries int) *LedgerService {
	return &LedgerService{
		txRunner:   txRunner,
		balances:   balances,
		audit:      audit,
		hub:        hub,
		logger:     logger,
		maxRetries: maxRetries,
		sleep:      db.SleepWithBackoff,
	}
}

func (s *LedgerService) GetBalance(ctx context.Context, walletID uuid.UUID) (models.Balance, error) {
	return s.balances.GetByWalletID(ctx, walletID)
}

func (s *LedgerService) HasSufficientBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, apperr.Validation("amount must be positive")
	}
	return s.balances.HasSufficient(ctx, walletID, amount)
}

func (s *LedgerService) TotalByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	return s.balances.TotalByCurrency(ctx, currency)
}

// ApplyDelta adds delta to the available balance. Each attempt re-reads the
// balance, rejects a result below zero and writes conditionally on the
// version it read. A lost race is retried up to maxRetries times after the
// first attempt; when the budget is spent the caller gets
// apperr.ErrConcurrentModification and the balance is untouched.
func (s *LedgerService) ApplyDelta(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, performedBy uuid.UUID) (models.Balance, error) {
	if err := validateDelta(delta); err != nil {
		return models.Balance{}, err
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, attempt); err != nil {
				return models.Balance{}, err
			}
		}

		current, err := s.balances.GetByWalletID(ctx, walletID)
		if err != nil {
			return models.Balance{}, err
		}
		next := current.Available.Add(delta)
		if next.IsNegative() {
			metrics.LedgerMutations.WithLabelValues("apply_delta", "insufficient_funds").Inc()
			return models.Balance{}, apperr.New(apperr.KindInsufficientFunds,
				"insufficient funds: available %s, requested %s", money.Format(current.Available), money.Format(delta.Neg()))
		}

		version, err := s.balances.ConditionalWrite(ctx, walletID, delta, current.Version)
		if errors.Is(err, apperr.ErrConflict) {
			metrics.LedgerConflicts.Inc()
			s.logger.Debug("balance version conflict",
				zap.Stringer("wallet_id", walletID),
				zap.Int64("expected_version", current.Version),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return models.Balance{}, err
		}

		updated := current
		updated.Available = next
		updated.Version = version
		updated.UpdatedAt = time.Now().UTC()

		metrics.LedgerAttempts.Observe(float64(attempt + 1))
		change := BalanceChange{Before: current, After: updated, Delta: delta}
		s.Publish(change, performedBy)
		return updated, nil
	}

	metrics.LedgerRetriesExhausted.Inc()
	metrics.LedgerMutations.WithLabelValues("apply_delta", "concurrent_modification").Inc()
	s.logger.Warn("balance update abandoned after retries",
		zap.Stringer("wallet_id", walletID),
		zap.Int("attempts", s.maxRetries+1),
	)
	return models.Balance{}, apperr.New(apperr.KindConcurrentModification,
		"concurrent modification of wallet %s, retry the request", walletID)
}

// BalanceChange describes one committed available-balance mutation.
type BalanceChange struct {
	Before models.Balance
	After  models.Balance
	Delta  decimal.Decimal
}

// ApplyDeltaTx adds delta to the available balance inside tx, holding the
// row lock until tx ends. The result must stay at or above floor. Nothing is
// audited or broadcast; the caller passes the change to Publish once tx has
// committed.
func (s *LedgerService) ApplyDeltaTx(ctx context.Context, tx store.Getter, walletID uuid.UUID, delta, floor decimal.Decimal) (BalanceChange, error) {
	if err := validateDelta(delta); err != nil {
		return BalanceChange{}, err
	}
	current, err := s.balances.GetForUpdate(ctx, tx, walletID)
	if err != nil {
		return BalanceChange{}, err
	}
	next := current.Available.Add(delta)
	if next.LessThan(floor) {
		metrics.LedgerMutations.WithLabelValues("apply_delta", "insufficient_funds").Inc()
		return BalanceChange{}, apperr.New(apperr.KindInsufficientFunds,
			"insufficient funds: spendable %s, requested %s", money.Format(current.Available.Sub(floor)), money.Format(delta.Neg()))
	}

	version, err := s.balances.ConditionalWriteTx(ctx, tx, walletID, delta, current.Version)
	if errors.Is(err, apperr.ErrConflict) {
		metrics.LedgerConflicts.Inc()
		return BalanceChange{}, apperr.New(apperr.KindConcurrentModification,
			"concurrent modification of wallet %s, retry the request", walletID)
	}
	if err != nil {
		return BalanceChange{}, err
	}

	updated := current
	updated.Available = next
	updated.Version = version
	updated.UpdatedAt = time.Now().UTC()
	return BalanceChange{Before: current, After: updated, Delta: delta}, nil
}

// Publish records a committed change: metrics, the BALANCE_UPDATED audit
// entry and the websocket broadcast.
func (s *LedgerService) Publish(change BalanceChange, performedBy uuid.UUID) {
	metrics.LedgerMutations.WithLabelValues("apply_delta", "committed").Inc()
	s.audit.Emit(auditEntry(change.After.WalletID, models.ActionBalanceUpdated, models.EntityBalance, change.After.ID,
		map[string]string{"available_balance": money.Format(change.Before.Available)},
		map[string]string{"available_balance": money.Format(change.After.Available), "delta": money.Format(change.Delta)},
		performedBy))
	s.broadcast(change.After)
}

func validateDelta(delta decimal.Decimal) error {
	if delta.IsZero() {
		return apperr.Validation("delta must be non-zero")
	}
	if !delta.Equal(delta.Truncate(money.Scale)) {
		return apperr.Validation("delta has more than %d decimal places", money.Scale)
	}
	if !money.InRange(delta) {
		return apperr.Validation("delta has more than %d integer digits", money.IntegerDigits)
	}
	return nil
}

// Reserve moves amount from available to reserved under the balance row lock.
func (s *LedgerService) Reserve(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, apperr.Validation("amount must be positive")
	}
	before, after, err := s.moveReserved(ctx, walletID, func(current models.Balance) (decimal.Decimal, decimal.Decimal, error) {
		if current.Available.LessThan(amount) {
			return decimal.Zero, decimal.Zero, apperr.New(apperr.KindInsufficientFunds,
				"insufficient available balance for reservation: available %s, requested %s",
				money.Format(current.Available), money.Format(amount))
		}
		return current.Available.Sub(amount), current.Reserved.Add(amount), nil
	})
	if err != nil {
		metrics.LedgerMutations.WithLabelValues("reserve", outcome(err)).Inc()
		return models.Balance{}, err
	}
	metrics.LedgerMutations.WithLabelValues("reserve", "committed").Inc()
	s.audit.Emit(auditEntry(walletID, models.ActionBalanceReserved, models.EntityBalance, after.ID,
		reservationValues(before), reservationValues(after), performedBy))
	s.broadcast(after)
	return after, nil
}

// Release moves amount from reserved back to available under the row lock.
func (s *LedgerService) Release(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, apperr.Validation("amount must be positive")
	}
	before, after, err := s.moveReserved(ctx, walletID, func(current models.Balance) (decimal.Decimal, decimal.Decimal, error) {
		if current.Reserved.LessThan(amount) {
			return decimal.Zero, decimal.Zero, apperr.New(apperr.KindInvalidOperation,
				"cannot release %s: only %s reserved", money.Format(amount), money.Format(current.Reserved))
		}
		return current.Available.Add(amount), current.Reserved.Sub(amount), nil
	})
	if err != nil {
		metrics.LedgerMutations.WithLabelValues("release", outcome(err)).Inc()
		return models.Balance{}, err
	}
	metrics.LedgerMutations.WithLabelValues("release", "committed").Inc()
	s.audit.Emit(auditEntry(walletID, models.ActionBalanceReleased, models.EntityBalance, after.ID,
		reservationValues(before), reservationValues(after), performedBy))
	s.broadcast(after)
	return after, nil
}

// moveReserved runs plan against the locked row and persists both fields.
func (s *LedgerService) moveReserved(ctx context.Context, walletID uuid.UUID, plan func(models.Balance) (decimal.Decimal, decimal.Decimal, error)) (models.Balance, models.Balance, error) {
	var before, after models.Balance
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.balances.GetForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		available, reserved, err := plan(current)
		if err != nil {
			return err
		}
		version, err := s.balances.SaveReservation(ctx, tx, walletID, available, reserved, current.Version)
		if err != nil {
			return err
		}
		before = current
		after = current
		after.Available = available
		after.Reserved = reserved
		after.Version = version
		after.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return models.Balance{}, models.Balance{}, fmt.Errorf("wallet %s: %w", walletID, err)
	}
	return before, after, nil
}

func (s *LedgerService) broadcast(balance models.Balance) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastBalance(balance.WalletID.String(), websocket.BalanceUpdate{
		WalletID:  balance.WalletID.String(),
		Available: money.Format(balance.Available),
		Reserved:  money.Format(balance.Reserved),
		Currency:  balance.Currency,
		Version:   balance.Version,
	})
}

func reservationValues(b models.Balance) map[string]string {
	return map[string]string{
		"available_balance": money.Format(b.Available),
		"reserved_balance":  money.Format(b.Reserved),
	}
}

func outcome(err error) string {
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
