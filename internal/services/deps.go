package services

import (
	"context"
	"encoding/json"
	"time"

	"wallet/internal/models"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BalanceStore interface {
	Create(ctx context.Context, tx store.Execer, balance models.Balance) error
	GetByWalletID(ctx context.Context, walletID uuid.UUID) (models.Balance, error)
	GetForUpdate(ctx context.Context, tx store.Getter, walletID uuid.UUID) (models.Balance, error)
	ConditionalWrite(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error)
	ConditionalWriteTx(ctx context.Context, tx store.Getter, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (int64, error)
	SaveReservation(ctx context.Context, tx store.Getter, walletID uuid.UUID, available, reserved decimal.Decimal, expectedVersion int64) (int64, error)
	HasSufficient(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	TotalByCurrency(ctx context.Context, currency string) (decimal.Decimal, error)
}

type WalletStore interface {
	Create(ctx context.Context, tx store.Execer, wallet models.Wallet) error
	Exists(ctx context.Context, walletID uuid.UUID) (bool, error)
}

type FreezeStore interface {
	Create(ctx context.Context, tx store.Execer, freeze models.Freeze) error
	GetByID(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error)
	HasActive(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error)
	IsInEffect(ctx context.Context, walletID uuid.UUID, now time.Time) (bool, error)
	IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType, now time.Time) (bool, error)
	TotalPartialInEffect(ctx context.Context, walletID uuid.UUID, now time.Time) (decimal.Decimal, error)
	MarkRemoved(ctx context.Context, tx store.Execer, freezeID, removedBy uuid.UUID, now time.Time) (int64, error)
	MarkExpired(ctx context.Context, tx store.Execer, freezeID uuid.UUID, now time.Time) (int64, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Freeze, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, activeOnly bool) ([]models.Freeze, error)
}

type LimitStore interface {
	Create(ctx context.Context, tx store.Execer, limit models.Limit) error
	GetByID(ctx context.Context, limitID uuid.UUID) (models.Limit, error)
	GetActive(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (models.Limit, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error)
	Accrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error)
	TryAccrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (int64, error)
	Reset(ctx context.Context, limitID uuid.UUID, now time.Time) (int64, error)
	ListDueForReset(ctx context.Context, period models.ResetPeriod, boundary time.Time) ([]models.Limit, error)
	UpdateAmount(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal) (int64, error)
	Deactivate(ctx context.Context, limitID uuid.UUID) (int64, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, txn models.Transaction) error
	GetByID(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error)
	GetByReference(ctx context.Context, referenceID string) (models.Transaction, error)
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID uuid.UUID) (models.Transaction, error)
	UpdateStatus(ctx context.Context, tx store.Execer, transactionID uuid.UUID, from, to models.TransactionStatus, processedAt *time.Time) (int64, error)
}

// AuditSink accepts entries for asynchronous delivery. Emit must not block.
type AuditSink interface {
	Emit(entry models.AuditLog)
}

type BalanceHub interface {
	BroadcastBalance(walletID string, update websocket.BalanceUpdate)
}

// auditEntry serializes old and new values to JSON text; a nil value is
// recorded as absent.
func auditEntry(walletID uuid.UUID, action, entityType string, entityID uuid.UUID, oldValue, newValue any, performedBy uuid.UUID) models.AuditLog {
	return models.AuditLog{
		WalletID:    walletID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		OldValue:    jsonText(oldValue),
		NewValue:    jsonText(newValue),
		PerformedBy: performedBy,
	}
}

func jsonText(value any) *string {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	text := string(raw)
	return &text
}
