package services

import (
	"context"
	"errors"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/store"
	"wallet/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the slice of LedgerService the transaction processor drives.
type Ledger interface {
	GetBalance(ctx context.Context, walletID uuid.UUID) (models.Balance, error)
	ApplyDeltaTx(ctx context.Context, tx store.Getter, walletID uuid.UUID, delta, floor decimal.Decimal) (BalanceChange, error)
	Publish(change BalanceChange, performedBy uuid.UUID)
}

type FreezeGuard interface {
	IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error)
	TotalFrozenAmount(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

type LimitGuard interface {
	WouldExceed(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (bool, error)
	Accrue(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal, performedBy uuid.UUID) error
}

type TransactionService struct {
	txRunner     db.TxRunner
	transactions TransactionStore
	ledger       Ledger
	freezes      FreezeGuard
	limits       LimitGuard
	audit        AuditSink
	logger       *zap.Logger
	now          func() time.Time
}

func NewTransactionService(txRunner db.TxRunner, transactions TransactionStore, ledger Ledger, freezes FreezeGuard, limits LimitGuard, audit AuditSink, logger *zap.Logger) *TransactionService {
	return &TransactionService{
		txRunner:     txRunner,
		transactions: transactions,
		ledger:       ledger,
		freezes:      freezes,
		limits:       limits,
		audit:        audit,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type CreateTransactionRequest struct {
	WalletID              uuid.UUID
	ExternalTransactionID *string
	Type                  models.TransactionType
	Amount                decimal.Decimal
	Currency              string
	ReferenceID           *string
	Description           string
	Metadata              models.Metadata
	PerformedBy           uuid.UUID
}

// Create records a PENDING transaction with a snapshot of the available
// balance before and after it would apply. A reference id already in use
// yields apperr.ErrConflict.
func (s *TransactionService) Create(ctx context.Context, req CreateTransactionRequest) (models.Transaction, error) {
	if !req.Type.Valid() {
		return models.Transaction{}, apperr.Validation("transaction type must be CREDIT or DEBIT")
	}
	if err := positiveAmount(req.Amount, "amount"); err != nil {
		return models.Transaction{}, err
	}
	if err := validator.ValidateCurrency(req.Currency); err != nil {
		return models.Transaction{}, apperr.Validation("%s", err.Error())
	}
	if err := validator.ValidateReference(req.ReferenceID); err != nil {
		return models.Transaction{}, apperr.Validation("%s", err.Error())
	}

	balance, err := s.ledger.GetBalance(ctx, req.WalletID)
	if err != nil {
		return models.Transaction{}, err
	}
	if balance.Currency != req.Currency {
		return models.Transaction{}, apperr.Validation("currency %s does not match wallet currency %s", req.Currency, balance.Currency)
	}
	if req.ReferenceID != nil {
		_, err := s.transactions.GetByReference(ctx, *req.ReferenceID)
		switch {
		case err == nil:
			return models.Transaction{}, apperr.Conflict("transaction with reference %s already exists", *req.ReferenceID)
		case !errors.Is(err, apperr.ErrNotFound):
			return models.Transaction{}, err
		}
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}
	txn := models.Transaction{
		Entity:                models.NewEntity(s.now()),
		WalletID:              req.WalletID,
		ExternalTransactionID: req.ExternalTransactionID,
		Type:                  req.Type,
		Amount:                req.Amount,
		Currency:              req.Currency,
		BalanceBefore:         balance.Available,
		BalanceAfter:          balance.Available.Add(req.Type.Signed(req.Amount)),
		ReferenceID:           req.ReferenceID,
		Description:           req.Description,
		Metadata:              metadata,
		Status:                models.TransactionPending,
		CreatedBy:             req.PerformedBy,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.transactions.Create(ctx, tx, txn)
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.audit.Emit(auditEntry(txn.WalletID, models.ActionTransactionCreated, models.EntityTransaction, txn.ID,
		nil, transactionValues(txn), req.PerformedBy))
	s.logger.Info("transaction created",
		zap.Stringer("transaction_id", txn.ID),
		zap.Stringer("wallet_id", txn.WalletID),
		zap.String("type", string(txn.Type)),
	)
	return txn, nil
}

func (s *TransactionService) Get(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error) {
	return s.transactions.GetByID(ctx, transactionID)
}

func (s *TransactionService) GetByReference(ctx context.Context, referenceID string) (models.Transaction, error) {
	return s.transactions.GetByReference(ctx, referenceID)
}

// Process applies a PENDING transaction to its wallet exactly once. Freeze,
// funds and limit checks run first against the live balance rather than the
// creation snapshot. The balance write and the PENDING to COMPLETED flip then
// share one database transaction, with both rows locked, so either both
// commit or neither does and a retried call can never apply the amount
// twice. Audit, broadcast and limit accrual follow the commit.
func (s *TransactionService) Process(ctx context.Context, transactionID, performedBy uuid.UUID) (models.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	if txn.Status != models.TransactionPending {
		return models.Transaction{}, apperr.InvalidState("transaction is %s, only pending transactions can be processed", txn.Status)
	}
	floor, err := s.checkAllowed(ctx, txn)
	if err != nil {
		return models.Transaction{}, err
	}

	var (
		processed models.Transaction
		change    BalanceChange
	)
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if locked.Status != models.TransactionPending {
			return apperr.InvalidState("transaction is %s, only pending transactions can be processed", locked.Status)
		}
		change, err = s.ledger.ApplyDeltaTx(ctx, tx, locked.WalletID, locked.Type.Signed(locked.Amount), floor)
		if err != nil {
			return err
		}

		now := s.now()
		rows, err := s.transactions.UpdateStatus(ctx, tx, locked.ID, models.TransactionPending, models.TransactionCompleted, &now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.InvalidState("transaction is no longer pending")
		}
		locked.Status = models.TransactionCompleted
		locked.ProcessedAt = &now
		locked.UpdatedAt = now
		processed = locked
		return nil
	})
	if errors.Is(err, db.ErrRetryLimitExceeded) || db.IsRetryable(err) {
		return models.Transaction{}, apperr.New(apperr.KindConcurrentModification,
			"concurrent modification of wallet %s, retry the request", txn.WalletID)
	}
	if err != nil {
		return models.Transaction{}, err
	}

	s.ledger.Publish(change, performedBy)
	s.accrue(ctx, processed, performedBy)
	s.audit.Emit(auditEntry(processed.WalletID, models.ActionTransactionProcessed, models.EntityTransaction, processed.ID,
		map[string]string{"status": string(models.TransactionPending)},
		map[string]string{"status": string(models.TransactionCompleted)},
		performedBy))
	s.logger.Info("transaction processed",
		zap.Stringer("transaction_id", processed.ID),
		zap.Stringer("wallet_id", processed.WalletID),
	)
	return processed, nil
}

// checkAllowed runs the pre-ledger checks in order: full freeze, funds net
// of partial freezes for debits, then limits. It returns the floor the
// available balance must stay at once the amount is applied.
func (s *TransactionService) checkAllowed(ctx context.Context, txn models.Transaction) (decimal.Decimal, error) {
	frozen, err := s.freezes.IsInEffectByType(ctx, txn.WalletID, models.FreezeFull)
	if err != nil {
		return decimal.Zero, err
	}
	if frozen {
		return decimal.Zero, apperr.New(apperr.KindFrozen, "wallet %s is frozen", txn.WalletID)
	}

	floor := decimal.Zero
	if txn.Type == models.TransactionDebit {
		balance, err := s.ledger.GetBalance(ctx, txn.WalletID)
		if err != nil {
			return decimal.Zero, err
		}
		floor, err = s.freezes.TotalFrozenAmount(ctx, txn.WalletID)
		if err != nil {
			return decimal.Zero, err
		}
		spendable := balance.Available.Sub(floor)
		if spendable.LessThan(txn.Amount) {
			return decimal.Zero, apperr.New(apperr.KindInsufficientFunds,
				"insufficient funds: spendable %s, requested %s", money.Format(spendable), money.Format(txn.Amount))
		}
	}

	for _, limitType := range limitTypesFor(txn.Type) {
		exceeded, err := s.limits.WouldExceed(ctx, txn.WalletID, limitType, txn.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		if exceeded {
			return decimal.Zero, apperr.New(apperr.KindLimitExceeded, "%s limit exceeded for wallet %s", limitType, txn.WalletID)
		}
	}
	return floor, nil
}

// accrue records usage after commit. The balance already moved, so a
// failure here is logged rather than returned.
func (s *TransactionService) accrue(ctx context.Context, txn models.Transaction, performedBy uuid.UUID) {
	for _, limitType := range limitTypesFor(txn.Type) {
		if err := s.limits.Accrue(ctx, txn.WalletID, limitType, txn.Amount, performedBy); err != nil {
			s.logger.Error("accrue limit usage",
				zap.Stringer("transaction_id", txn.ID),
				zap.String("limit_type", string(limitType)),
				zap.Error(err),
			)
		}
	}
}

// UpdateStatus moves a PENDING transaction to status without touching the
// balance. Terminal transactions never change.
func (s *TransactionService) UpdateStatus(ctx context.Context, transactionID uuid.UUID, status models.TransactionStatus, performedBy uuid.UUID) (models.Transaction, error) {
	if !status.Valid() {
		return models.Transaction{}, apperr.Validation("unknown transaction status %q", status)
	}
	if status == models.TransactionPending {
		return models.Transaction{}, apperr.InvalidState("transaction cannot move back to PENDING")
	}

	var updated models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		txn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != models.TransactionPending {
			return apperr.InvalidState("transaction is %s and cannot change status", txn.Status)
		}
		now := s.now()
		var processedAt *time.Time
		if status == models.TransactionCompleted {
			processedAt = &now
		}
		rows, err := s.transactions.UpdateStatus(ctx, tx, txn.ID, models.TransactionPending, status, processedAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.InvalidState("transaction is no longer pending")
		}
		txn.Status = status
		if processedAt != nil {
			txn.ProcessedAt = processedAt
		}
		txn.UpdatedAt = now
		updated = txn
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.audit.Emit(auditEntry(updated.WalletID, models.ActionTransactionStatusUpdated, models.EntityTransaction, updated.ID,
		map[string]string{"status": string(models.TransactionPending)},
		map[string]string{"status": string(status)},
		performedBy))
	return updated, nil
}

func limitTypesFor(t models.TransactionType) []models.LimitType {
	if t == models.TransactionDebit {
		return []models.LimitType{models.LimitTransaction, models.LimitDebit}
	}
	return []models.LimitType{models.LimitTransaction, models.LimitCredit}
}

func transactionValues(t models.Transaction) map[string]any {
	values := map[string]any{
		"type":           t.Type,
		"amount":         money.Format(t.Amount),
		"currency":       t.Currency,
		"balance_before": money.Format(t.BalanceBefore),
		"balance_after":  money.Format(t.BalanceAfter),
		"status":         t.Status,
	}
	if t.ReferenceID != nil {
		values["reference_id"] = *t.ReferenceID
	}
	return values
}
