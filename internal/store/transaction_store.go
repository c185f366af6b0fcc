package store

import (
	"context"
	"fmt"
	"time"

	"wallet/internal/models"

	"github.com/google/uuid"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `id, wallet_id, external_transaction_id, type, amount, currency, balance_before, balance_after,
	reference_id, description, metadata, status, processed_at, created_by, created_at, updated_at`

func (s *TransactionStore) Create(ctx context.Context, tx Execer, txn models.Transaction) error {
	query := `
		INSERT INTO wallet_transactions (id, wallet_id, external_transaction_id, type, amount, currency, balance_before, balance_after,
			reference_id, description, metadata, status, processed_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := tx.ExecContext(ctx, query,
		txn.ID, txn.WalletID, txn.ExternalTransactionID, txn.Type, txn.Amount, txn.Currency,
		txn.BalanceBefore, txn.BalanceAfter, txn.ReferenceID, txn.Description, txn.Metadata,
		txn.Status, txn.ProcessedAt, txn.CreatedBy, txn.CreatedAt, txn.UpdatedAt,
	)
	return translate("TransactionStore.Create", "transaction with this reference", err)
}

func (s *TransactionStore) GetByID(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE id = $1
	`, transactionID)
	if err != nil {
		return models.Transaction{}, translate("TransactionStore.GetByID", "transaction", err)
	}
	return row, nil
}

func (s *TransactionStore) GetByReference(ctx context.Context, referenceID string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE reference_id = $1
	`, referenceID)
	if err != nil {
		return models.Transaction{}, translate("TransactionStore.GetByReference", "transaction", err)
	}
	return row, nil
}

// GetForUpdate locks the transaction row so that at most one caller
// processes it.
func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID uuid.UUID) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE id = $1
		FOR UPDATE
	`, transactionID)
	if err != nil {
		return models.Transaction{}, translate("TransactionStore.GetForUpdate", "transaction", err)
	}
	return row, nil
}

// UpdateStatus flips status from one value to another and returns rows
// affected; zero means the row was no longer in the from status.
func (s *TransactionStore) UpdateStatus(ctx context.Context, tx Execer, transactionID uuid.UUID, from, to models.TransactionStatus, processedAt *time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status = $3, processed_at = COALESCE($4, processed_at), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, transactionID, from, to, processedAt)
	if err != nil {
		return 0, fmt.Errorf("TransactionStore.UpdateStatus: %w", err)
	}
	return res.RowsAffected()
}
