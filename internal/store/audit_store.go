package store

import (
	"context"
	"fmt"

	"wallet/internal/models"
)

// AuditStore appends audit entries. It is written to from the audit sink's
// goroutine, never from inside a mutating transaction.
type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Write(ctx context.Context, entry models.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_audit_logs (id, wallet_id, action, entity_type, entity_id, old_value, new_value, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.WalletID, entry.Action, entry.EntityType, entry.EntityID,
		entry.OldValue, entry.NewValue, entry.PerformedBy, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("AuditStore.Write: %w", err)
	}
	return nil
}

func (s *AuditStore) Name() string {
	return "postgres"
}
