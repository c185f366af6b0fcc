package handlers

import (
	"time"

	"wallet/internal/models"
	"wallet/internal/money"

	"github.com/google/uuid"
)

type balanceResponse struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	Available string    `json:"available_balance"`
	Pending   string    `json:"pending_balance"`
	Reserved  string    `json:"reserved_balance"`
	Total     string    `json:"total_balance"`
	Currency  string    `json:"currency"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBalanceResponse(b models.Balance) balanceResponse {
	return balanceResponse{
		WalletID:  b.WalletID,
		Available: money.Format(b.Available),
		Pending:   money.Format(b.Pending),
		Reserved:  money.Format(b.Reserved),
		Total:     money.Format(b.Total()),
		Currency:  b.Currency,
		Version:   b.Version,
		UpdatedAt: b.UpdatedAt,
	}
}

type freezeResponse struct {
	ID           uuid.UUID           `json:"id"`
	WalletID     uuid.UUID           `json:"wallet_id"`
	FreezeType   models.FreezeType   `json:"freeze_type"`
	FrozenAmount *string             `json:"frozen_amount,omitempty"`
	Reason       string              `json:"reason"`
	Status       models.FreezeStatus `json:"status"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	CreatedBy    uuid.UUID           `json:"created_by"`
	RemovedBy    *uuid.UUID          `json:"removed_by,omitempty"`
	RemovedAt    *time.Time          `json:"removed_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func toFreezeResponse(f models.Freeze) freezeResponse {
	resp := freezeResponse{
		ID:         f.ID,
		WalletID:   f.WalletID,
		FreezeType: f.FreezeType,
		Reason:     f.Reason,
		Status:     f.Status,
		ExpiresAt:  f.ExpiresAt,
		CreatedBy:  f.CreatedBy,
		RemovedBy:  f.RemovedBy,
		RemovedAt:  f.RemovedAt,
		CreatedAt:  f.CreatedAt,
	}
	if f.FrozenAmount.Valid {
		amount := money.Format(f.FrozenAmount.Decimal)
		resp.FrozenAmount = &amount
	}
	return resp
}

func toFreezeResponses(freezes []models.Freeze) []freezeResponse {
	out := make([]freezeResponse, 0, len(freezes))
	for _, f := range freezes {
		out = append(out, toFreezeResponse(f))
	}
	return out
}

type limitResponse struct {
	ID           uuid.UUID          `json:"id"`
	WalletID     uuid.UUID          `json:"wallet_id"`
	LimitType    models.LimitType   `json:"limit_type"`
	LimitAmount  string             `json:"limit_amount"`
	CurrentUsage string             `json:"current_usage"`
	Remaining    string             `json:"remaining"`
	ResetPeriod  models.ResetPeriod `json:"reset_period"`
	LastReset    time.Time          `json:"last_reset"`
	IsActive     bool               `json:"is_active"`
}

func toLimitResponse(l models.Limit) limitResponse {
	return limitResponse{
		ID:           l.ID,
		WalletID:     l.WalletID,
		LimitType:    l.LimitType,
		LimitAmount:  money.Format(l.LimitAmount),
		CurrentUsage: money.Format(l.CurrentUsage),
		Remaining:    money.Format(l.Remaining()),
		ResetPeriod:  l.ResetPeriod,
		LastReset:    l.LastReset,
		IsActive:     l.IsActive,
	}
}

type transactionResponse struct {
	ID                    uuid.UUID                `json:"id"`
	WalletID              uuid.UUID                `json:"wallet_id"`
	ExternalTransactionID *string                  `json:"external_transaction_id,omitempty"`
	Type                  models.TransactionType   `json:"type"`
	Amount                string                   `json:"amount"`
	Currency              string                   `json:"currency"`
	BalanceBefore         string                   `json:"balance_before"`
	BalanceAfter          string                   `json:"balance_after"`
	ReferenceID           *string                  `json:"reference_id,omitempty"`
	Description           string                   `json:"description"`
	Metadata              models.Metadata          `json:"metadata"`
	Status                models.TransactionStatus `json:"status"`
	ProcessedAt           *time.Time               `json:"processed_at,omitempty"`
	CreatedBy             uuid.UUID                `json:"created_by"`
	CreatedAt             time.Time                `json:"created_at"`
}

func toTransactionResponse(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:                    t.ID,
		WalletID:              t.WalletID,
		ExternalTransactionID: t.ExternalTransactionID,
		Type:                  t.Type,
		Amount:                money.Format(t.Amount),
		Currency:              t.Currency,
		BalanceBefore:         money.Format(t.BalanceBefore),
		BalanceAfter:          money.Format(t.BalanceAfter),
		ReferenceID:           t.ReferenceID,
		Description:           t.Description,
		Metadata:              t.Metadata,
		Status:                t.Status,
		ProcessedAt:           t.ProcessedAt,
		CreatedBy:             t.CreatedBy,
		CreatedAt:             t.CreatedAt,
	}
}
