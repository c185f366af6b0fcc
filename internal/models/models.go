package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity carries the identity and timestamps shared by every persisted record.
type Entity struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func NewEntity(now time.Time) Entity {
	return Entity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

type Wallet struct {
	Entity
	OwnerID  uuid.UUID `db:"owner_id" json:"owner_id"`
	Currency string    `db:"currency" json:"currency"`
}

type Balance struct {
	Entity
	WalletID  uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Available decimal.Decimal `db:"available_balance" json:"available_balance"`
	Pending   decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	Reserved  decimal.Decimal `db:"reserved_balance" json:"reserved_balance"`
	Currency  string          `db:"currency" json:"currency"`
	Version   int64           `db:"version" json:"version"`
}

// Total is available plus reserved; pending funds are not yet owned.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Reserved)
}

type FreezeType string

const (
	FreezeFull    FreezeType = "FULL"
	FreezePartial FreezeType = "PARTIAL"
)

func (t FreezeType) Valid() bool {
	return t == FreezeFull || t == FreezePartial
}

type FreezeStatus string

const (
	FreezeActive  FreezeStatus = "active"
	FreezeRemoved FreezeStatus = "removed"
	FreezeExpired FreezeStatus = "expired"
)

type Freeze struct {
	Entity
	WalletID     uuid.UUID           `db:"wallet_id" json:"wallet_id"`
	FreezeType   FreezeType          `db:"freeze_type" json:"freeze_type"`
	FrozenAmount decimal.NullDecimal `db:"frozen_amount" json:"frozen_amount"`
	Reason       string              `db:"reason" json:"reason"`
	Status       FreezeStatus        `db:"status" json:"status"`
	ExpiresAt    *time.Time          `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy    uuid.UUID           `db:"created_by" json:"created_by"`
	RemovedBy    *uuid.UUID          `db:"removed_by" json:"removed_by,omitempty"`
	RemovedAt    *time.Time          `db:"removed_at" json:"removed_at,omitempty"`
}

// InEffect reports whether the freeze restricts the wallet at instant now.
func (f Freeze) InEffect(now time.Time) bool {
	if f.Status != FreezeActive {
		return false
	}
	return f.ExpiresAt == nil || f.ExpiresAt.After(now)
}

type LimitType string

const (
	LimitTransaction LimitType = "TRANSACTION"
	LimitDebit       LimitType = "DEBIT"
	LimitCredit      LimitType = "CREDIT"
	LimitWithdrawal  LimitType = "WITHDRAWAL"
)

func (t LimitType) Valid() bool {
	switch t {
	case LimitTransaction, LimitDebit, LimitCredit, LimitWithdrawal:
		return true
	}
	return false
}

type ResetPeriod string

const (
	ResetDaily   ResetPeriod = "daily"
	ResetWeekly  ResetPeriod = "weekly"
	ResetMonthly ResetPeriod = "monthly"
)

var ErrUnknownResetPeriod = errors.New("unknown reset period")

// Boundary is the instant before which a limit of this period is due for reset.
func (p ResetPeriod) Boundary(now time.Time) (time.Time, error) {
	switch p {
	case ResetDaily:
		return now.AddDate(0, 0, -1), nil
	case ResetWeekly:
		return now.AddDate(0, 0, -7), nil
	case ResetMonthly:
		return now.AddDate(0, -1, 0), nil
	}
	return time.Time{}, ErrUnknownResetPeriod
}

func (p ResetPeriod) Valid() bool {
	_, err := p.Boundary(time.Time{})
	return err == nil
}

type Limit struct {
	Entity
	WalletID     uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	LimitType    LimitType       `db:"limit_type" json:"limit_type"`
	LimitAmount  decimal.Decimal `db:"limit_amount" json:"limit_amount"`
	CurrentUsage decimal.Decimal `db:"current_usage" json:"current_usage"`
	ResetPeriod  ResetPeriod     `db:"reset_period" json:"reset_period"`
	LastReset    time.Time       `db:"last_reset" json:"last_reset"`
	IsActive     bool            `db:"is_active" json:"is_active"`
}

func (l Limit) Remaining() decimal.Decimal {
	remaining := l.LimitAmount.Sub(l.CurrentUsage)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (l Limit) WouldExceed(amount decimal.Decimal) bool {
	return l.CurrentUsage.Add(amount).GreaterThan(l.LimitAmount)
}

type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

func (t TransactionType) Valid() bool {
	return t == TransactionCredit || t == TransactionDebit
}

// Signed returns amount with the sign the ledger applies for this type.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TransactionDebit {
		return amount.Neg()
	}
	return amount
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed:
		return true
	}
	return false
}

// Metadata is free-form caller context stored as JSONB.
type Metadata map[string]string

// Value renders JSON text; lib/pq would send []byte as bytea.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("metadata: unsupported source type")
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

type Transaction struct {
	Entity
	WalletID              uuid.UUID         `db:"wallet_id" json:"wallet_id"`
	ExternalTransactionID *string           `db:"external_transaction_id" json:"external_transaction_id,omitempty"`
	Type                  TransactionType   `db:"type" json:"type"`
	Amount                decimal.Decimal   `db:"amount" json:"amount"`
	Currency              string            `db:"currency" json:"currency"`
	BalanceBefore         decimal.Decimal   `db:"balance_before" json:"balance_before"`
	BalanceAfter          decimal.Decimal   `db:"balance_after" json:"balance_after"`
	ReferenceID           *string           `db:"reference_id" json:"reference_id,omitempty"`
	Description           string            `db:"description" json:"description"`
	Metadata              Metadata          `db:"metadata" json:"metadata"`
	Status                TransactionStatus `db:"status" json:"status"`
	ProcessedAt           *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	CreatedBy             uuid.UUID         `db:"created_by" json:"created_by"`
}

type AuditLog struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WalletID    uuid.UUID `db:"wallet_id" json:"wallet_id"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    uuid.UUID `db:"entity_id" json:"entity_id"`
	OldValue    *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue    *string   `db:"new_value" json:"new_value,omitempty"`
	PerformedBy uuid.UUID `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	EntityBalance     = "balance"
	EntityFreeze      = "freeze"
	EntityLimit       = "limit"
	EntityTransaction = "transaction"
	EntityWallet      = "wallet"
)

const (
	ActionWalletCreated            = "WALLET_CREATED"
	ActionBalanceUpdated           = "BALANCE_UPDATED"
	ActionBalanceReserved          = "BALANCE_RESERVED"
	ActionBalanceReleased          = "BALANCE_RELEASED"
	ActionFreezeCreated            = "FREEZE_CREATED"
	ActionFreezeRemoved            = "FREEZE_REMOVED"
	ActionFreezeExpired            = "FREEZE_EXPIRED"
	ActionLimitCreated             = "LIMIT_CREATED"
	ActionLimitUpdated             = "LIMIT_UPDATED"
	ActionLimitDeactivated         = "LIMIT_DEACTIVATED"
	ActionLimitUsageUpdated        = "LIMIT_USAGE_UPDATED"
	ActionLimitReset               = "LIMIT_RESET"
	ActionTransactionCreated       = "TRANSACTION_CREATED"
	ActionTransactionProcessed     = "TRANSACTION_PROCESSED"
	ActionTransactionStatusUpdated = "TRANSACTION_STATUS_UPDATED"
)
