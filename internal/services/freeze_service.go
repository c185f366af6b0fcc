package services

import (
	"context"
	"errors"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

type FreezeService struct {
	txRunner    db.TxRunner
	freezes     FreezeStore
	wallets     WalletStore
	audit       AuditSink
	logger      *zap.Logger
	systemActor uuid.UUID
	now         func() time.Time
}

func NewFreezeService(txRunner db.TxRunner, freezes FreezeStore, wallets WalletStore, audit AuditSink, logger *zap.Logger, systemActor uuid.UUID) *FreezeService {
	return &FreezeService{
		txRunner:    txRunner,
		freezes:     freezes,
		wallets:     wallets,
		audit:       audit,
		logger:      logger,
		systemActor: systemActor,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateFreezeRequest struct {
	WalletID     uuid.UUID
	FreezeType   models.FreezeType
	FrozenAmount *decimal.Decimal
	Reason       string
	ExpiresAt    *time.Time
	PerformedBy  uuid.UUID
}

// validate accepts an expiry already in the past; such a freeze is recorded
// but never in effect and the next sweep marks it expired.
func (r CreateFreezeRequest) validate() error {
	if !r.FreezeType.Valid() {
		return apperr.Validation("freeze type must be FULL or PARTIAL")
	}
	switch r.FreezeType {
	case models.FreezePartial:
		if r.FrozenAmount == nil || !r.FrozenAmount.IsPositive() {
			return apperr.Validation("partial freeze requires a positive frozen amount")
		}
		if !r.FrozenAmount.Equal(r.FrozenAmount.Truncate(money.Scale)) {
			return apperr.Validation("frozen amount has more than %d decimal places", money.Scale)
		}
	case models.FreezeFull:
		if r.FrozenAmount != nil {
			return apperr.Validation("full freeze must not carry a frozen amount")
		}
	}
	if err := validator.ValidateReason(r.Reason); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// CreateFreeze records a new active freeze. A wallet holds at most one
// active freeze per type; the partial unique index backs the pre-check
// when two requests race.
func (s *FreezeService) CreateFreeze(ctx context.Context, req CreateFreezeRequest) (models.Freeze, error) {
	now := s.now()
	if err := req.validate(); err != nil {
		return models.Freeze{}, err
	}
	exists, err := s.wallets.Exists(ctx, req.WalletID)
	if err != nil {
		return models.Freeze{}, err
	}
	if !exists {
		return models.Freeze{}, apperr.NotFound("wallet not found")
	}
	active, err := s.freezes.HasActive(ctx, req.WalletID, req.FreezeType)
	if err != nil {
		return models.Freeze{}, err
	}
	if active {
		return models.Freeze{}, apperr.Conflict("wallet already has an active %s freeze", req.FreezeType)
	}

	freeze := models.Freeze{
		Entity:     models.NewEntity(now),
		WalletID:   req.WalletID,
		FreezeType: req.FreezeType,
		Reason:     req.Reason,
		Status:     models.FreezeActive,
		ExpiresAt:  req.ExpiresAt,
		CreatedBy:  req.PerformedBy,
	}
	if req.FrozenAmount != nil {
		freeze.FrozenAmount = decimal.NewNullDecimal(*req.FrozenAmount)
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.freezes.Create(ctx, tx, freeze)
	})
	if err != nil {
		return models.Freeze{}, err
	}

	s.audit.Emit(auditEntry(req.WalletID, models.ActionFreezeCreated, models.EntityFreeze, freeze.ID,
		nil, freezeValues(freeze), req.PerformedBy))
	s.logger.Info("freeze created",
		zap.Stringer("wallet_id", req.WalletID),
		zap.Stringer("freeze_id", freeze.ID),
		zap.String("freeze_type", string(req.FreezeType)),
	)
	return freeze, nil
}

func (s *FreezeService) GetFreeze(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error) {
	return s.freezes.GetByID(ctx, freezeID)
}

func (s *FreezeService) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error) {
	return s.freezes.ListByWallet(ctx, walletID, false)
}

func (s *FreezeService) ListActiveByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error) {
	return s.freezes.ListByWallet(ctx, walletID, true)
}

// IsInEffect reports whether any freeze restricts the wallet right now.
// The answer always comes from storage.
func (s *FreezeService) IsInEffect(ctx context.Context, walletID uuid.UUID) (bool, error) {
	return s.freezes.IsInEffect(ctx, walletID, s.now())
}

func (s *FreezeService) IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error) {
	if !freezeType.Valid() {
		return false, apperr.Validation("freeze type must be FULL or PARTIAL")
	}
	return s.freezes.IsInEffectByType(ctx, walletID, freezeType, s.now())
}

// TotalFrozenAmount sums the partial freezes currently in effect.
func (s *FreezeService) TotalFrozenAmount(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	return s.freezes.TotalPartialInEffect(ctx, walletID, s.now())
}

func (s *FreezeService) RemoveFreeze(ctx context.Context, freezeID, performedBy uuid.UUID) (models.Freeze, error) {
	freeze, err := s.freezes.GetByID(ctx, freezeID)
	if err != nil {
		return models.Freeze{}, err
	}
	if freeze.Status != models.FreezeActive {
		return models.Freeze{}, apperr.InvalidState("freeze is %s, only active freezes can be removed", freeze.Status)
	}

	now := s.now()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.freezes.MarkRemoved(ctx, tx, freezeID, performedBy, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.InvalidState("freeze is no longer active")
		}
		return nil
	})
	if err != nil {
		return models.Freeze{}, err
	}

	before := freezeValues(freeze)
	freeze.Status = models.FreezeRemoved
	freeze.RemovedBy = &performedBy
	freeze.RemovedAt = &now
	freeze.UpdatedAt = now
	s.audit.Emit(auditEntry(freeze.WalletID, models.ActionFreezeRemoved, models.EntityFreeze, freeze.ID,
		before, freezeValues(freeze), performedBy))
	return freeze, nil
}

// SweepExpired moves every active freeze past its expiry to expired and
// returns how many rows it transitioned. Each row flips with a conditional
// update, so overlapping sweeps never double count.
func (s *FreezeService) SweepExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		now := s.now()
		batch, err := s.freezes.ListExpired(ctx, now, sweepBatchSize)
		if err != nil {
			return total, err
		}
		expired := 0
		for _, freeze := range batch {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			ok, err := s.expire(ctx, freeze, now)
			if err != nil {
				return total, err
			}
			if ok {
				expired++
			}
		}
		total += expired
		if len(batch) < sweepBatchSize || expired == 0 {
			break
		}
	}
	if total > 0 {
		s.logger.Info("expired freezes swept", zap.Int("count", total))
	}
	return total, nil
}

func (s *FreezeService) expire(ctx context.Context, freeze models.Freeze, now time.Time) (bool, error) {
	var rows int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		rows, err = s.freezes.MarkExpired(ctx, tx, freeze.ID, now)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("expire freeze", zap.Stringer("freeze_id", freeze.ID), zap.Error(err))
	}
	if err != nil || rows == 0 {
		return false, err
	}
	before := freezeValues(freeze)
	freeze.Status = models.FreezeExpired
	s.audit.Emit(auditEntry(freeze.WalletID, models.ActionFreezeExpired, models.EntityFreeze, freeze.ID,
		before, freezeValues(freeze), s.systemActor))
	return true, nil
}

func freezeValues(f models.Freeze) map[string]any {
	values := map[string]any{
		"freeze_type": f.FreezeType,
		"status":      f.Status,
		"reason":      f.Reason,
	}
	if f.FrozenAmount.Valid {
		values["frozen_amount"] = money.Format(f.FrozenAmount.Decimal)
	}
	if f.ExpiresAt != nil {
		values["expires_at"] = f.ExpiresAt.Format(time.RFC3339)
	}
	return values
}
