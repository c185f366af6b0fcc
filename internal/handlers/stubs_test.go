package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/auth"
	"wallet/internal/config"
	"wallet/internal/models"
	"wallet/internal/services"
	"wallet/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubWalletService struct {
	createFn func(ctx context.Context, ownerID uuid.UUID, currency string, performedBy uuid.UUID) (models.Wallet, models.Balance, error)
}

func (s stubWalletService) CreateWallet(ctx context.Context, ownerID uuid.UUID, currency string, performedBy uuid.UUID) (models.Wallet, models.Balance, error) {
	if s.createFn == nil {
		return models.Wallet{}, models.Balance{}, nil
	}
	return s.createFn(ctx, ownerID, currency, performedBy)
}

type stubLedgerService struct {
	getBalanceFn func(ctx context.Context, walletID uuid.UUID) (models.Balance, error)
	sufficientFn func(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	totalFn      func(ctx context.Context, currency string) (decimal.Decimal, error)
	applyDeltaFn func(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)
	reserveFn    func(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)
	releaseFn    func(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)
}

func (s stubLedgerService) GetBalance(ctx context.Context, walletID uuid.UUID) (models.Balance, error) {
	if s.getBalanceFn == nil {
		return models.Balance{}, apperr.NotFound("balance not found")
	}
	return s.getBalanceFn(ctx, walletID)
}

func (s stubLedgerService) HasSufficientBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	if s.sufficientFn == nil {
		return false, nil
	}
	return s.sufficientFn(ctx, walletID, amount)
}

func (s stubLedgerService) TotalByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	if s.totalFn == nil {
		return decimal.Zero, nil
	}
	return s.totalFn(ctx, currency)
}

func (s stubLedgerService) ApplyDelta(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, performedBy uuid.UUID) (models.Balance, error) {
	if s.applyDeltaFn == nil {
		return models.Balance{}, nil
	}
	return s.applyDeltaFn(ctx, walletID, delta, performedBy)
}

func (s stubLedgerService) Reserve(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error) {
	if s.reserveFn == nil {
		return models.Balance{}, nil
	}
	return s.reserveFn(ctx, walletID, amount, performedBy)
}

func (s stubLedgerService) Release(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error) {
	if s.releaseFn == nil {
		return models.Balance{}, nil
	}
	return s.releaseFn(ctx, walletID, amount, performedBy)
}

type stubFreezeService struct {
	createFn       func(ctx context.Context, req services.CreateFreezeRequest) (models.Freeze, error)
	getFn          func(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error)
	listFn         func(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error)
	listActiveFn   func(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error)
	inEffectFn     func(ctx context.Context, walletID uuid.UUID) (bool, error)
	inEffectTypeFn func(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error)
	totalFn        func(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	removeFn       func(ctx context.Context, freezeID, performedBy uuid.UUID) (models.Freeze, error)
}

func (s stubFreezeService) CreateFreeze(ctx context.Context, req services.CreateFreezeRequest) (models.Freeze, error) {
	if s.createFn == nil {
		return models.Freeze{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubFreezeService) GetFreeze(ctx context.Context, freezeID uuid.UUID) (models.Freeze, error) {
	if s.getFn == nil {
		return models.Freeze{}, apperr.NotFound("freeze not found")
	}
	return s.getFn(ctx, freezeID)
}

func (s stubFreezeService) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, walletID)
}

func (s stubFreezeService) ListActiveByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Freeze, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx, walletID)
}

func (s stubFreezeService) IsInEffect(ctx context.Context, walletID uuid.UUID) (bool, error) {
	if s.inEffectFn == nil {
		return false, nil
	}
	return s.inEffectFn(ctx, walletID)
}

func (s stubFreezeService) IsInEffectByType(ctx context.Context, walletID uuid.UUID, freezeType models.FreezeType) (bool, error) {
	if s.inEffectTypeFn == nil {
		return false, nil
	}
	return s.inEffectTypeFn(ctx, walletID, freezeType)
}

func (s stubFreezeService) TotalFrozenAmount(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	if s.totalFn == nil {
		return decimal.Zero, nil
	}
	return s.totalFn(ctx, walletID)
}

func (s stubFreezeService) RemoveFreeze(ctx context.Context, freezeID, performedBy uuid.UUID) (models.Freeze, error) {
	if s.removeFn == nil {
		return models.Freeze{}, nil
	}
	return s.removeFn(ctx, freezeID, performedBy)
}

type stubLimitService struct {
	createFn      func(ctx context.Context, req services.CreateLimitRequest) (models.Limit, error)
	listFn        func(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error)
	wouldExceedFn func(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (bool, error)
	remainingFn   func(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (decimal.Decimal, bool, error)
	resetFn       func(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error)
	updateFn      func(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Limit, error)
	deactivateFn  func(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error)
}

func (s stubLimitService) CreateLimit(ctx context.Context, req services.CreateLimitRequest) (models.Limit, error) {
	if s.createFn == nil {
		return models.Limit{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubLimitService) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Limit, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, walletID)
}

func (s stubLimitService) WouldExceed(ctx context.Context, walletID uuid.UUID, limitType models.LimitType, amount decimal.Decimal) (bool, error) {
	if s.wouldExceedFn == nil {
		return false, nil
	}
	return s.wouldExceedFn(ctx, walletID, limitType, amount)
}

func (s stubLimitService) Remaining(ctx context.Context, walletID uuid.UUID, limitType models.LimitType) (decimal.Decimal, bool, error) {
	if s.remainingFn == nil {
		return decimal.Zero, false, nil
	}
	return s.remainingFn(ctx, walletID, limitType)
}

func (s stubLimitService) Reset(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error) {
	if s.resetFn == nil {
		return models.Limit{}, nil
	}
	return s.resetFn(ctx, limitID, performedBy)
}

func (s stubLimitService) UpdateLimitAmount(ctx context.Context, limitID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Limit, error) {
	if s.updateFn == nil {
		return models.Limit{}, nil
	}
	return s.updateFn(ctx, limitID, amount, performedBy)
}

func (s stubLimitService) Deactivate(ctx context.Context, limitID, performedBy uuid.UUID) (models.Limit, error) {
	if s.deactivateFn == nil {
		return models.Limit{}, nil
	}
	return s.deactivateFn(ctx, limitID, performedBy)
}

type stubTransactionService struct {
	createFn       func(ctx context.Context, req services.CreateTransactionRequest) (models.Transaction, error)
	getFn          func(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error)
	getByRefFn     func(ctx context.Context, referenceID string) (models.Transaction, error)
	processFn      func(ctx context.Context, transactionID, performedBy uuid.UUID) (models.Transaction, error)
	updateStatusFn func(ctx context.Context, transactionID uuid.UUID, status models.TransactionStatus, performedBy uuid.UUID) (models.Transaction, error)
}

func (s stubTransactionService) Create(ctx context.Context, req services.CreateTransactionRequest) (models.Transaction, error) {
	if s.createFn == nil {
		return models.Transaction{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubTransactionService) Get(ctx context.Context, transactionID uuid.UUID) (models.Transaction, error) {
	if s.getFn == nil {
		return models.Transaction{}, apperr.NotFound("transaction not found")
	}
	return s.getFn(ctx, transactionID)
}

func (s stubTransactionService) GetByReference(ctx context.Context, referenceID string) (models.Transaction, error) {
	if s.getByRefFn == nil {
		return models.Transaction{}, apperr.NotFound("transaction not found")
	}
	return s.getByRefFn(ctx, referenceID)
}

func (s stubTransactionService) Process(ctx context.Context, transactionID, performedBy uuid.UUID) (models.Transaction, error) {
	if s.processFn == nil {
		return models.Transaction{}, nil
	}
	return s.processFn(ctx, transactionID, performedBy)
}

func (s stubTransactionService) UpdateStatus(ctx context.Context, transactionID uuid.UUID, status models.TransactionStatus, performedBy uuid.UUID) (models.Transaction, error) {
	if s.updateStatusFn == nil {
		return models.Transaction{}, nil
	}
	return s.updateStatusFn(ctx, transactionID, status, performedBy)
}

type testServices struct {
	wallets      stubWalletService
	ledger       stubLedgerService
	freezes      stubFreezeService
	limits       stubLimitService
	transactions stubTransactionService
}

func newTestHandler(svc testServices) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		JWTSecret:      "secret",
		AllowedOrigins: "*",
	}
	return New(cfg, svc.wallets, svc.ledger, svc.freezes, svc.limits, svc.transactions, websocket.NewHub(), zap.NewNop())
}

// serveWithAuth routes the request through the full router with a token for
// actorID carrying roles.
func serveWithAuth(t *testing.T, handler *Handler, method, target, body string, actorID uuid.UUID, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken("secret", actorID, time.Minute, roles...)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func stringPtr(value string) *string {
	return &value
}
