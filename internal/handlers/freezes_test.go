package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"wallet/internal/apperr"
	"wallet/internal/models"
	"wallet/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFreezeRequiresOperator(t *testing.T) {
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		createFn: func(context.Context, services.CreateFreezeRequest) (models.Freeze, error) {
			t.Fatal("service must not be called")
			return models.Freeze{}, nil
		},
	}})
	rr := serveWithAuth(t, handler, http.MethodPost, "/wallets/"+uuid.NewString()+"/freezes", `{"freeze_type":"FULL","reason":"fraud"}`, uuid.New())
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreatePartialFreeze(t *testing.T) {
	walletID := uuid.New()
	actor := uuid.New()
	var got services.CreateFreezeRequest
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		createFn: func(_ context.Context, req services.CreateFreezeRequest) (models.Freeze, error) {
			got = req
			return models.Freeze{
				Entity:       models.Entity{ID: uuid.New()},
				WalletID:     req.WalletID,
				FreezeType:   req.FreezeType,
				FrozenAmount: decimal.NewNullDecimal(*req.FrozenAmount),
				Reason:       req.Reason,
				Status:       models.FreezeActive,
				ExpiresAt:    req.ExpiresAt,
				CreatedBy:    req.PerformedBy,
			}, nil
		},
	}})

	body := `{"freeze_type":"PARTIAL","frozen_amount":"25","reason":"chargeback","expires_at":"2030-01-02T03:04:05+01:00"}`
	rr := serveWithAuth(t, handler, http.MethodPost, "/wallets/"+walletID.String()+"/freezes", body, actor, "wallet_operator")
	require.Equal(t, http.StatusCreated, rr.Code)

	assert.Equal(t, walletID, got.WalletID)
	assert.Equal(t, actor, got.PerformedBy)
	require.NotNil(t, got.FrozenAmount)
	assert.True(t, got.FrozenAmount.Equal(decimal.NewFromInt(25)))
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, time.Date(2030, 1, 2, 2, 4, 5, 0, time.UTC), *got.ExpiresAt)

	var payload freezeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	require.NotNil(t, payload.FrozenAmount)
	assert.Equal(t, "25.00000000", *payload.FrozenAmount)
}

func TestCreateFreezeBadExpiry(t *testing.T) {
	handler := newTestHandler(testServices{})
	body := `{"freeze_type":"FULL","reason":"r","expires_at":"tomorrow"}`
	rr := serveWithAuth(t, handler, http.MethodPost, "/wallets/"+uuid.NewString()+"/freezes", body, uuid.New(), "wallet_operator")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateFreezeConflict(t *testing.T) {
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		createFn: func(context.Context, services.CreateFreezeRequest) (models.Freeze, error) {
			return models.Freeze{}, apperr.Conflict("wallet already has an active FULL freeze")
		},
	}})
	rr := serveWithAuth(t, handler, http.MethodPost, "/wallets/"+uuid.NewString()+"/freezes", `{"freeze_type":"FULL","reason":"r"}`, uuid.New(), "wallet_operator")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestListFreezesActiveFilter(t *testing.T) {
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		listFn: func(context.Context, uuid.UUID) ([]models.Freeze, error) {
			return []models.Freeze{{Status: models.FreezeActive}, {Status: models.FreezeExpired}}, nil
		},
		listActiveFn: func(context.Context, uuid.UUID) ([]models.Freeze, error) {
			return []models.Freeze{{Status: models.FreezeActive}}, nil
		},
	}})
	walletID := uuid.NewString()

	rr := serveWithAuth(t, handler, http.MethodGet, "/wallets/"+walletID+"/freezes", "", uuid.New())
	require.Equal(t, http.StatusOK, rr.Code)
	var all []freezeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&all))
	assert.Len(t, all, 2)

	rr = serveWithAuth(t, handler, http.MethodGet, "/wallets/"+walletID+"/freezes?active=true", "", uuid.New())
	require.Equal(t, http.StatusOK, rr.Code)
	var active []freezeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&active))
	assert.Len(t, active, 1)
}

func TestGetFreezeStatusByType(t *testing.T) {
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		inEffectTypeFn: func(_ context.Context, _ uuid.UUID, freezeType models.FreezeType) (bool, error) {
			return freezeType == models.FreezePartial, nil
		},
		totalFn: func(context.Context, uuid.UUID) (decimal.Decimal, error) {
			return decimal.RequireFromString("12.5"), nil
		},
	}})
	rr := serveWithAuth(t, handler, http.MethodGet, "/wallets/"+uuid.NewString()+"/frozen?type=PARTIAL", "", uuid.New())
	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	assert.Equal(t, true, payload["frozen"])
	assert.Equal(t, "12.50000000", payload["total_frozen_amount"])

	rr = serveWithAuth(t, handler, http.MethodGet, "/wallets/"+uuid.NewString()+"/frozen?type=SOFT", "", uuid.New())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRemoveFreeze(t *testing.T) {
	freezeID := uuid.New()
	actor := uuid.New()
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		removeFn: func(_ context.Context, id, performedBy uuid.UUID) (models.Freeze, error) {
			assert.Equal(t, freezeID, id)
			assert.Equal(t, actor, performedBy)
			return models.Freeze{Entity: models.Entity{ID: id}, Status: models.FreezeRemoved, RemovedBy: &performedBy}, nil
		},
	}})
	rr := serveWithAuth(t, handler, http.MethodDelete, "/freezes/"+freezeID.String(), "", actor, "wallet_operator")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload freezeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	assert.Equal(t, models.FreezeRemoved, payload.Status)
}

func TestRemoveFreezeNotActive(t *testing.T) {
	handler := newTestHandler(testServices{freezes: stubFreezeService{
		removeFn: func(context.Context, uuid.UUID, uuid.UUID) (models.Freeze, error) {
			return models.Freeze{}, apperr.InvalidState("freeze is not active")
		},
	}})
	rr := serveWithAuth(t, handler, http.MethodDelete, "/freezes/"+uuid.NewString(), "", uuid.New(), "wallet_operator")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetFreezeNotFound(t *testing.T) {
	handler := newTestHandler(testServices{})
	rr := serveWithAuth(t, handler, http.MethodGet, "/freezes/"+uuid.NewString(), "", uuid.New())
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
