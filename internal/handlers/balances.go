package handlers

import (
	"context"
	"net/http"

	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type amountRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(r.Context(), walletID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) CheckSufficientBalance(w http.ResponseWriter, r *http.Request) {
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	sufficient, err := h.ledger.HasSufficientBalance(r.Context(), walletID, amount)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"wallet_id":  walletID,
		"amount":     money.Format(amount),
		"sufficient": sufficient,
	})
}

// AdjustBalance applies a signed delta; negative amounts debit.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, parseDelta, h.ledger.ApplyDelta)
}

func (h *Handler) ReserveBalance(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, parseAmount, h.ledger.Reserve)
}

func (h *Handler) ReleaseBalance(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, parseAmount, h.ledger.Release)
}

type balanceMutation func(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, performedBy uuid.UUID) (models.Balance, error)

func (h *Handler) mutateBalance(w http.ResponseWriter, r *http.Request, parse func(string) (decimal.Decimal, error), mutate balanceMutation) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parse(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	balance, err := mutate(r.Context(), walletID, amount, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) TotalByCurrency(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if err := validator.ValidateCurrency(currency); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	total, err := h.ledger.TotalByCurrency(r.Context(), currency)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"currency":        currency,
		"total_available": money.Format(total),
	})
}
