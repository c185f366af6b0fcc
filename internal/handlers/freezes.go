package handlers

import (
	"net/http"

	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/services"

	"github.com/shopspring/decimal"
)

type createFreezeRequest struct {
	FreezeType   models.FreezeType `json:"freeze_type"`
	FrozenAmount *string           `json:"frozen_amount"`
	Reason       string            `json:"reason"`
	ExpiresAt    *string           `json:"expires_at"`
}

func (h *Handler) CreateFreeze(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	var req createFreezeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var frozenAmount *decimal.Decimal
	if req.FrozenAmount != nil {
		amount, err := parseAmount(*req.FrozenAmount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		frozenAmount = &amount
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "expires_at must be RFC3339")
		return
	}
	freeze, err := h.freezes.CreateFreeze(r.Context(), services.CreateFreezeRequest{
		WalletID:     walletID,
		FreezeType:   req.FreezeType,
		FrozenAmount: frozenAmount,
		Reason:       req.Reason,
		ExpiresAt:    expiresAt,
		PerformedBy:  actorID,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toFreezeResponse(freeze))
}

// ListFreezes returns the wallet's freeze history, or only those in effect
// with ?active=true.
func (h *Handler) ListFreezes(w http.ResponseWriter, r *http.Request) {
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	list := h.freezes.ListByWallet
	if r.URL.Query().Get("active") == "true" {
		list = h.freezes.ListActiveByWallet
	}
	freezes, err := list(r.Context(), walletID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toFreezeResponses(freezes))
}

func (h *Handler) GetFreezeStatus(w http.ResponseWriter, r *http.Request) {
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	var (
		frozen bool
		err    error
	)
	if raw := r.URL.Query().Get("type"); raw != "" {
		freezeType := models.FreezeType(raw)
		if !freezeType.Valid() {
			respondError(w, http.StatusBadRequest, "type must be FULL or PARTIAL")
			return
		}
		frozen, err = h.freezes.IsInEffectByType(r.Context(), walletID, freezeType)
	} else {
		frozen, err = h.freezes.IsInEffect(r.Context(), walletID)
	}
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	total, err := h.freezes.TotalFrozenAmount(r.Context(), walletID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"wallet_id":           walletID,
		"frozen":              frozen,
		"total_frozen_amount": money.Format(total),
	})
}

func (h *Handler) GetFreeze(w http.ResponseWriter, r *http.Request) {
	freezeID, ok := uuidParam(w, r, "freezeID")
	if !ok {
		return
	}
	freeze, err := h.freezes.GetFreeze(r.Context(), freezeID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toFreezeResponse(freeze))
}

func (h *Handler) RemoveFreeze(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	freezeID, ok := uuidParam(w, r, "freezeID")
	if !ok {
		return
	}
	freeze, err := h.freezes.RemoveFreeze(r.Context(), freezeID, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toFreezeResponse(freeze))
}
