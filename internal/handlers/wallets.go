package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

type createWalletRequest struct {
	OwnerID  *uuid.UUID `json:"owner_id"`
	Currency string     `json:"currency"`
}

// CreateWallet registers a wallet and its zero balance. The owner defaults
// to the caller.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createWalletRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ownerID := actorID
	if req.OwnerID != nil {
		ownerID = *req.OwnerID
	}
	wallet, balance, err := h.wallets.CreateWallet(r.Context(), ownerID, req.Currency, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"wallet_id": wallet.ID,
		"owner_id":  wallet.OwnerID,
		"currency":  wallet.Currency,
		"balance":   toBalanceResponse(balance),
	})
}
