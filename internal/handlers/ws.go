package handlers

import (
	"net/http"

	"wallet/internal/auth"
	"wallet/internal/middleware"
	"wallet/internal/money"
	"wallet/internal/websocket"
)

// WSBalance streams balance updates for one wallet. Browsers cannot set
// headers on upgrade requests, so the token may also arrive as ?token=.
func (h *Handler) WSBalance(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if bearer, ok := middleware.BearerToken(r.Header.Get("Authorization")); ok {
			token = bearer
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	if _, err := auth.ParseToken(h.cfg.JWTSecret, token); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(r.Context(), walletID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	websocket.ServeWS(w, r, h.hub, walletID.String(), websocket.BalanceUpdate{
		WalletID:  walletID.String(),
		Available: money.Format(balance.Available),
		Reserved:  money.Format(balance.Reserved),
		Currency:  balance.Currency,
		Version:   balance.Version,
	})
}
