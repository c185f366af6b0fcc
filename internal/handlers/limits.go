package handlers

import (
	"net/http"

	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/services"
)

type createLimitRequest struct {
	LimitType   models.LimitType   `json:"limit_type"`
	LimitAmount string             `json:"limit_amount"`
	ResetPeriod models.ResetPeriod `json:"reset_period"`
}

type updateLimitRequest struct {
	LimitAmount string `json:"limit_amount"`
}

func (h *Handler) CreateLimit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	var req createLimitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.LimitAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	limit, err := h.limits.CreateLimit(r.Context(), services.CreateLimitRequest{
		WalletID:    walletID,
		LimitType:   req.LimitType,
		LimitAmount: amount,
		ResetPeriod: req.ResetPeriod,
		PerformedBy: actorID,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toLimitResponse(limit))
}

func (h *Handler) ListLimits(w http.ResponseWriter, r *http.Request) {
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	limits, err := h.limits.ListByWallet(r.Context(), walletID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	out := make([]limitResponse, 0, len(limits))
	for _, limit := range limits {
		out = append(out, toLimitResponse(limit))
	}
	respondJSON(w, http.StatusOK, out)
}

// CheckLimit answers whether amount would push the active limit of the given
// type past its ceiling. A wallet without such a limit is never exceeded.
func (h *Handler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	walletID, ok := uuidParam(w, r, "walletID")
	if !ok {
		return
	}
	limitType := models.LimitType(r.URL.Query().Get("type"))
	if !limitType.Valid() {
		respondError(w, http.StatusBadRequest, "unknown limit type")
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	exceeded, err := h.limits.WouldExceed(r.Context(), walletID, limitType, amount)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	resp := map[string]any{
		"wallet_id":    walletID,
		"limit_type":   limitType,
		"amount":       money.Format(amount),
		"would_exceed": exceeded,
	}
	remaining, found, err := h.limits.Remaining(r.Context(), walletID, limitType)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if found {
		resp["remaining"] = money.Format(remaining)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) ResetLimit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limitID, ok := uuidParam(w, r, "limitID")
	if !ok {
		return
	}
	limit, err := h.limits.Reset(r.Context(), limitID, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLimitResponse(limit))
}

func (h *Handler) UpdateLimit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limitID, ok := uuidParam(w, r, "limitID")
	if !ok {
		return
	}
	var req updateLimitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.LimitAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	limit, err := h.limits.UpdateLimitAmount(r.Context(), limitID, amount, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLimitResponse(limit))
}

func (h *Handler) DeactivateLimit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limitID, ok := uuidParam(w, r, "limitID")
	if !ok {
		return
	}
	limit, err := h.limits.Deactivate(r.Context(), limitID, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLimitResponse(limit))
}
