package handlers

import (
	"net/http"
	"strings"

	"wallet/internal/models"
	"wallet/internal/services"

	"github.com/google/uuid"
)

type createTransactionRequest struct {
	WalletID              uuid.UUID              `json:"wallet_id"`
	ExternalTransactionID *string                `json:"external_transaction_id"`
	Type                  models.TransactionType `json:"type"`
	Amount                string                 `json:"amount"`
	Currency              string                 `json:"currency"`
	ReferenceID           *string                `json:"reference_id"`
	Description           string                 `json:"description"`
	Metadata              models.Metadata        `json:"metadata"`
}

type updateStatusRequest struct {
	Status models.TransactionStatus `json:"status"`
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WalletID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "wallet_id is required")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	txn, err := h.transactions.Create(r.Context(), services.CreateTransactionRequest{
		WalletID:              req.WalletID,
		ExternalTransactionID: req.ExternalTransactionID,
		Type:                  models.TransactionType(strings.ToUpper(string(req.Type))),
		Amount:                amount,
		Currency:              req.Currency,
		ReferenceID:           req.ReferenceID,
		Description:           req.Description,
		Metadata:              req.Metadata,
		PerformedBy:           actorID,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := uuidParam(w, r, "transactionID")
	if !ok {
		return
	}
	txn, err := h.transactions.Get(r.Context(), transactionID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

// GetTransactionByReference serves GET /transactions?reference_id=.
func (h *Handler) GetTransactionByReference(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference_id"))
	if reference == "" {
		respondError(w, http.StatusBadRequest, "reference_id is required")
		return
	}
	txn, err := h.transactions.GetByReference(r.Context(), reference)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transactionID, ok := uuidParam(w, r, "transactionID")
	if !ok {
		return
	}
	txn, err := h.transactions.Process(r.Context(), transactionID, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transactionID, ok := uuidParam(w, r, "transactionID")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	txn, err := h.transactions.UpdateStatus(r.Context(), transactionID, req.Status, actorID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

