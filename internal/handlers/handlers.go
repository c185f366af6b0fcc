package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"wallet/internal/apperr"
	"wallet/internal/logging"
	"wallet/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindConflict:               http.StatusConflict,
	apperr.KindConcurrentModification: http.StatusConflict,
	apperr.KindInsufficientFunds:      http.StatusBadRequest,
	apperr.KindValidation:             http.StatusBadRequest,
	apperr.KindInvalidOperation:       http.StatusBadRequest,
	apperr.KindInvalidState:           http.StatusBadRequest,
	apperr.KindFrozen:                 http.StatusUnprocessableEntity,
	apperr.KindLimitExceeded:          http.StatusUnprocessableEntity,
}

// respondAppError maps a service error onto a status code. Errors without a
// kind are logged and hidden behind a generic 500.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		respondJSON(w, status, map[string]string{"error": apperr.Message(err), "code": string(kind)})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func actorFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actorID, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return actorID, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}
