package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"codestream-gateway/internal/llm"
	"codestream-gateway/internal/problems"
	"codestream-gateway/internal/relay"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeRunError answers a relay that failed before its first event.
func writeRunError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *relay.ValidationError
	switch {
	case errors.As(err, &verr) && errors.Is(err, problems.ErrNotFound):
		writeError(w, http.StatusNotFound, verr.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, llm.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "generation backend is offline")
	default:
		logger.Error("relay failed before streaming", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error")
	}
}
