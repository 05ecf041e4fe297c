package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ragstack/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Unknown
// errors become opaque 500s; their detail goes to the log, not the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	switch {
	case errors.Is(err, core.ErrInvalidParams),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrEmptyDocument),
		errors.Is(err, core.ErrDimensionMismatch),
		errors.Is(err, core.ErrModelMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, core.ErrProviderTimeout):
		status = http.StatusGatewayTimeout
	default:
		log.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}
