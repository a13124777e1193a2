package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/command"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps error categories to HTTP status codes
func statusFor(err error) int {
	var verr *command.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, inventory.ErrValidation),
		errors.Is(err, alert.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, alert.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrBusinessRule),
		errors.Is(err, alert.ErrBusinessRule),
		errors.Is(err, inventory.ErrConcurrentModification):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *command.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Error = "internal server error"
	}

	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
