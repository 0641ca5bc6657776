package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/command"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps a command or query error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, command.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, order.ErrRevertToPending):
		return http.StatusConflict
	case errors.Is(err, product.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var vErr *apperr.ValidationError
	if errors.As(err, &vErr) {
		body.Field = vErr.Field
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		body.Error = "internal server error"
	}
	respondJSON(w, status, body)
}
