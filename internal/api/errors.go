package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/specdec/internal/batch"
	"github.com/samcharles93/specdec/internal/rejection"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

// statusClass maps a verification error onto an HTTP status and error code.
func statusClass(err error) (int, string) {
	switch {
	case errors.Is(err, rejection.ErrCapacityExceeded):
		return http.StatusRequestEntityTooLarge, "capacity_exceeded"
	case errors.Is(err, rejection.ErrShapeMismatch):
		return http.StatusBadRequest, "shape_mismatch"
	case errors.Is(err, rejection.ErrInvalidMetadata):
		return http.StatusBadRequest, "invalid_metadata"
	case errors.Is(err, rejection.ErrInvalidToken):
		return http.StatusBadRequest, "invalid_token"
	case errors.Is(err, rejection.ErrEmptyBatch):
		return http.StatusBadRequest, "empty_batch"
	case errors.Is(err, batch.ErrInvalidBatch):
		return http.StatusBadRequest, "invalid_batch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeVerifyError(c *echo.Context, err error) error {
	status, code := statusClass(err)
	errType := "invalid_request_error"
	if status >= http.StatusInternalServerError {
		errType = "server_error"
	}
	param := ""
	var shape *rejection.ShapeError
	if errors.As(err, &shape) {
		param = shape.Field
	}
	return writeError(c, status, errType, err.Error(), param, code)
}
