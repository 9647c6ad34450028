// Package handlers provides HTTP request handlers for the scanexport API.
// This file contains the response helpers shared by all handlers.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/anstrom/scanexport/internal/api/middleware"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/logging"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	Code      errors.ErrorCode `json:"code,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// newErrorResponse builds the body of an error response.
func newErrorResponse(r *http.Request, statusCode int, err error) ErrorResponse {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = code
	}
	return response
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	writeJSON(w, r, statusCode, newErrorResponse(r, statusCode, err))
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeConfiguration, errors.CodeNoSourceMatch:
		return http.StatusBadRequest
	case errors.CodeSchema, errors.CodeMalformed, errors.CodeMissingField:
		return http.StatusUnprocessableEntity
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeDatabaseConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
