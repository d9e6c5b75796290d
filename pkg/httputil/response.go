package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/hoodiewala/storefront/pkg/errors"
	"github.com/hoodiewala/storefront/pkg/logger"
	"github.com/hoodiewala/storefront/pkg/validator"
)

// Response is the JSON envelope of the storefront API.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the "error" member of a failed Response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v as the body of a status response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	WriteJSON(w, status, Response{Error: &body})
}

// describe maps err to a status and an error body. Validation failures list
// their fields; AppErrors keep their own message; anything else gets the
// message of its kind.
func describe(err error) (int, ErrorResponse) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	kind := apperrors.Classify(err)
	msg := kind.Message
	if kind.Public {
		msg = err.Error()
	}
	return kind.Status, ErrorResponse{Code: kind.Code, Message: msg}
}

// WriteError answers with the error body for err, tagged with the request's
// correlation id. Server-side failures are logged through the request logger,
// or fallback when none is mounted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	status, body := describe(err)
	body.RequestID = logger.CorrelationIDFromContext(ctx)

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(ctx)
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(ctx, "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	writeErrorBody(w, status, body)
}

// WriteValidationError answers 400 for a body that failed decoding or
// validation.
func WriteValidationError(w http.ResponseWriter, err error) {
	status, body := describe(err)
	if status != http.StatusBadRequest {
		body = ErrorResponse{Code: apperrors.KindInvalid.Code, Message: err.Error()}
	}
	writeErrorBody(w, http.StatusBadRequest, body)
}

// ParseUUID parses a path parameter. On failure it answers 400 itself and
// returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid UUID: " + param,
		})
		return uuid.Nil, false
	}
	return id, true
}
