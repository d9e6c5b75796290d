package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the storefront packages.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
	ErrServiceUnavail  = errors.New("service unavailable")
	ErrBadGateway      = errors.New("bad gateway")
	ErrTooManyRequests = errors.New("too many requests")
)

// Kind describes how one class of failure is reported to API clients.
type Kind struct {
	Sentinel error
	Code     string
	Status   int
	// Message is shown when an error of this kind carries no AppError.
	// Public kinds show the error text instead.
	Message string
	Public  bool
}

var (
	KindNotFound    = Kind{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found", false}
	KindInvalid     = Kind{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, "", true}
	KindConflict    = Kind{ErrConflict, "CONFLICT", http.StatusConflict, "", true}
	KindBadGateway  = Kind{ErrBadGateway, "UPSTREAM_FAILED", http.StatusBadGateway, "upstream request failed", false}
	KindUnavailable = Kind{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable", false}
	KindRateLimited = Kind{ErrTooManyRequests, "RATE_LIMITED", http.StatusTooManyRequests, "too many requests", false}
	KindInternal    = Kind{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "an internal error occurred", false}
)

// kinds is searched in order by Classify.
var kinds = []Kind{
	KindNotFound, KindInvalid, KindConflict, KindBadGateway, KindUnavailable, KindRateLimited,
}

// Classify returns the kind of the first known sentinel err wraps, falling
// back to KindInternal.
func Classify(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.Sentinel) {
			return k
		}
	}
	return KindInternal
}

// New creates an AppError of kind k.
func (k Kind) New(message string) *AppError {
	return &AppError{Code: k.Code, Message: message, Status: k.Status, Err: k.Sentinel}
}

// AppError is an error carrying a machine-readable code, a user-facing message
// and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NotFound reports a missing resource, such as an expired session.
func NotFound(resource, id string) *AppError {
	return KindNotFound.New(fmt.Sprintf("%s with id %s not found", resource, id))
}

func InvalidInput(message string) *AppError { return KindInvalid.New(message) }

func Conflict(message string) *AppError { return KindConflict.New(message) }

func Unavailable(message string) *AppError { return KindUnavailable.New(message) }

func TooManyRequests(message string) *AppError { return KindRateLimited.New(message) }

// BadGateway reports a failed call to the backend. The message is what the
// visitor sees; cause is kept for logs only.
func BadGateway(message string, cause error) *AppError {
	e := KindBadGateway.New(message)
	if cause != nil {
		e.Err = fmt.Errorf("%w: %w", ErrBadGateway, cause)
	}
	return e
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return Classify(err).Status
}
