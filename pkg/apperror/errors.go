package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Ledger error codes.
const (
	CodeInsufficientFunds   = "LED_001"
	CodeInvalidAmount       = "LED_002"
	CodeAlreadyPaid         = "LED_003"
	CodeNotFound            = "LED_004"
	CodeConcurrencyConflict = "LED_005"
	CodeInvoiceNotPayable   = "LED_006"
	CodeInvalidOwner        = "LED_007"
	CodeInternal            = "SYS_001"
	CodeInvalidToken        = "AUTH_001"
	CodeForbidden           = "AUTH_002"
	CodeRateLimitExceeded   = "RATE_001"
)

// CodeOf returns the code of the first AppError in err's chain, or "" when
// err carries none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}

// ---- Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient wallet balance, please top up your wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be positive with at most two decimal places", http.StatusBadRequest)
}

func ErrAlreadyPaid() *AppError {
	return New(CodeAlreadyPaid, "Invoice has already been paid", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrConcurrencyConflict signals lock or version contention. Callers retry the
// whole operation from scratch.
func ErrConcurrencyConflict(err error) *AppError {
	return Wrap(CodeConcurrencyConflict, "Ledger is busy, please try again", http.StatusConflict, err)
}

func ErrInvoiceNotPayable(status string) *AppError {
	return New(CodeInvoiceNotPayable, fmt.Sprintf("Invoice in status %q cannot be paid", status), http.StatusConflict)
}

func ErrInvalidOwner() *AppError {
	return New(CodeInvalidOwner, "Owner must be a care_home or worker with a valid id", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Role is not allowed to perform this action", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrPersistence wraps an underlying store failure. The in-flight unit of
// work has been rolled back by the time this surfaces.
func ErrPersistence(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}
