package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Inventory domain errors
var (
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrItemNotFound           = errors.New("item not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// StockShortage carries the numbers behind an InsufficientStock failure.
type StockShortage struct {
	Item      string
	Requested int
	Available int
}

func (s *StockShortage) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", s.Item, s.Requested, s.Available)
}

func (s *StockShortage) Unwrap() error { return ErrInsufficientStock }

// TransitionError describes an operation attempted from a state that does not allow it.
type TransitionError struct {
	Operation string
	From      string
}

func (t *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s requisition in state %q", t.Operation, t.From)
}

func (t *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// InvalidQuantity is returned for non-positive quantities.
func InvalidQuantity(quantity int) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    "quantity must be greater than zero",
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"quantity": strconv.Itoa(quantity)},
	}
}

// InsufficientStock reports how much of the item is actually available.
func InsufficientStock(item string, requested, available int) *AppError {
	return &AppError{
		Err:        &StockShortage{Item: item, Requested: requested, Available: available},
		Code:       "INSUFFICIENT_STOCK",
		Message:    "insufficient stock",
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"item":      item,
			"requested": strconv.Itoa(requested),
			"available": strconv.Itoa(available),
		},
	}
}

// ItemNotFound is returned when no item with the name exists in the department.
// An empty department means the central warehouse.
func ItemNotFound(item, department string) *AppError {
	location := department
	if location == "" {
		location = "warehouse"
	}
	return &AppError{
		Err:        ErrItemNotFound,
		Code:       "ITEM_NOT_FOUND",
		Message:    fmt.Sprintf("item %q not found in %s", item, location),
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"item": item, "department": location},
	}
}

// UnknownItem is ItemNotFound for lookups by ID.
func UnknownItem(id string) *AppError {
	return &AppError{
		Err:        ErrItemNotFound,
		Code:       "ITEM_NOT_FOUND",
		Message:    fmt.Sprintf("item %s not found", id),
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"item_id": id},
	}
}

func InvalidStateTransition(operation, from string) *AppError {
	return &AppError{
		Err:        &TransitionError{Operation: operation, From: from},
		Code:       "INVALID_STATE_TRANSITION",
		Message:    fmt.Sprintf("cannot %s from state %s", operation, from),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"operation": operation, "state": from},
	}
}

// NotApproved is the checkout flavour of InvalidStateTransition.
func NotApproved(from string) *AppError {
	return &AppError{
		Err:        &TransitionError{Operation: "checkout", From: from},
		Code:       "NOT_APPROVED",
		Message:    "requisition is not approved",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"operation": "checkout", "state": from},
	}
}

// AvailableStock extracts the available quantity from an InsufficientStock error.
func AvailableStock(err error) (int, bool) {
	var shortage *StockShortage
	if errors.As(err, &shortage) {
		return shortage.Available, true
	}
	return 0, false
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
