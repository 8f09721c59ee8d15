package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrForbidden         = errors.New("access forbidden: you don't own this resource")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusConflict is returned by conditional updates when the stored status
	// no longer matches the status the caller read.
	ErrStatusConflict = errors.New("status changed concurrently")
)

// ErrorKind classifies application errors for transport mapping
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindSignature    ErrorKind = "signature"
	KindGateway      ErrorKind = "gateway"
	KindDeclined     ErrorKind = "declined"
	KindConflict     ErrorKind = "conflict"
	KindPersistence  ErrorKind = "persistence"
)

// AppError is the typed error returned by services
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindSignature, KindDeclined:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to API callers.
// Persistence details stay in the logs; gateway errors carry the upstream message.
func (e *AppError) PublicMessage() string {
	if e.Kind == KindPersistence || e.Kind == KindForbidden || e.Kind == KindUnauthorized {
		return e.Message
	}
	return e.Error()
}

func NewValidationError(format string, args ...any) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Message: resource + " not found"}
}

func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message, Err: err}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message, Err: ErrForbidden}
}

func NewSignatureError(err error) *AppError {
	return &AppError{Kind: KindSignature, Message: "webhook signature verification failed", Err: err}
}

func NewGatewayError(gateway PaymentMethod, err error) *AppError {
	return &AppError{Kind: KindGateway, Message: string(gateway) + " gateway error", Err: err}
}

func NewDeclinedError(message string) *AppError {
	return &AppError{Kind: KindDeclined, Message: message}
}

func NewConflictError(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

func NewPersistenceError(operation string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: "failed to " + operation, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an AppError
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
