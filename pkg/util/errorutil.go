package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// ErrorKind groups failures by how the pipeline reacts to them.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindLookupMiss   ErrorKind = "lookup_miss"
	KindConnectivity ErrorKind = "connectivity"
	KindExternalAPI  ErrorKind = "external_api"
	KindMalformed    ErrorKind = "malformed"
	KindInternal     ErrorKind = "internal"
)

const (
	CodeLookupMiss            = "LOOKUP_MISS"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	CodeExternalAPIFailed     = "EXTERNAL_API_FAILED"
	CodeMalformedInput        = "MALFORMED_INPUT"
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewLookupMiss marks a rule or reference lookup that found nothing.
func NewLookupMiss(what string, details map[string]any) error {
	return &DomainError{
		Code:       CodeLookupMiss,
		Message:    fmt.Sprintf("no %s matched", what),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewDependencyUnavailable wraps store or broker connectivity failures.
func NewDependencyUnavailable(dependency string, err error) error {
	return &DomainError{
		Code:       CodeDependencyUnavailable,
		Message:    fmt.Sprintf("%s unavailable", dependency),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"dependency": dependency},
		Err:        err,
	}
}

// NewExternalAPIError wraps a failed call to the external ticket API.
func NewExternalAPIError(operation string, status int, err error) error {
	return &DomainError{
		Code:       CodeExternalAPIFailed,
		Message:    fmt.Sprintf("external ticket api %s failed", operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": operation, "status": status},
		Err:        err,
	}
}

// NewMalformedInput marks a delta or queue message that cannot be processed.
func NewMalformedInput(message string, details map[string]any) error {
	return NewDomainError(CodeMalformedInput, message, http.StatusUnprocessableEntity, details)
}

// Classify maps an error onto the pipeline's failure categories.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case CodeLookupMiss, "NOT_FOUND":
			return KindLookupMiss
		case CodeDependencyUnavailable:
			return KindConnectivity
		case CodeExternalAPIFailed:
			return KindExternalAPI
		case CodeMalformedInput, "VALIDATION_FAILED":
			return KindMalformed
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return KindLookupMiss
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectivity
	}
	return KindInternal
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}
