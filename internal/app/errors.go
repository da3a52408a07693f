package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"atto/internal/store"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrFeatureDisabled  = errors.New("feature disabled")
)

// DomainError is what every Service operation returns on failure. Kind is
// one of the sentinels above, so callers test it with errors.Is.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Kind    error
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(entity string) error {
	err := domainError(http.StatusNotFound, "NOT_FOUND", entity+" not found", nil)
	err.Kind = ErrNotFound
	return err
}

func denied(message string) error {
	err := domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
	err.Kind = ErrPermissionDenied
	return err
}

func invalid(message string, details any) error {
	err := domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
	err.Kind = ErrValidation
	return err
}

func disabled(message string) error {
	err := domainError(http.StatusConflict, "FEATURE_DISABLED", message, nil)
	err.Kind = ErrFeatureDisabled
	return err
}

func unavailable(cause error) error {
	err := domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "store unavailable", nil)
	err.Kind = ErrStoreUnavailable
	err.Err = cause
	return err
}

// storeError maps a store failure onto the domain taxonomy. A missing row
// and an unreachable database never collapse into the same error.
func storeError(entity string, err error) error {
	if err == nil {
		return nil
	}
	var domain *DomainError
	switch {
	case errors.As(err, &domain):
		return err
	case errors.Is(err, store.ErrNotFound):
		return notFound(entity)
	case store.IsUniqueViolation(err):
		return invalid(entity+" already exists", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return unavailable(fmt.Errorf("%s: %w", entity, err))
	default:
		return unavailable(err)
	}
}

// Result is the ok/message envelope handlers render.
type Result[T any] struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Payload T      `json:"payload"`
}

func ResultFrom[T any](payload T, err error) Result[T] {
	if err != nil {
		var zero T
		message := err.Error()
		var domain *DomainError
		if errors.As(err, &domain) {
			message = domain.Message
		}
		return Result[T]{OK: false, Message: message, Payload: zero}
	}
	return Result[T]{OK: true, Message: "ok", Payload: payload}
}
