// Package domain holds the error taxonomy and transaction boundary shared by
// the catalog, promotion and order packages.
package domain

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Error classes. Typed errors in the domain packages report their class via
// an Is method so callers only need errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// ValidationError aggregates every violation found while checking a request.
type ValidationError struct {
	Violations []error
}

// NewValidationError returns nil when there is nothing to report.
func NewValidationError(violations ...error) error {
	var vs []error
	for _, v := range violations {
		if v != nil {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error { return e.Violations }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// FieldError is a single invalid field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Reason }

func (e *FieldError) Is(target error) bool { return target == ErrInvalidInput }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return e.Entity + " " + e.ID + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return e.Entity + " with " + e.Field + " " + e.Value + " already exists"
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TxManager runs fn atomically. Repositories called with the context passed to
// fn take part in the same transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
