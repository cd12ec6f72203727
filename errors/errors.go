/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when attempting to create a record that already exists
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidInput is returned when validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrIdentity is returned when an item identity is misused
	ErrIdentity = errors.New("identity violation")

	// ErrUnsafeOverwrite is returned when an operation would silently lose data
	ErrUnsafeOverwrite = errors.New("unsafe overwrite")

	// ErrFormat is returned for malformed keys, paths and identifiers
	ErrFormat = errors.New("malformed input")

	// ErrIntegrity is returned when an index fails its self-check
	ErrIntegrity = errors.New("index integrity check failed")

	// ErrAbstract is returned by adapters that do not implement an operation
	ErrAbstract = errors.New("operation not implemented by adapter")

	// ErrNoTransaction is returned by adapters without transaction support
	ErrNoTransaction = errors.New("transactions not supported")
)

// NotFoundError represents an error when a record is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when a record already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// AggregateValidationError carries every validator failure of one save.
type AggregateValidationError struct {
	Errors []error
}

func (e *AggregateValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *AggregateValidationError) Unwrap() []error {
	return e.Errors
}

// IdentityError is returned when a uuid is reassigned
type IdentityError struct {
	Message string
}

func (e *IdentityError) Error() string {
	return "identity error: " + e.Message
}

func (e *IdentityError) Is(target error) bool {
	return target == ErrIdentity
}

// UnsafeOverwriteError is returned when local changes would be dropped or merged blindly
type UnsafeOverwriteError struct {
	Op  string
	Key string
}

func (e *UnsafeOverwriteError) Error() string {
	return fmt.Sprintf("unsafe %s of %q: item has unsaved changes", e.Op, e.Key)
}

func (e *UnsafeOverwriteError) Is(target error) bool {
	return target == ErrUnsafeOverwrite
}

// FormatError represents a malformed key, path or identifier
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %q: %s", e.Input, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// IndexFailure names one index that failed its integrity check.
type IndexFailure struct {
	Property string
	Operator string
	Type     string
	Err      error
}

// IntegrityError aggregates every failing index of one model.
type IntegrityError struct {
	Model    string
	Failures []IndexFailure
}

func (e *IntegrityError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s(%s) [%s]: %v", f.Property, f.Operator, f.Type, f.Err))
	}
	return fmt.Sprintf("index integrity check failed for model %s: %s", e.Model, strings.Join(parts, "; "))
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(recordType, key string) error {
	return &NotFoundError{Type: recordType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(recordType, key string) error {
	return &AlreadyExistsError{Type: recordType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewIdentityError creates a new IdentityError
func NewIdentityError(format string, args ...any) error {
	return &IdentityError{Message: fmt.Sprintf(format, args...)}
}

// NewUnsafeOverwriteError creates a new UnsafeOverwriteError
func NewUnsafeOverwriteError(op, key string) error {
	return &UnsafeOverwriteError{Op: op, Key: key}
}

// NewFormatError creates a new FormatError
func NewFormatError(input, reason string) error {
	return &FormatError{Input: input, Reason: reason}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsIdentity checks if an error is an identity error
func IsIdentity(err error) bool {
	return errors.Is(err, ErrIdentity)
}

// IsUnsafeOverwrite checks if an error is an unsafe overwrite error
func IsUnsafeOverwrite(err error) bool {
	return errors.Is(err, ErrUnsafeOverwrite)
}

// IsFormat checks if an error is a format error
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsIntegrity checks if an error is an integrity error
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
