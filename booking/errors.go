/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  All error types in one place so every layer (stores, service, HTTP)
  classifies failures the same way. Callers branch with errors.Is on the
  sentinels; structured errors carry the details.

ERROR CATEGORIES:
  1. Caller errors - ValidationError, NotBookableError, UnknownRoleError,
     unknown action. Always detected before any file is touched.
  2. Lookup errors - NotFoundError (id or date does not exist)
  3. Storage errors - StorageError (read/create/rename failed). Serious but
     recoverable: "try again later", never "fix your request".

A row that fails to decode is NOT an error. Readers drop it silently.
Nothing in the engine retries; retry policy belongs to the caller.

SEE ALSO:
  - api/handlers.go: maps these errors to HTTP status codes
  - store/: produces StorageError and NotFoundError
*/
package booking

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced reservation id or date does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownRole is returned for any role other than admin and user.
	ErrUnknownRole = errors.New("unknown role")

	// ErrStorageIO is returned when a backing file cannot be read, created or replaced.
	ErrStorageIO = errors.New("storage i/o failure")

	// ErrUnknownAction is returned when a request maps to no supported operation.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNotBookable is returned when the availability policy rejects a date.
	ErrNotBookable = errors.New("date is not bookable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names every offending field, not just the first.
type ValidationError struct {
	Missing []string // required fields that were blank
	Invalid []string // fields present but malformed
	Message string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Fields returns missing and invalid field names together.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Missing)+len(e.Invalid))
	out = append(out, e.Missing...)
	return append(out, e.Invalid...)
}

// InvalidField is a shorthand for a single malformed field.
func InvalidField(field, message string) *ValidationError {
	return &ValidationError{Invalid: []string{field}, Message: message}
}

// NotFoundError identifies what was looked up.
type NotFoundError struct {
	Kind string // "reservation", "blocked date"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnknownRoleError carries the rejected role string.
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q (want %q or %q)", e.Role, RoleAdmin, RoleUser)
}

func (e *UnknownRoleError) Unwrap() error { return ErrUnknownRole }

// StorageError wraps the underlying I/O failure.
// It matches both ErrStorageIO and the wrapped error.
type StorageError struct {
	Op   string // "read", "create", "append", "replace", "lock"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorageIO }

// NotBookableError reports the first policy rule that matched.
type NotBookableError struct {
	Date   Date
	Reason Reason
}

func (e *NotBookableError) Error() string {
	return fmt.Sprintf("%s is not bookable: %s", e.Date, e.Reason)
}

func (e *NotBookableError) Unwrap() error { return ErrNotBookable }

// UnknownActionError carries the unsupported action name.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Action)
}

func (e *UnknownActionError) Unwrap() error { return ErrUnknownAction }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageIO)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ErrNotBookable)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
