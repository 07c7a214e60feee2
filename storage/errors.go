package storage

import "fmt"

// Error codes surfaced by StorageError.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeNotSupported     = "NOT_SUPPORTED"
)

// NotFoundError is returned when an entity lookup by id fails.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: %s %q not found", e.Entity, e.ID)
}

// NotFound constructs a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError is returned on unique-constraint or optimistic-concurrency
// violations.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "storage: conflict: " + e.Message
}

// Conflict constructs a ConflictError.
func Conflict(message string) error {
	return &ConflictError{Message: message}
}

// Error is the generic storage error taxon, carrying a machine-readable
// code alongside a human message.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s (%s)", e.Message, e.Code)
}

// NewError constructs a generic coded Error.
func NewError(message, code string) error {
	return &Error{Message: message, Code: code}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
