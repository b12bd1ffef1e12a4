// Package storage is the sole reader/writer of the SQLite file: schema
// lifecycle, CRUD for decks/seasons/opponent-decks/keywords/matches,
// usage-counter accounting, and CSV/ZIP backup import/export.
package storage

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// The error taxonomy callers program against. Raw sqlite errors never
// escape this package: they are logged with context and re-wrapped as one
// of these kinds, so the layers above can show a specific message for
// validation/duplicate/not-found/in-use and a generic one for the rest.

// ValidationError means the caller supplied invalid or missing input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// DuplicateError is a unique-constraint violation on a name-like field,
// distinguished from a generic database error so the UI can say
// "already exists".
type DuplicateError struct {
	Entity string
	Name   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

// NotFoundError means the referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Name   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Name)
}

// InUseError blocks deletion of an entity whose usage_count is nonzero.
type InUseError struct {
	Entity     string
	Name       string
	UsageCount int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %q is referenced by %d match(es)", e.Entity, e.Name, e.UsageCount)
}

// DatabaseError wraps any other SQLite failure after it has been logged.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *DatabaseError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsInUse reports whether err is an InUseError.
func IsInUse(err error) bool {
	var ue *InUseError
	return errors.As(err, &ue)
}

// isUniqueViolation detects the sqlite unique-constraint extended code so
// inserts can map it to DuplicateError instead of DatabaseError.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
