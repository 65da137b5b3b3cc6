// Package errs provides the unified error type used across all of relschema.
//
// Every subsystem (schema registry, resolver, database drivers, filestore, …)
// wraps its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindConstraint, "insert rejected", pgErr)
//
//	// In a handler, check the error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
//
// Schema construction reports every independent problem at once. Those
// errors are combined with multierr; All flattens them back into a slice.
package errs

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // lookup miss: no entity, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure

	ErrKindInvalidField      // schema declared inconsistently
	ErrKindDuplicateEntity   // qualified entity name collision
	ErrKindDanglingReference // relation or foreign key target cannot be resolved
	ErrKindConstraint        // store rejected a write (nullability, FK, uniqueness)
	ErrKindAlreadyExists     // DDL object already present
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindInvalidField:
		return "invalid_field"
	case ErrKindDuplicateEntity:
		return "duplicate_entity"
	case ErrKindDanglingReference:
		return "dangling_reference"
	case ErrKindConstraint:
		return "constraint"
	case ErrKindAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all relschema subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates an *Error with a formatted message and no cause.
func Errorf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Aggregation ---

// Append combines err into the accumulated error acc. Either may be nil.
func Append(acc, err error) error {
	return multierr.Append(acc, err)
}

// All flattens a (possibly combined) error into its *Error parts.
// Parts that are not *Error are wrapped with ErrKindUnknown.
func All(err error) []*Error {
	if err == nil {
		return nil
	}
	parts := multierr.Errors(err)
	out := make([]*Error, 0, len(parts))
	for _, p := range parts {
		var e *Error
		if errors.As(p, &e) {
			out = append(out, e)
			continue
		}
		out = append(out, Wrap(ErrKindUnknown, "unclassified error", p))
	}
	return out
}

// --- Predicates ---

// IsNotFound reports whether err represents a lookup miss.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// IsInvalidField reports whether err is a schema declaration inconsistency.
func IsInvalidField(err error) bool {
	return kindOf(err) == ErrKindInvalidField
}

// IsDuplicateEntity reports whether err is a qualified-name collision.
func IsDuplicateEntity(err error) bool {
	return kindOf(err) == ErrKindDuplicateEntity
}

// IsDanglingReference reports whether err is an unresolved relation or foreign key.
func IsDanglingReference(err error) bool {
	return kindOf(err) == ErrKindDanglingReference
}

// IsConstraint reports whether the store (or the pre-write checks) rejected a write.
func IsConstraint(err error) bool {
	return kindOf(err) == ErrKindConstraint
}

// IsAlreadyExists reports whether err signals a DDL object that already exists.
func IsAlreadyExists(err error) bool {
	return kindOf(err) == ErrKindAlreadyExists
}

// KindOf extracts the ErrKind of the first *Error in the chain.
func KindOf(err error) ErrKind {
	return kindOf(err)
}

func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
