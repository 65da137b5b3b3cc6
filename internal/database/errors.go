package database

import "github.com/koustreak/relschema/internal/errs"

// Constructor helpers used by the builders and scanners in this package.
// Drivers translate their native errors with their own mapError.

func errQuery(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}

func errInvalidInputf(format string, args ...any) *errs.Error {
	return errs.Errorf(errs.ErrKindInvalidInput, format, args...)
}
