package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/relschema/internal/errs"
)

// PostgreSQL SQLSTATE codes and classes the mapper distinguishes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	classConnection         = "08"
	classIntegrity          = "23" // not_null, foreign_key, unique, check, exclusion
	classInvalidAuth        = "28"
	codeInsufficientPriv    = "42501"
	codeDuplicateObject     = "42710"
	codeDuplicateTable      = "42P07"
	codeDuplicateSchema     = "42P06"
	codeQueryCanceled       = "57014"
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// MapError translates pgx / pgconn native errors into *errs.Error. The
// native error is kept as the cause so errors.Is / errors.As still see it.
func MapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	// Context cancellation / deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// No rows
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classify(pgErr), fmt.Sprintf("%s: %s", msg, describe(pgErr)), err)
	}

	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// Connection-level errors (TLS, network, auth handshake)
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

func classify(pgErr *pgconn.PgError) errs.ErrKind {
	switch pgErr.Code {
	case codeDuplicateObject, codeDuplicateTable, codeDuplicateSchema:
		return errs.ErrKindAlreadyExists
	case codeInsufficientPriv:
		return errs.ErrKindPermissionDenied
	case codeQueryCanceled:
		return errs.ErrKindTimeout
	}
	if len(pgErr.Code) < 2 {
		return errs.ErrKindQueryFailed
	}
	switch pgErr.Code[:2] {
	case classIntegrity:
		return errs.ErrKindConstraint
	case classConnection:
		return errs.ErrKindConnectionFailed
	case classInvalidAuth:
		return errs.ErrKindPermissionDenied
	}
	return errs.ErrKindQueryFailed
}

// describe renders the server message, naming the violated constraint for
// unique and foreign-key failures.
func describe(pgErr *pgconn.PgError) string {
	switch pgErr.Code {
	case codeUniqueViolation, codeForeignKeyViolation:
		if pgErr.ConstraintName != "" {
			return fmt.Sprintf("%s (constraint %s)", pgErr.Message, pgErr.ConstraintName)
		}
	}
	return pgErr.Message
}
