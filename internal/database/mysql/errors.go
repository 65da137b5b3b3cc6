package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/relschema/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBCreateExists     = 1007
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errNoDatabase         = 1046
	errBadNull            = 1048
	errUnknownDatabase    = 1049
	errTableExists        = 1050
	errDupKeyName         = 1061
	errDuplicateEntry     = 1062
	errTooManyConnections = 1040
	errTableAccessDenied  = 1142
	errTooManyUserConns   = 1203
	errNoDefaultForField  = 1364
	errRowIsReferenced    = 1451
	errNoReferencedRow    = 1452
	errFKDupName          = 1826
	errCheckViolated      = 3819
	errQueryInterrupted   = 1317
	errQueryTimeout       = 3024
)

// MapError translates go-sql-driver/mysql errors into *errs.Error.
func MapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.As(err, &netErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errBadNull, errDuplicateEntry, errRowIsReferenced, errNoReferencedRow,
		errNoDefaultForField, errCheckViolated:
		return errs.ErrKindConstraint
	case errFKDupName, errTableExists, errDBCreateExists, errDupKeyName:
		return errs.ErrKindAlreadyExists
	case errAccessDenied, errDBAccessDenied, errTableAccessDenied:
		return errs.ErrKindPermissionDenied
	case errNoDatabase, errUnknownDatabase, errTooManyConnections, errTooManyUserConns:
		return errs.ErrKindConnectionFailed
	case errQueryInterrupted, errQueryTimeout:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
