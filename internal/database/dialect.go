package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultSchema is the store namespace that is addressed without a
// qualifier: Postgres' search_path default and MySQL's connected database.
const DefaultSchema = "public"

// Dialect controls placeholder style, identifier quoting and the statement
// features the builders may use.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double-quoted" identifiers.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backtick` identifiers.
	DialectMySQL
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Placeholder returns the parameter placeholder for the idx-th (1-based) argument.
func (d Dialect) Placeholder(idx int) string {
	if d == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", idx)
}

// QuoteIdent quotes a single identifier so reserved words, mixed case and
// names containing dots ("Movie.actors") are addressed literally.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(name)
}

// QuoteTable renders a table reference. Tables in DefaultSchema (or with no
// schema) are left unqualified.
func (d Dialect) QuoteTable(schema, table string) string {
	if schema == "" || schema == DefaultSchema {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// SupportsReturning reports whether INSERT/UPDATE/DELETE … RETURNING is available.
func (d Dialect) SupportsReturning() bool {
	return d == DialectPostgres
}
