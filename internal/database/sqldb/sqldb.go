// Package sqldb adapts a database/sql pool to the database.Executor
// contract. Engine packages supply the dialect and their error mapper; the
// MySQL driver, the pgx stdlib path and sqlmock-backed tests all go through
// it.
package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/koustreak/relschema/internal/database"
)

// ErrorMapper translates a native driver error into an *errs.Error,
// prefixing it with msg. It must return nil for a nil error.
type ErrorMapper func(err error, msg string) error

// DB is a database/sql backed implementation of database.Executor plus the
// lifecycle half of database.DB. It is safe for concurrent use.
type DB struct {
	db      *sql.DB
	dialect database.Dialect
	mapErr  ErrorMapper
}

// New wraps an open *sql.DB.
func New(db *sql.DB, d database.Dialect, mapErr ErrorMapper) *DB {
	return &DB{db: db, dialect: d, mapErr: mapErr}
}

// SQL exposes the underlying pool.
func (d *DB) SQL() *sql.DB { return d.db }

// Dialect returns the SQL dialect statements must be compiled for.
func (d *DB) Dialect() database.Dialect { return d.dialect }

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return d.mapErr(err, "ping failed")
	}
	return nil
}

// Close releases the pool.
func (d *DB) Close() {
	_ = d.db.Close()
}

// Query executes a SQL statement that returns multiple rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return runQuery(ctx, d.db, d.mapErr, query, args)
}

// QueryRow executes a SQL statement expected to return at most one row.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	return &sqlRow{row: d.db.QueryRowContext(ctx, query, args...), mapErr: d.mapErr}, nil
}

// Exec executes a statement and reports the rows affected.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return runExec(ctx, d.db, d.mapErr, query, args)
}

// Begin starts a transaction.
func (d *DB) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, d.mapErr(err, "unable to start transaction")
	}
	return &Tx{tx: tx, dialect: d.dialect, mapErr: d.mapErr}, nil
}

// Tx is a database/sql transaction satisfying database.Tx.
type Tx struct {
	tx      *sql.Tx
	dialect database.Dialect
	mapErr  ErrorMapper
}

func (t *Tx) Dialect() database.Dialect { return t.dialect }

func (t *Tx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return runQuery(ctx, t.tx, t.mapErr, query, args)
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	return &sqlRow{row: t.tx.QueryRowContext(ctx, query, args...), mapErr: t.mapErr}, nil
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return runExec(ctx, t.tx, t.mapErr, query, args)
}

func (t *Tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return t.mapErr(err, "unable to commit transaction")
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return t.mapErr(err, "unable to roll back transaction")
	}
	return nil
}

// --- shared statement helpers ---

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func runQuery(ctx context.Context, q queryer, mapErr ErrorMapper, query string, args []any) (database.Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "query failed")
	}
	return &sqlRows{rows: rows, mapErr: mapErr}, nil
}

func runExec(ctx context.Context, q queryer, mapErr ErrorMapper, query string, args []any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err, "rows affected unavailable")
	}
	return n, nil
}

// --- sql type wrappers ---

type sqlRows struct {
	rows   *sql.Rows
	mapErr ErrorMapper
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.mapErr(err, "error during row iteration")
	}
	return nil
}

type sqlRow struct {
	row    *sql.Row
	mapErr ErrorMapper
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return r.mapErr(err, "failed to scan row")
	}
	return nil
}
