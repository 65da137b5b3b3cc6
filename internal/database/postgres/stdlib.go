package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/database/sqldb"
	"github.com/koustreak/relschema/internal/errs"
)

// SQLDriver is a PostgreSQL database.DB over database/sql (pgx stdlib).
// It serves callers that already hold a *sql.DB.
type SQLDriver struct {
	*sqldb.DB
	Introspector
}

var _ database.DB = (*SQLDriver)(nil)

// Wrap adapts an open *sql.DB speaking PostgreSQL.
func Wrap(db *sql.DB) *SQLDriver {
	d := &SQLDriver{DB: sqldb.New(db, database.DialectPostgres, MapError)}
	d.Introspector = Introspector{Q: d.DB}
	return d
}

// OpenSQL opens a database/sql pool through the pgx stdlib driver using the
// pool settings in cfg, and pings it.
func OpenSQL(ctx context.Context, cfg *database.Config) (*SQLDriver, error) {
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	db := stdlib.OpenDB(*connCfg)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := Wrap(db)
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
