package mysql

import (
	"context"
	"database/sql"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/database/sqldb"
	"github.com/koustreak/relschema/internal/errs"
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	*sqldb.DB
	Introspector
}

var _ database.DB = (*Driver)(nil)

// Wrap adapts an open *sql.DB speaking MySQL.
func Wrap(db *sql.DB) *Driver {
	d := &Driver{DB: sqldb.New(db, database.DialectMySQL, MapError)}
	d.Introspector = Introspector{Q: d.DB}
	return d
}

// New opens a MySQL connection pool using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	mcfg, err := connConfig(cfg)
	if err != nil {
		return nil, err
	}

	connector, err := gomysql.NewConnector(mcfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	db := sql.OpenDB(connector)

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := Wrap(db)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := d.Ping(pingCtx); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// connConfig parses the DSN. Affected-row counts report matched rows, not
// changed rows, so an UPDATE counts the same as on Postgres.
func connConfig(cfg *database.Config) (*gomysql.Config, error) {
	mcfg, err := gomysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	if cfg.ConnectTimeout > 0 {
		mcfg.Timeout = cfg.ConnectTimeout
	}
	mcfg.ClientFoundRows = true
	return mcfg, nil
}
