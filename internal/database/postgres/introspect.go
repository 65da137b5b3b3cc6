package postgres

import (
	"context"
	"strings"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
)

// Introspector reads information_schema through any Querier, so the pgx
// pool, a transaction and the database/sql path share one implementation.
type Introspector struct {
	Q database.Querier
}

// ListTables returns all base tables in schema, sorted by name.
func (i Introspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	return i.fetchStringList(ctx, q, "failed to list tables", schema)
}

// TableExists reports whether schema.table exists.
func (i Introspector) TableExists(ctx context.Context, schema, table string) (bool, error) {
	const q = `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = $2`

	row, err := i.Q.QueryRow(ctx, q, schema, table)
	if err != nil {
		return false, err
	}
	var exists int
	if err := row.Scan(&exists); err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InspectTable fetches the columns and primary key of schema.table.
func (i Introspector) InspectTable(ctx context.Context, schema, table string) (*database.TableInfo, error) {
	columns, err := i.fetchColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, errs.Errorf(errs.ErrKindNotFound, "table %s.%s not found", schema, table)
	}

	pks, err := i.fetchPrimaryKeys(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	pkSet := toSet(pks)
	for j := range columns {
		columns[j].IsPrimary = pkSet[columns[j].Name]
	}

	return &database.TableInfo{
		Schema:     schema,
		Name:       table,
		Columns:    columns,
		PrimaryKey: pks,
	}, nil
}

// ListForeignKeys returns every foreign-key column declared by tables in schema.
func (i Introspector) ListForeignKeys(ctx context.Context, schema string) ([]database.ForeignKey, error) {
	const q = `
		SELECT tc.constraint_name,
		       tc.table_name,
		       kcu.column_name,
		       ccu.table_schema AS ref_schema,
		       ccu.table_name   AS ref_table,
		       ccu.column_name  AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		 AND tc.table_schema    = ccu.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema    = $1
		ORDER BY tc.table_name, kcu.column_name`

	rows, err := i.Q.Query(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []database.ForeignKey
	for rows.Next() {
		var fk database.ForeignKey
		if err := rows.Scan(&fk.Name, &fk.Table, &fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, MapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (i Introspector) fetchColumns(ctx context.Context, schema, table string) ([]database.ColumnInfo, error) {
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_default
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name   = $2
		ORDER BY ordinal_position`

	rows, err := i.Q.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var c database.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default); err != nil {
			return nil, MapError(err, "failed to scan column info")
		}
		c.DataType = strings.ToLower(c.DataType)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (i Introspector) fetchPrimaryKeys(ctx context.Context, schema, table string) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema    = $1
		  AND tc.table_name      = $2
		ORDER BY kcu.ordinal_position`

	return i.fetchStringList(ctx, q, "failed to fetch primary keys", schema, table)
}

// fetchStringList is a helper for queries that return a single text column.
func (i Introspector) fetchStringList(ctx context.Context, q, errMsg string, args ...any) ([]string, error) {
	rows, err := i.Q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, MapError(err, errMsg)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
