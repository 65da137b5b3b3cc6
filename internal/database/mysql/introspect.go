package mysql

import (
	"context"
	"strings"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
)

// Introspector reads MySQL's information_schema through any Querier.
// A MySQL "schema" is a database; DefaultSchema means the connected one.
type Introspector struct {
	Q database.Querier
}

// schemaArg binds DefaultSchema as NULL so COALESCE(?, DATABASE()) picks
// the connected database.
func schemaArg(schema string) any {
	if schema == "" || schema == database.DefaultSchema {
		return nil
	}
	return schema
}

func (i Introspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(?, DATABASE())
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := i.Q.Query(ctx, q, schemaArg(schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, MapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (i Introspector) TableExists(ctx context.Context, schema, table string) (bool, error) {
	const q = `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = COALESCE(?, DATABASE())
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`

	row, err := i.Q.QueryRow(ctx, q, schemaArg(schema), table)
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

// InspectTable reads the columns of schema.table; column_key marks the
// primary key columns.
func (i Introspector) InspectTable(ctx context.Context, schema, table string) (*database.TableInfo, error) {
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_default,
		       column_key
		FROM information_schema.columns
		WHERE table_schema = COALESCE(?, DATABASE())
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := i.Q.Query(ctx, q, schemaArg(schema), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	info := &database.TableInfo{Schema: schema, Name: table}
	for rows.Next() {
		var c database.ColumnInfo
		var columnKey string
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &columnKey); err != nil {
			return nil, MapError(err, "failed to scan column info")
		}
		c.DataType = strings.ToLower(c.DataType)
		c.IsPrimary = columnKey == "PRI"
		if c.IsPrimary {
			info.PrimaryKey = append(info.PrimaryKey, c.Name)
		}
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(info.Columns) == 0 {
		return nil, errs.Errorf(errs.ErrKindNotFound, "table %s.%s not found", schema, table)
	}
	return info, nil
}

func (i Introspector) ListForeignKeys(ctx context.Context, schema string) ([]database.ForeignKey, error) {
	const q = `
		SELECT constraint_name,
		       table_name,
		       column_name,
		       referenced_table_schema,
		       referenced_table_name,
		       referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema           = COALESCE(?, DATABASE())
		  AND referenced_table_name IS NOT NULL
		ORDER BY table_name, column_name`

	rows, err := i.Q.Query(ctx, q, schemaArg(schema))
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
