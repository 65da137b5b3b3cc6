package database

import "context"

// Introspector reads the structure of a database (tables, columns, foreign keys).
// Each driver implements the DB-specific queries; InspectSchema is shared.
type Introspector interface {
	ListTables(ctx context.Context, schema string) ([]string, error)
	TableExists(ctx context.Context, schema, table string) (bool, error)
	InspectTable(ctx context.Context, schema, table string) (*TableInfo, error)
	ListForeignKeys(ctx context.Context, schema string) ([]ForeignKey, error)
}

// ColumnInfo describes a single column as the store reports it.
type ColumnInfo struct {
	Name      string
	DataType  string // information_schema data_type, lower-cased
	Nullable  bool
	Default   *string
	IsPrimary bool
}

// TableInfo describes a table and its columns in ordinal order.
type TableInfo struct {
	Schema     string
	Name       string
	Columns    []ColumnInfo
	PrimaryKey []string
}

// Column looks up a column by name.
func (t *TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// ForeignKey describes one foreign-key column and what it points at.
type ForeignKey struct {
	Name      string
	Table     string
	Column    string
	RefSchema string
	RefTable  string
	RefColumn string
}

// SchemaInfo is the introspected content of one store namespace.
type SchemaInfo struct {
	Name        string
	Tables      []TableInfo
	ForeignKeys []ForeignKey
}

// Table looks up a table by name.
func (s *SchemaInfo) Table(name string) (*TableInfo, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// InspectSchema builds the full SchemaInfo by orchestrating the Introspector.
// This is an expensive operation; callers should cache the result.
func InspectSchema(ctx context.Context, i Introspector, schema string) (*SchemaInfo, error) {
	tables, err := i.ListTables(ctx, schema)
	if err != nil {
		return nil, err
	}

	info := &SchemaInfo{Name: schema}
	for _, table := range tables {
		ti, err := i.InspectTable(ctx, schema, table)
		if err != nil {
			return nil, err
		}
		info.Tables = append(info.Tables, *ti)
	}

	fks, err := i.ListForeignKeys(ctx, schema)
	if err != nil {
		return nil, err
	}
	info.ForeignKeys = fks
	return info, nil
}
