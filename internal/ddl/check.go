package ddl

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/schema"
)

// DriftKind classifies a difference between the registry and the store.
type DriftKind int

const (
	DriftMissingTable DriftKind = iota + 1
	DriftMissingColumn
	DriftTypeMismatch
	DriftNullability
	DriftMissingForeignKey
	DriftExtraColumn
)

func (k DriftKind) String() string {
	switch k {
	case DriftMissingTable:
		return "missing_table"
	case DriftMissingColumn:
		return "missing_column"
	case DriftTypeMismatch:
		return "type_mismatch"
	case DriftNullability:
		return "nullability"
	case DriftMissingForeignKey:
		return "missing_foreign_key"
	case DriftExtraColumn:
		return "extra_column"
	default:
		return "unknown"
	}
}

// Drift is one difference found by Check.
type Drift struct {
	Kind   DriftKind
	Entity string
	Column string
	Detail string
}

func (d Drift) String() string {
	target := d.Entity
	if d.Column != "" {
		target += "." + d.Column
	}
	if d.Detail == "" {
		return fmt.Sprintf("%s: %s", d.Kind, target)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Kind, target, d.Detail)
}

// Report lists every drift found. Extra columns are informational and do
// not make a report fail.
type Report struct {
	Drifts []Drift
}

// OK reports whether the store matches the registry.
func (r *Report) OK() bool {
	for _, d := range r.Drifts {
		if d.Kind != DriftExtraColumn {
			return false
		}
	}
	return true
}

func (r *Report) String() string {
	if len(r.Drifts) == 0 {
		return "no drift"
	}
	lines := make([]string, len(r.Drifts))
	for i, d := range r.Drifts {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// reportedType is the information_schema data_type a column of type t
// is expected to have.
func reportedType(d database.Dialect, t schema.FieldType, inKey bool) string {
	if d == database.DialectMySQL {
		switch t {
		case schema.TypeIdentifier:
			return "char"
		case schema.TypeText:
			if inKey {
				return "varchar"
			}
			return "text"
		}
	}
	typ, _ := ColumnType(d, t, inKey)
	return strings.ToLower(typ)
}

// Check compares the live store, as seen through in, against reg.
func Check(ctx context.Context, in database.Introspector, reg *schema.Registry, d database.Dialect) (*Report, error) {
	report := &Report{}
	byNamespace := make(map[string][]*schema.Entity)
	var namespaces []string
	for _, e := range sortedEntities(reg) {
		ns := e.Name().Namespace
		if _, ok := byNamespace[ns]; !ok {
			namespaces = append(namespaces, ns)
		}
		byNamespace[ns] = append(byNamespace[ns], e)
	}

	for _, ns := range namespaces {
		info, err := database.InspectSchema(ctx, in, ns)
		if err != nil {
			return nil, err
		}
		for _, e := range byNamespace[ns] {
			report.Drifts = append(report.Drifts, checkEntity(d, info, e)...)
		}
	}
	return report, nil
}

func checkEntity(d database.Dialect, info *database.SchemaInfo, e *schema.Entity) []Drift {
	q := e.Name()
	table, ok := info.Table(q.Name)
	if !ok {
		return []Drift{{Kind: DriftMissingTable, Entity: q.String()}}
	}

	inKey := make(map[string]bool)
	for _, c := range e.PrimaryKey() {
		inKey[c] = true
	}

	var out []Drift
	for _, f := range e.Fields() {
		col, ok := table.Column(f.Name)
		if !ok {
			out = append(out, Drift{Kind: DriftMissingColumn, Entity: q.String(), Column: f.Name})
			continue
		}
		if want := reportedType(d, f.Type, inKey[f.Name]); col.DataType != want {
			out = append(out, Drift{
				Kind: DriftTypeMismatch, Entity: q.String(), Column: f.Name,
				Detail: fmt.Sprintf("want %s, have %s", want, col.DataType),
			})
		}
		wantNullable := f.Nullable && !inKey[f.Name]
		if col.Nullable != wantNullable {
			out = append(out, Drift{
				Kind: DriftNullability, Entity: q.String(), Column: f.Name,
				Detail: fmt.Sprintf("want nullable=%t", wantNullable),
			})
		}
		if f.References != nil && !hasForeignKey(info, q.Name, f) {
			out = append(out, Drift{
				Kind: DriftMissingForeignKey, Entity: q.String(), Column: f.Name,
				Detail: "references " + f.References.Entity.String(),
			})
		}
	}

	if e.IsLink() {
		out = append(out, checkOrdinal(table, q)...)
	}

	for _, col := range table.Columns {
		if e.IsLink() && col.Name == schema.FieldOrdinal {
			continue
		}
		if _, ok := e.Field(col.Name); !ok {
			out = append(out, Drift{Kind: DriftExtraColumn, Entity: q.String(), Column: col.Name})
		}
	}
	return out
}

// checkOrdinal expects the insertion counter every generated link table has.
// Both stores report it as bigint.
func checkOrdinal(table *database.TableInfo, q schema.QualifiedName) []Drift {
	col, ok := table.Column(schema.FieldOrdinal)
	switch {
	case !ok:
		return []Drift{{Kind: DriftMissingColumn, Entity: q.String(), Column: schema.FieldOrdinal}}
	case col.DataType != "bigint":
		return []Drift{{
			Kind: DriftTypeMismatch, Entity: q.String(), Column: schema.FieldOrdinal,
			Detail: "want bigint, have " + col.DataType,
		}}
	case col.Nullable:
		return []Drift{{
			Kind: DriftNullability, Entity: q.String(), Column: schema.FieldOrdinal,
			Detail: "want nullable=false",
		}}
	}
	return nil
}

func hasForeignKey(info *database.SchemaInfo, table string, f schema.Field) bool {
	for _, fk := range info.ForeignKeys {
		if fk.Table == table && fk.Column == f.Name &&
			fk.RefTable == f.References.Entity.Name && fk.RefColumn == f.References.Field {
			return true
		}
	}
	return false
}
