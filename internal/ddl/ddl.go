// Package ddl compiles a finalized schema registry into physical DDL,
// applies it idempotently and checks a live store for drift.
//
// Generation is two-phase: namespaces and tables first, then every foreign
// key as ALTER TABLE … ADD CONSTRAINT once all tables exist, so entities
// may reference each other in any order. Link tables carry an ordinal
// column outside their key that records insertion order. No ON DELETE clause is emitted;
// cascade behaviour is left to the store's defaults.
package ddl

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/schema"
)

// Phase orders statements: every statement of a phase runs before the next phase.
type Phase int

const (
	PhaseSchemas Phase = iota + 1
	PhaseTables
	PhaseForeignKeys
)

func (p Phase) String() string {
	switch p {
	case PhaseSchemas:
		return "schemas"
	case PhaseTables:
		return "tables"
	case PhaseForeignKeys:
		return "foreign_keys"
	default:
		return "unknown"
	}
}

// Statement is one DDL statement and the object it creates.
type Statement struct {
	Phase  Phase
	Object string
	SQL    string
}

// Plan is the ordered DDL for a registry in one dialect.
type Plan struct {
	Dialect    database.Dialect
	Statements []Statement
}

// String renders the plan as a script, one statement per line group.
func (p *Plan) String() string {
	var sb strings.Builder
	for _, s := range p.Statements {
		sb.WriteString(s.SQL)
		sb.WriteString(";\n")
	}
	return sb.String()
}

// maxIdentLen is the shorter of Postgres' (63) and MySQL's (64) identifier limits.
const maxIdentLen = 63

// ColumnType returns the store-native type for a field.
func ColumnType(d database.Dialect, t schema.FieldType, inKey bool) (string, error) {
	switch t {
	case schema.TypeIdentifier:
		if d == database.DialectMySQL {
			return "CHAR(36)", nil
		}
		return "uuid", nil
	case schema.TypeShortInt:
		if d == database.DialectMySQL {
			return "SMALLINT", nil
		}
		return "smallint", nil
	case schema.TypeLongInt:
		if d == database.DialectMySQL {
			return "BIGINT", nil
		}
		return "bigint", nil
	case schema.TypeText:
		if d == database.DialectMySQL {
			// MySQL cannot index an unbounded TEXT column.
			if inKey {
				return "VARCHAR(255)", nil
			}
			return "TEXT", nil
		}
		return "text", nil
	}
	return "", errs.Errorf(errs.ErrKindInvalidField, "no column type for %s", t)
}

// ordinalColumn is the definition of a link table's insertion counter. MySQL
// needs an index on an AUTO_INCREMENT column that is not the primary key.
func ordinalColumn(d database.Dialect) (col, index string) {
	name := d.QuoteIdent(schema.FieldOrdinal)
	if d == database.DialectMySQL {
		return name + " BIGINT NOT NULL AUTO_INCREMENT", "UNIQUE KEY (" + name + ")"
	}
	return name + " bigint GENERATED ALWAYS AS IDENTITY", ""
}

func defaultExpr(d database.Dialect, k schema.DefaultKind) string {
	if k != schema.DefaultGenerateID {
		return ""
	}
	if d == database.DialectMySQL {
		return "(UUID())"
	}
	return "gen_random_uuid()"
}

// Generate compiles every entity of reg into DDL for dialect d. Entities are
// emitted in (namespace, name) order so the output is stable.
func Generate(reg *schema.Registry, d database.Dialect) (*Plan, error) {
	entities := sortedEntities(reg)
	plan := &Plan{Dialect: d}

	seen := make(map[string]bool)
	for _, e := range entities {
		ns := e.Name().Namespace
		if ns == schema.DefaultNamespace || seen[ns] {
			continue
		}
		seen[ns] = true
		plan.Statements = append(plan.Statements, Statement{
			Phase:  PhaseSchemas,
			Object: ns,
			SQL:    "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(ns),
		})
	}

	var acc error
	var fks []Statement
	for _, e := range entities {
		stmt, err := createTable(d, e)
		if err != nil {
			acc = errs.Append(acc, err)
			continue
		}
		plan.Statements = append(plan.Statements, stmt)
		fks = append(fks, foreignKeys(d, e)...)
	}
	if acc != nil {
		return nil, acc
	}
	plan.Statements = append(plan.Statements, fks...)
	return plan, nil
}

func createTable(d database.Dialect, e *schema.Entity) (Statement, error) {
	q := e.Name()
	pk := e.PrimaryKey()
	inKey := make(map[string]bool, len(pk))
	for _, c := range pk {
		inKey[c] = true
	}

	lines := make([]string, 0, len(e.Fields())+3)
	for _, f := range e.Fields() {
		typ, err := ColumnType(d, f.Type, inKey[f.Name])
		if err != nil {
			return Statement{}, errs.Wrap(errs.ErrKindInvalidField, q.String()+"."+f.Name, err)
		}
		col := d.QuoteIdent(f.Name) + " " + typ
		if !f.Nullable || inKey[f.Name] {
			col += " NOT NULL"
		}
		if def := defaultExpr(d, f.Default); def != "" {
			col += " DEFAULT " + def
		}
		lines = append(lines, col)
	}
	var ordinalIndex string
	if e.IsLink() {
		var col string
		col, ordinalIndex = ordinalColumn(d)
		lines = append(lines, col)
	}
	lines = append(lines, "PRIMARY KEY ("+quoteList(d, pk)+")")
	if ordinalIndex != "" {
		lines = append(lines, ordinalIndex)
	}

	return Statement{
		Phase:  PhaseTables,
		Object: q.String(),
		SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
			d.QuoteTable(q.Namespace, q.Name), strings.Join(lines, ",\n  ")),
	}, nil
}

func foreignKeys(d database.Dialect, e *schema.Entity) []Statement {
	q := e.Name()
	var out []Statement
	for _, f := range e.Fields() {
		if f.References == nil {
			continue
		}
		ref := f.References.Entity
		name := ConstraintName(q.Name, f.Name)
		out = append(out, Statement{
			Phase:  PhaseForeignKeys,
			Object: q.String() + "." + name,
			SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
				d.QuoteTable(q.Namespace, q.Name),
				d.QuoteIdent(name),
				d.QuoteIdent(f.Name),
				d.QuoteTable(ref.Namespace, ref.Name),
				d.QuoteIdent(f.References.Field)),
		})
	}
	return out
}

// ConstraintName follows Postgres' <table>_<column>_fkey convention and
// shortens over-long names with a stable hash suffix.
func ConstraintName(table, column string) string {
	name := table + "_" + column + "_fkey"
	if len(name) <= maxIdentLen {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:maxIdentLen-len(suffix)] + suffix
}

func sortedEntities(reg *schema.Registry) []*schema.Entity {
	entities := reg.Entities()
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i].Name(), entities[j].Name()
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Name < b.Name
	})
	return entities
}

func quoteList(d database.Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
