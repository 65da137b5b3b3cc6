package database

import (
	"fmt"
	"strings"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":      true,
	"!=":     true,
	"<>":     true,
	"<":      true,
	">":      true,
	"<=":     true,
	">=":     true,
	"LIKE":   true,
	"ILIKE":  true,
	"IN":     true,
	"NOT IN": true,
}

// ValidOp reports whether op is an accepted WHERE operator.
func ValidOp(op string) bool {
	return validOps[strings.ToUpper(strings.TrimSpace(op))]
}

// Condition is one column-operator-value comparison. Conditions passed to a
// builder are combined with AND.
//
// For IN and NOT IN the value must be a []any. A nil value with = or !=
// compiles to IS NULL / IS NOT NULL.
type Condition struct {
	Column string
	Op     string
	Value  any
}

// Eq is shorthand for an equality Condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: "=", Value: value}
}

// In is shorthand for an IN Condition.
func In(column string, values []any) Condition {
	return Condition{Column: column, Op: "IN", Value: values}
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type orderClause struct {
	column string
	dir    SortDirection
}

// argList accumulates bind arguments and hands out placeholders.
type argList struct {
	dialect Dialect
	args    []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return a.dialect.Placeholder(len(a.args))
}

// writeWhere renders conds as a WHERE clause into sb.
func writeWhere(sb *strings.Builder, a *argList, conds []Condition) error {
	if len(conds) == 0 {
		return nil
	}
	d := a.dialect
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if c.Column == "" {
			return errInvalidInput("WHERE condition has an empty column")
		}
		op := strings.ToUpper(strings.TrimSpace(c.Op))
		if !validOps[op] {
			return errInvalidInputf("unsupported WHERE operator: %q", c.Op)
		}
		col := d.QuoteIdent(c.Column)

		switch op {
		case "IN", "NOT IN":
			values, ok := c.Value.([]any)
			if !ok {
				return errInvalidInputf("%s on %q needs a list of values, got %T", op, c.Column, c.Value)
			}
			if len(values) == 0 {
				// x IN () matches nothing; x NOT IN () matches everything.
				if op == "IN" {
					parts = append(parts, "1 = 0")
				} else {
					parts = append(parts, "1 = 1")
				}
				continue
			}
			ph := make([]string, len(values))
			for i, v := range values {
				ph[i] = a.add(v)
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)", col, op, strings.Join(ph, ", ")))
			continue
		}

		if c.Value == nil {
			switch op {
			case "=":
				parts = append(parts, col+" IS NULL")
			case "!=", "<>":
				parts = append(parts, col+" IS NOT NULL")
			default:
				return errInvalidInputf("operator %s cannot compare %q with NULL", op, c.Column)
			}
			continue
		}

		if op == "ILIKE" && d == DialectMySQL {
			op = "LIKE"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", col, op, a.add(c.Value)))
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(parts, " AND "))
	return nil
}

func writeReturning(sb *strings.Builder, d Dialect, cols []string) {
	if len(cols) == 0 || !d.SupportsReturning() {
		return
	}
	sb.WriteString(" RETURNING ")
	sb.WriteString(quoteList(d, cols))
}

func quoteList(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// --- SELECT ---

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string, only passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Select("Movie", DialectPostgres).
//	    Columns("id", "title", "release_year").
//	    Where("release_year", ">=", 2000).
//	    OrderBy("title", Asc).
//	    Limit(20).
//	    Build()
type SelectBuilder struct {
	schema  string
	table   string
	dialect Dialect
	columns []string
	where   []Condition
	orderBy []orderClause
	limit   *int
	offset  *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// InSchema qualifies the table with a store namespace.
func (b *SelectBuilder) InSchema(schema string) *SelectBuilder {
	b.schema = schema
	return b
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, Condition{column, op, value})
	return b
}

// WhereAll adds every condition in conds.
func (b *SelectBuilder) WhereAll(conds ...Condition) *SelectBuilder {
	b.where = append(b.where, conds...)
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	cols := "*"
	if len(b.columns) > 0 {
		cols = quoteList(b.dialect, b.columns)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteTable(b.schema, b.table))

	a := &argList{dialect: b.dialect}
	if err := writeWhere(&sb, a, b.where); err != nil {
		return "", nil, err
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", b.dialect.QuoteIdent(o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(a.add(*b.limit))
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(a.add(*b.offset))
	}

	return sb.String(), a.args, nil
}

// --- INSERT ---

// InsertBuilder constructs a single-row parameterized INSERT.
type InsertBuilder struct {
	schema    string
	table     string
	dialect   Dialect
	columns   []string
	values    []any
	returning []string
}

// Insert starts a new InsertBuilder for the given table and dialect.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// InSchema qualifies the table with a store namespace.
func (b *InsertBuilder) InSchema(schema string) *InsertBuilder {
	b.schema = schema
	return b
}

// Set adds one column value. Columns are written in call order.
func (b *InsertBuilder) Set(column string, value any) *InsertBuilder {
	b.columns = append(b.columns, column)
	b.values = append(b.values, value)
	return b
}

// Returning asks for the inserted row's columns back. It is ignored by
// dialects without RETURNING support.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	b.returning = cols
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.dialect.QuoteTable(b.schema, b.table))

	a := &argList{dialect: b.dialect}
	if len(b.columns) == 0 {
		if b.dialect == DialectMySQL {
			sb.WriteString(" () VALUES ()")
		} else {
			sb.WriteString(" DEFAULT VALUES")
		}
	} else {
		ph := make([]string, len(b.values))
		for i, v := range b.values {
			if b.columns[i] == "" {
				return "", nil, errInvalidInput("INSERT has an empty column name")
			}
			ph[i] = a.add(v)
		}
		sb.WriteString(" (")
		sb.WriteString(quoteList(b.dialect, b.columns))
		sb.WriteString(") VALUES (")
		sb.WriteString(strings.Join(ph, ", "))
		sb.WriteString(")")
	}
	writeReturning(&sb, b.dialect, b.returning)
	return sb.String(), a.args, nil
}

// --- UPDATE ---

// UpdateBuilder constructs a parameterized UPDATE.
type UpdateBuilder struct {
	schema    string
	table     string
	dialect   Dialect
	columns   []string
	values    []any
	where     []Condition
	returning []string
}

// Update starts a new UpdateBuilder for the given table and dialect.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

// InSchema qualifies the table with a store namespace.
func (b *UpdateBuilder) InSchema(schema string) *UpdateBuilder {
	b.schema = schema
	return b
}

// Set adds one SET assignment. Assignments are written in call order.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.columns = append(b.columns, column)
	b.values = append(b.values, value)
	return b
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, Condition{column, op, value})
	return b
}

// WhereAll adds every condition in conds.
func (b *UpdateBuilder) WhereAll(conds ...Condition) *UpdateBuilder {
	b.where = append(b.where, conds...)
	return b
}

// Returning asks for the updated rows' columns back. It is ignored by
// dialects without RETURNING support.
func (b *UpdateBuilder) Returning(cols ...string) *UpdateBuilder {
	b.returning = cols
	return b
}

// Build produces the final SQL string and argument slice.
// An UPDATE without assignments is rejected.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, errInvalidInput("UPDATE has no SET assignments")
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.QuoteTable(b.schema, b.table))
	sb.WriteString(" SET ")

	a := &argList{dialect: b.dialect}
	sets := make([]string, len(b.columns))
	for i, c := range b.columns {
		if c == "" {
			return "", nil, errInvalidInput("UPDATE has an empty column name")
		}
		sets[i] = b.dialect.QuoteIdent(c) + " = " + a.add(b.values[i])
	}
	sb.WriteString(strings.Join(sets, ", "))

	if err := writeWhere(&sb, a, b.where); err != nil {
		return "", nil, err
	}
	writeReturning(&sb, b.dialect, b.returning)
	return sb.String(), a.args, nil
}

// --- DELETE ---

// DeleteBuilder constructs a parameterized DELETE. Without conditions it
// deletes every row.
type DeleteBuilder struct {
	schema  string
	table   string
	dialect Dialect
	where   []Condition
}

// Delete starts a new DeleteBuilder for the given table and dialect.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d}
}

// InSchema qualifies the table with a store namespace.
func (b *DeleteBuilder) InSchema(schema string) *DeleteBuilder {
	b.schema = schema
	return b
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, Condition{column, op, value})
	return b
}

// WhereAll adds every condition in conds.
func (b *DeleteBuilder) WhereAll(conds ...Condition) *DeleteBuilder {
	b.where = append(b.where, conds...)
	return b
}

// Build produces the final SQL string and argument slice.
func (b *DeleteBuilder) Build() (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.dialect.QuoteTable(b.schema, b.table))

	a := &argList{dialect: b.dialect}
	if err := writeWhere(&sb, a, b.where); err != nil {
		return "", nil, err
	}
	return sb.String(), a.args, nil
}
