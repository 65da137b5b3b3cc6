package resolver

import (
	"strings"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/schema"
)

// Predicate is a conjunction of field comparisons. The zero Predicate
// matches every row.
type Predicate []database.Condition

// Where starts a predicate with one comparison.
func Where(field, op string, value any) Predicate {
	return Predicate{{Column: field, Op: op, Value: value}}
}

// Eq starts a predicate with an equality comparison.
func Eq(field string, value any) Predicate {
	return Where(field, "=", value)
}

// And appends a comparison.
func (p Predicate) And(field, op string, value any) Predicate {
	out := make(Predicate, len(p), len(p)+1)
	copy(out, p)
	return append(out, database.Condition{Column: field, Op: op, Value: value})
}

// compile checks every comparison against e and coerces its operands to
// the field types.
func (p Predicate) compile(e *schema.Entity) ([]database.Condition, error) {
	out := make([]database.Condition, 0, len(p))
	for _, c := range p {
		f, ok := e.Field(c.Column)
		if !ok {
			return nil, errs.Errorf(errs.ErrKindInvalidInput, "%s has no field %q", e.Name(), c.Column)
		}
		op := strings.ToUpper(strings.TrimSpace(c.Op))
		if !database.ValidOp(op) {
			return nil, errs.Errorf(errs.ErrKindInvalidInput, "unsupported operator %q", c.Op)
		}

		switch op {
		case "IN", "NOT IN":
			list, ok := toList(c.Value)
			if !ok {
				return nil, errs.Errorf(errs.ErrKindInvalidInput, "%s on %q needs a list", op, c.Column)
			}
			values := make([]any, len(list))
			for i, v := range list {
				cv, err := coerce(f, v)
				if err != nil {
					return nil, err
				}
				values[i] = cv
			}
			out = append(out, database.Condition{Column: f.Name, Op: op, Value: values})
			continue
		case "LIKE", "ILIKE":
			if f.Type != schema.TypeText {
				return nil, errs.Errorf(errs.ErrKindInvalidInput, "%s needs a text field, %q is %s", op, f.Name, f.Type)
			}
		}

		v, err := coerce(f, c.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, database.Condition{Column: f.Name, Op: op, Value: v})
	}
	return out, nil
}
