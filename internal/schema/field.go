package schema

import (
	"strings"

	"github.com/koustreak/relschema/internal/errs"
)

// FieldType is the semantic type of a column.
type FieldType int

const (
	TypeIdentifier FieldType = iota + 1 // 128-bit UUID
	TypeShortInt                        // 16-bit signed
	TypeLongInt                         // 64-bit signed
	TypeText                            // variable-length string
)

func (t FieldType) String() string {
	switch t {
	case TypeIdentifier:
		return "identifier"
	case TypeShortInt:
		return "short-integer"
	case TypeLongInt:
		return "long-integer"
	case TypeText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseFieldType accepts both the canonical names and the std:: scalar names
// used by object-type schemas.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "identifier", "uuid", "std::uuid":
		return TypeIdentifier, nil
	case "short-integer", "smallint", "int16", "std::int16":
		return TypeShortInt, nil
	case "long-integer", "bigint", "int64", "std::int64":
		return TypeLongInt, nil
	case "text", "str", "string", "std::str":
		return TypeText, nil
	}
	return 0, errs.Errorf(errs.ErrKindInvalidField, "unknown field type %q", s)
}

// DefaultKind is the value generation strategy applied at insert time.
type DefaultKind int

const (
	DefaultNone       DefaultKind = iota
	DefaultGenerateID             // draw a new universally-unique identifier
)

// Reference is a foreign-key target.
type Reference struct {
	Entity QualifiedName
	Field  string
}

// Field describes one column.
type Field struct {
	Name       string
	Type       FieldType
	Nullable   bool
	Default    DefaultKind
	References *Reference
}

// IsForeignKey reports whether the field carries a foreign-key constraint.
func (f Field) IsForeignKey() bool {
	return f.References != nil
}

// HasDefault reports whether a value is generated when none is supplied.
func (f Field) HasDefault() bool {
	return f.Default != DefaultNone
}

// FieldOption customises a Field at construction.
type FieldOption func(*Field)

// Nullable marks the field as optional.
func Nullable() FieldOption {
	return func(f *Field) { f.Nullable = true }
}

// GeneratedID makes the field draw a fresh identifier when none is supplied.
func GeneratedID() FieldOption {
	return func(f *Field) { f.Default = DefaultGenerateID }
}

// References adds a foreign key to target's field (usually "id").
func References(target QualifiedName, field string) FieldOption {
	return func(f *Field) {
		f.References = &Reference{Entity: target.Normalize(), Field: field}
	}
}

// NewField builds a field. Fields are non-nullable unless Nullable is given.
func NewField(name string, typ FieldType, opts ...FieldOption) (Field, error) {
	f := Field{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&f)
	}
	return f, f.validate()
}

// MustField is NewField that panics; intended for static schema declarations.
func MustField(name string, typ FieldType, opts ...FieldOption) Field {
	f, err := NewField(name, typ, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// IDField returns the canonical primary identifier field.
func IDField() Field {
	return Field{Name: FieldID, Type: TypeIdentifier, Default: DefaultGenerateID}
}

func (f Field) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errs.New(errs.ErrKindInvalidField, "field name is empty")
	}
	if f.Type.String() == "unknown" {
		return errs.Errorf(errs.ErrKindInvalidField, "field %q: unknown type", f.Name)
	}
	if f.References != nil {
		if f.Type != TypeIdentifier {
			return errs.Errorf(errs.ErrKindInvalidField,
				"field %q references %s.%s but has type %s; foreign keys must be identifiers",
				f.Name, f.References.Entity, f.References.Field, f.Type)
		}
		if f.References.Entity.IsZero() || f.References.Field == "" {
			return errs.Errorf(errs.ErrKindInvalidField, "field %q: incomplete reference", f.Name)
		}
	}
	if f.Default == DefaultGenerateID && f.Type != TypeIdentifier {
		return errs.Errorf(errs.ErrKindInvalidField,
			"field %q: identifier generation requires type identifier, got %s", f.Name, f.Type)
	}
	return nil
}
