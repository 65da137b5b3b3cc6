package schema

import (
	"fmt"

	"github.com/koustreak/relschema/internal/errs"
)

// Well-known field names.
const (
	FieldID       = "id"
	FieldSourceID = "source_id"
	FieldTargetID = "target_id"
	FieldTarget   = "target"

	// FieldOrdinal is the store-assigned insertion counter of a link table.
	// It is outside the key and never part of an entity's fields; reads of
	// link rows order by it.
	FieldOrdinal = "ordinal"
)

// EntityKind distinguishes domain tables from association tables.
type EntityKind int

const (
	KindDomain EntityKind = iota + 1 // has its own "id"
	KindLink                         // keyed by (source_id, target_id) or (source_id, target)
)

func (k EntityKind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// Entity is a named table made of ordered fields. It is immutable once built.
type Entity struct {
	name   QualifiedName
	kind   EntityKind
	fields []Field
	index  map[string]int
}

// NewEntity validates and builds an entity. Every problem found is reported
// in the returned (combined) error.
func NewEntity(name QualifiedName, fields ...Field) (*Entity, error) {
	name = name.Normalize()
	if name.Name == "" {
		return nil, errs.New(errs.ErrKindInvalidField, "entity name is empty")
	}

	e := &Entity{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	var acc error
	for _, f := range fields {
		if err := f.validate(); err != nil {
			acc = errs.Append(acc, scoped(name, err))
			continue
		}
		if _, dup := e.index[f.Name]; dup {
			acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
				"%s: duplicate field %q", name, f.Name))
			continue
		}
		if f.References != nil {
			ref := *f.References
			f.References = &ref
		}
		e.index[f.Name] = len(e.fields)
		e.fields = append(e.fields, f)
	}

	kind, err := e.classify()
	acc = errs.Append(acc, err)
	if acc != nil {
		return nil, acc
	}
	e.kind = kind
	return e, nil
}

// MustEntity is NewEntity that panics; intended for static schema declarations.
func MustEntity(name QualifiedName, fields ...Field) *Entity {
	e, err := NewEntity(name, fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// classify decides domain vs link and checks the key fields of each shape.
func (e *Entity) classify() (EntityKind, error) {
	if id, ok := e.Field(FieldID); ok {
		var acc error
		if id.Type != TypeIdentifier {
			acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
				"%s: primary field %q must be an identifier, got %s", e.name, FieldID, id.Type))
		}
		if id.Nullable {
			acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
				"%s: primary field %q cannot be nullable", e.name, FieldID))
		}
		return KindDomain, acc
	}

	src, ok := e.Field(FieldSourceID)
	if !ok {
		return 0, errs.Errorf(errs.ErrKindInvalidField,
			"%s: entity must declare %q or be a link entity with %q", e.name, FieldID, FieldSourceID)
	}

	var acc error
	if _, ok := e.Field(FieldOrdinal); ok {
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
			"%s: field %q is reserved on link entities", e.name, FieldOrdinal))
	}
	if !src.IsForeignKey() {
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
			"%s: link field %q must reference its owning entity", e.name, FieldSourceID))
	}
	acc = errs.Append(acc, e.requireKeyColumn(src))

	tid, hasTargetID := e.Field(FieldTargetID)
	tval, hasTarget := e.Field(FieldTarget)
	switch {
	case hasTargetID && hasTarget:
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
			"%s: link entity declares both %q and %q", e.name, FieldTargetID, FieldTarget))
	case hasTargetID:
		if !tid.IsForeignKey() {
			acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
				"%s: link field %q must reference the target entity", e.name, FieldTargetID))
		}
		acc = errs.Append(acc, e.requireKeyColumn(tid))
	case hasTarget:
		if tval.IsForeignKey() {
			acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
				"%s: scalar link field %q cannot be a foreign key; use %q", e.name, FieldTarget, FieldTargetID))
		}
		acc = errs.Append(acc, e.requireKeyColumn(tval))
	default:
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
			"%s: link entity needs %q or %q", e.name, FieldTargetID, FieldTarget))
	}
	return KindLink, acc
}

func (e *Entity) requireKeyColumn(f Field) error {
	if f.Nullable {
		return errs.Errorf(errs.ErrKindInvalidField,
			"%s: key field %q cannot be nullable", e.name, f.Name)
	}
	return nil
}

// Name returns the qualified name.
func (e *Entity) Name() QualifiedName { return e.name }

// QualifiedName returns namespace + "." + name.
func (e *Entity) QualifiedName() string { return e.name.String() }

// Kind reports whether the entity is a domain or a link entity.
func (e *Entity) Kind() EntityKind { return e.kind }

// IsLink reports whether the entity is a link/junction entity.
func (e *Entity) IsLink() bool { return e.kind == KindLink }

// Fields returns a copy of the ordered fields.
func (e *Entity) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// FieldNames returns the column names in declaration order.
func (e *Entity) FieldNames() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = f.Name
	}
	return out
}

// Field looks up a field by name.
func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

// PrimaryKey returns the key columns: "id" for domain entities, the
// composite natural key for link entities.
func (e *Entity) PrimaryKey() []string {
	if e.kind == KindDomain {
		return []string{FieldID}
	}
	if _, ok := e.index[FieldTargetID]; ok {
		return []string{FieldSourceID, FieldTargetID}
	}
	return []string{FieldSourceID, FieldTarget}
}

// HasScalarTarget reports whether a link entity stores scalar values.
func (e *Entity) HasScalarTarget() bool {
	_, ok := e.index[FieldTarget]
	return e.kind == KindLink && ok
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s(%s)", e.name, e.kind)
}

// scoped prefixes a field-level error with the entity name.
func scoped(name QualifiedName, err error) error {
	if e, ok := err.(*errs.Error); ok {
		return errs.Errorf(e.Kind, "%s: %s", name, e.Message)
	}
	return err
}
