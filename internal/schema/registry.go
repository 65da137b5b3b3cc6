package schema

import (
	"sort"

	"github.com/koustreak/relschema/internal/errs"
)

// Builder collects entity and relation declarations. Registration is
// two-phase: entities and relations may be added in any order (relations can
// name entities that do not exist yet) and Finalize validates the complete
// graph in a single pass.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	entities  []*Entity
	byName    map[QualifiedName]*Entity
	relations []Relation
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[QualifiedName]*Entity)}
}

// RegisterEntity adds e. A second entity with the same qualified name is
// rejected with ErrKindDuplicateEntity.
func (b *Builder) RegisterEntity(e *Entity) error {
	if e == nil {
		return errs.New(errs.ErrKindInvalidInput, "nil entity")
	}
	if _, exists := b.byName[e.Name()]; exists {
		return errs.Errorf(errs.ErrKindDuplicateEntity, "entity %s is already registered", e.Name())
	}
	b.byName[e.Name()] = e
	b.entities = append(b.entities, e)
	return nil
}

// RegisterRelation stores r unvalidated until Finalize.
func (b *Builder) RegisterRelation(r Relation) {
	r.Owner = r.Owner.Normalize()
	if !r.Target.IsZero() {
		r.Target = r.Target.Normalize()
	}
	if !r.Link.IsZero() {
		r.Link = r.Link.Normalize()
	}
	b.relations = append(b.relations, r)
}

// LinkName is the conventional name of the link entity backing owner.relation.
func LinkName(owner QualifiedName, relation string) QualifiedName {
	owner = owner.Normalize()
	return In(owner.Namespace, owner.Name+"."+relation)
}

// DeclareLinks registers a link entity owner.name pairing owner ids with
// target ids, and the collection relation that traverses it.
func (b *Builder) DeclareLinks(owner QualifiedName, name string, target QualifiedName) error {
	owner = owner.Normalize()
	link, err := NewEntity(LinkName(owner, name),
		Field{Name: FieldSourceID, Type: TypeIdentifier, References: &Reference{Entity: owner, Field: FieldID}},
		Field{Name: FieldTargetID, Type: TypeIdentifier, References: &Reference{Entity: target.Normalize(), Field: FieldID}},
	)
	if err != nil {
		return err
	}
	if err := b.RegisterEntity(link); err != nil {
		return err
	}
	b.RegisterRelation(Collection(owner, name, link.Name()))
	return nil
}

// DeclareValues registers a link entity owner.name holding scalar values of
// type typ, and the collection relation that traverses it.
func (b *Builder) DeclareValues(owner QualifiedName, name string, typ FieldType) error {
	owner = owner.Normalize()
	link, err := NewEntity(LinkName(owner, name),
		Field{Name: FieldSourceID, Type: TypeIdentifier, References: &Reference{Entity: owner, Field: FieldID}},
		Field{Name: FieldTarget, Type: typ},
	)
	if err != nil {
		return err
	}
	if err := b.RegisterEntity(link); err != nil {
		return err
	}
	b.RegisterRelation(Collection(owner, name, link.Name()))
	return nil
}

// Finalize validates every foreign key and relation and returns an immutable
// Registry. All independent problems are reported together. Finalize does not
// modify the Builder, so calling it again yields the same result.
func (b *Builder) Finalize() (*Registry, error) {
	var acc error

	for _, e := range b.entities {
		for _, f := range e.fields {
			if f.References != nil {
				acc = errs.Append(acc, b.checkReference(e, f))
			}
		}
	}

	relations := make(map[QualifiedName][]Relation)
	names := make(map[QualifiedName]map[string]struct{})
	for _, r := range b.relations {
		resolved, err := b.resolveRelation(r)
		if err != nil {
			acc = errs.Append(acc, err)
			continue
		}
		if names[r.Owner] == nil {
			names[r.Owner] = make(map[string]struct{})
		}
		if _, dup := names[r.Owner][r.Name]; dup {
			acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidField,
				"%s: relation %q declared twice", r.Owner, r.Name))
			continue
		}
		names[r.Owner][r.Name] = struct{}{}
		relations[r.Owner] = append(relations[r.Owner], resolved)
	}

	if acc != nil {
		return nil, acc
	}

	reg := &Registry{
		entities:  make([]*Entity, len(b.entities)),
		byName:    make(map[QualifiedName]*Entity, len(b.byName)),
		relations: relations,
	}
	copy(reg.entities, b.entities)
	for k, v := range b.byName {
		reg.byName[k] = v
	}
	return reg, nil
}

func (b *Builder) checkReference(e *Entity, f Field) error {
	ref := f.References
	target, ok := b.byName[ref.Entity]
	if !ok {
		return errs.Errorf(errs.ErrKindDanglingReference,
			"%s.%s references unknown entity %s", e.Name(), f.Name, ref.Entity)
	}
	tf, ok := target.Field(ref.Field)
	if !ok {
		return errs.Errorf(errs.ErrKindDanglingReference,
			"%s.%s references unknown field %s.%s", e.Name(), f.Name, ref.Entity, ref.Field)
	}
	if tf.Type != TypeIdentifier {
		return errs.Errorf(errs.ErrKindInvalidField,
			"%s.%s references %s.%s of type %s; foreign keys must target identifiers",
			e.Name(), f.Name, ref.Entity, ref.Field, tf.Type)
	}
	return nil
}

func (b *Builder) resolveRelation(r Relation) (Relation, error) {
	if r.Name == "" {
		return r, errs.Errorf(errs.ErrKindInvalidField, "%s: relation name is empty", r.Owner)
	}
	owner, ok := b.byName[r.Owner]
	if !ok {
		return r, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: unknown owner entity %s", r.Owner, r.Name, r.Owner)
	}
	if _, clash := owner.Field(r.Name); clash {
		return r, errs.Errorf(errs.ErrKindInvalidField,
			"%s: relation %q collides with a field of the same name", r.Owner, r.Name)
	}

	switch r.Kind {
	case RelationSingle:
		return r, b.resolveSingle(owner, r)
	case RelationCollection:
		return b.resolveCollection(r)
	default:
		return r, errs.Errorf(errs.ErrKindInvalidField,
			"%s: relation %q has unknown kind", r.Owner, r.Name)
	}
}

func (b *Builder) resolveSingle(owner *Entity, r Relation) error {
	var acc error
	target, ok := b.byName[r.Target]
	if !ok {
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: unknown target entity %s", r.Owner, r.Name, r.Target))
	} else if target.Kind() != KindDomain {
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: target %s has no %q field", r.Owner, r.Name, r.Target, FieldID))
	}

	fk, ok := owner.Field(r.ForeignKey)
	if !ok {
		return errs.Append(acc, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: foreign key field %q not found on %s", r.Owner, r.Name, r.ForeignKey, r.Owner))
	}
	if fk.References == nil || fk.References.Entity != r.Target || fk.References.Field != FieldID {
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: field %q does not reference %s.%s", r.Owner, r.Name, r.ForeignKey, r.Target, FieldID))
	}
	return acc
}

func (b *Builder) resolveCollection(r Relation) (Relation, error) {
	link, ok := b.byName[r.Link]
	if !ok {
		return r, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: unknown link entity %s", r.Owner, r.Name, r.Link)
	}
	if !link.IsLink() {
		return r, errs.Errorf(errs.ErrKindInvalidField,
			"relation %s.%s: %s is not a link entity", r.Owner, r.Name, r.Link)
	}

	src, _ := link.Field(FieldSourceID)
	if src.References == nil || src.References.Entity != r.Owner {
		return r, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: link %s does not point back to %s through %q", r.Owner, r.Name, r.Link, r.Owner, FieldSourceID)
	}

	var derived QualifiedName
	if tid, ok := link.Field(FieldTargetID); ok && tid.References != nil {
		derived = tid.References.Entity
	}
	if !r.Target.IsZero() && r.Target != derived {
		return r, errs.Errorf(errs.ErrKindDanglingReference,
			"relation %s.%s: declared target %s does not match link target %s", r.Owner, r.Name, r.Target, derived)
	}
	r.Target = derived
	return r, nil
}

// Registry is the finalized, immutable set of entities and relations.
// It is safe for concurrent use.
type Registry struct {
	entities  []*Entity
	byName    map[QualifiedName]*Entity
	relations map[QualifiedName][]Relation
}

// Lookup returns the entity registered as namespace.name.
func (r *Registry) Lookup(namespace, name string) (*Entity, error) {
	return r.Entity(In(namespace, name))
}

// Entity returns the entity registered under q.
func (r *Registry) Entity(q QualifiedName) (*Entity, error) {
	q = q.Normalize()
	e, ok := r.byName[q]
	if !ok {
		return nil, errs.Errorf(errs.ErrKindNotFound, "entity %s not found", q)
	}
	return e, nil
}

// RelationsOf returns the relations owned by q in declaration order.
func (r *Registry) RelationsOf(q QualifiedName) []Relation {
	rels := r.relations[q.Normalize()]
	out := make([]Relation, len(rels))
	copy(out, rels)
	return out
}

// Relation returns owner's relation called name.
func (r *Registry) Relation(owner QualifiedName, name string) (Relation, error) {
	owner = owner.Normalize()
	for _, rel := range r.relations[owner] {
		if rel.Name == name {
			return rel, nil
		}
	}
	return Relation{}, errs.Errorf(errs.ErrKindNotFound, "relation %s.%s not found", owner, name)
}

// Entities returns all entities in registration order.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Namespaces returns the distinct namespaces, sorted.
func (r *Registry) Namespaces() []string {
	seen := make(map[string]struct{})
	for _, e := range r.entities {
		seen[e.Name().Namespace] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
