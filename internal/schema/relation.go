package schema

import "fmt"

// RelationKind is the traversal shape of a relation.
type RelationKind int

const (
	// RelationSingle resolves through a local foreign key to zero or one row.
	RelationSingle RelationKind = iota + 1
	// RelationCollection resolves by scanning a link entity whose source_id
	// matches the owner's id, yielding zero or more rows or scalar values.
	RelationCollection
)

func (k RelationKind) String() string {
	switch k {
	case RelationSingle:
		return "single"
	case RelationCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Relation declares how to traverse from an owner entity to related data.
//
// Relations may name entities that are registered later; they are resolved
// and validated by Builder.Finalize.
type Relation struct {
	Owner QualifiedName
	Name  string
	Kind  RelationKind

	// ForeignKey is the owner's local field (single relations only).
	ForeignKey string

	// Target is the related entity. For collections it is filled in by
	// Finalize from the link's target_id reference and stays zero when the
	// link stores scalar values.
	Target QualifiedName

	// Link is the association entity (collection relations only).
	Link QualifiedName
}

// Single declares a relation resolved through owner.foreignKey -> target.id.
func Single(owner QualifiedName, name, foreignKey string, target QualifiedName) Relation {
	return Relation{
		Owner:      owner.Normalize(),
		Name:       name,
		Kind:       RelationSingle,
		ForeignKey: foreignKey,
		Target:     target.Normalize(),
	}
}

// Collection declares a relation resolved through the link entity.
func Collection(owner QualifiedName, name string, link QualifiedName) Relation {
	return Relation{
		Owner: owner.Normalize(),
		Name:  name,
		Kind:  RelationCollection,
		Link:  link.Normalize(),
	}
}

// IsScalar reports whether a finalized collection yields scalar values.
func (r Relation) IsScalar() bool {
	return r.Kind == RelationCollection && r.Target.IsZero()
}

func (r Relation) String() string {
	switch r.Kind {
	case RelationSingle:
		return fmt.Sprintf("%s.%s -> %s via %s", r.Owner, r.Name, r.Target, r.ForeignKey)
	case RelationCollection:
		return fmt.Sprintf("%s.%s -> [%s] via %s", r.Owner, r.Name, r.Target, r.Link)
	default:
		return fmt.Sprintf("%s.%s", r.Owner, r.Name)
	}
}
