package schema

import (
	"strings"

	"github.com/koustreak/relschema/internal/errs"
)

// DefaultNamespace is the namespace entities belong to when none is given.
// It maps to the store's default schema.
const DefaultNamespace = "public"

// defaultModule is the document module name that maps onto DefaultNamespace.
const defaultModule = "default"

// namespaceSep separates the segments of a nested namespace ("public::links").
const namespaceSep = "::"

// QualifiedName is the (namespace, name) composite key of an entity.
// The zero Namespace is treated as DefaultNamespace.
type QualifiedName struct {
	Namespace string
	Name      string
}

// Public returns the qualified name of an entity in DefaultNamespace.
func Public(name string) QualifiedName {
	return QualifiedName{Namespace: DefaultNamespace, Name: name}
}

// In returns the qualified name of an entity in namespace ns.
func In(ns, name string) QualifiedName {
	return QualifiedName{Namespace: ns, Name: name}
}

// Normalize fills in the default namespace.
func (q QualifiedName) Normalize() QualifiedName {
	if q.Namespace == "" {
		q.Namespace = DefaultNamespace
	}
	return q
}

// String renders namespace + "." + name, the physical table key.
func (q QualifiedName) String() string {
	q = q.Normalize()
	return q.Namespace + "." + q.Name
}

// IsZero reports whether no entity name is set.
func (q QualifiedName) IsZero() bool {
	return q.Name == ""
}

// IsDefaultNamespace reports whether the entity lives in the store's default schema.
func (q QualifiedName) IsDefaultNamespace() bool {
	return q.Normalize().Namespace == DefaultNamespace
}

// NamespacePath splits the namespace into its segments.
func (q QualifiedName) NamespacePath() []string {
	return strings.Split(q.Normalize().Namespace, namespaceSep)
}

// ModuleNamespace converts a document module path ("default::links") into
// a namespace ("public::links").
func ModuleNamespace(module string) string {
	if module == "" {
		return DefaultNamespace
	}
	parts := strings.Split(module, namespaceSep)
	if parts[0] == defaultModule {
		parts[0] = DefaultNamespace
	}
	return strings.Join(parts, namespaceSep)
}

// ParseRef resolves a type reference as written in a schema document.
// A bare name ("Genre") resolves inside ns; a path ("default::links::A")
// names its module explicitly.
func ParseRef(ref, ns string) (QualifiedName, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return QualifiedName{}, errs.New(errs.ErrKindInvalidInput, "empty type reference")
	}
	i := strings.LastIndex(ref, namespaceSep)
	if i < 0 {
		return In(ns, ref).Normalize(), nil
	}
	module, name := ref[:i], ref[i+len(namespaceSep):]
	if module == "" || name == "" {
		return QualifiedName{}, errs.Errorf(errs.ErrKindInvalidInput, "malformed type reference %q", ref)
	}
	return In(ModuleNamespace(module), name), nil
}
