package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"sort"
	"sync"

	js "github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/relschema/internal/errs"
)

//go:embed document.schema.json
var documentSchemaJSON []byte

const documentSchemaURL = "file:///document.schema.json"

var (
	documentSchemaOnce sync.Once
	documentSchema     *js.Schema
	documentSchemaErr  error
)

func compiledDocumentSchema() (*js.Schema, error) {
	documentSchemaOnce.Do(func() {
		compiler := js.NewCompiler()
		compiler.Draft = js.Draft7
		if err := compiler.AddResource(documentSchemaURL, bytes.NewReader(documentSchemaJSON)); err != nil {
			documentSchemaErr = err
			return
		}
		documentSchema, documentSchemaErr = compiler.Compile(documentSchemaURL)
	})
	return documentSchema, documentSchemaErr
}

// Document is a declarative object-type schema: modules containing types,
// each with scalar properties and links to other types.
//
//	modules:
//	  - name: default
//	    types:
//	      - name: Movie
//	        properties:
//	          - {name: title, type: text, required: true}
//	        links:
//	          - {name: genre, target: Genre}
//	          - {name: actors, target: Person, multi: true}
type Document struct {
	Modules []ModuleDoc `yaml:"modules" json:"modules"`
}

// ModuleDoc groups types under one module path ("default", "default::links").
type ModuleDoc struct {
	Name  string    `yaml:"name" json:"name"`
	Types []TypeDoc `yaml:"types,omitempty" json:"types,omitempty"`
}

// TypeDoc declares one object type.
type TypeDoc struct {
	Name       string        `yaml:"name" json:"name"`
	Properties []PropertyDoc `yaml:"properties,omitempty" json:"properties,omitempty"`
	Links      []LinkDoc     `yaml:"links,omitempty" json:"links,omitempty"`
}

// PropertyDoc declares a scalar property. Multi properties are stored in a
// link entity with a scalar target column.
type PropertyDoc struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Multi    bool   `yaml:"multi,omitempty" json:"multi,omitempty"`
}

// LinkDoc declares a pointer to another type. Target is a bare type name in
// the same module or a module path such as "default::links::Target".
type LinkDoc struct {
	Name     string `yaml:"name" json:"name"`
	Target   string `yaml:"target" json:"target"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Multi    bool   `yaml:"multi,omitempty" json:"multi,omitempty"`
}

// ParseDocument validates raw YAML (or JSON) against the document schema and
// decodes it.
func ParseDocument(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "schema document is not valid YAML", err)
	}

	// Round-trip through JSON so the validator sees plain JSON values.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "schema document cannot be represented as JSON", err)
	}
	var generic any
	if err := json.Unmarshal(buf, &generic); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "schema document cannot be represented as JSON", err)
	}

	sch, err := compiledDocumentSchema()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "compile document schema", err)
	}
	if err := sch.Validate(generic); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "schema document is malformed", err)
	}

	var doc Document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode schema document", err)
	}
	return &doc, nil
}

// LoadDocument reads, validates and compiles a document into a finalized Registry.
func LoadDocument(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "read schema document", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}

// Build registers the document into a fresh Builder and finalizes it.
func (d *Document) Build() (*Registry, error) {
	b := NewBuilder()
	if err := d.Register(b); err != nil {
		return nil, err
	}
	return b.Finalize()
}

// Register compiles every type into entities and relations on b:
//
//   - every type gets an "id" identifier with a generated default;
//   - a single link x becomes field x_id referencing the target's id, plus a
//     single relation x;
//   - a multi link x becomes link entity Type.x (source_id, target_id) plus a
//     collection relation x;
//   - a multi property x becomes link entity Type.x (source_id, target) plus
//     a scalar collection relation x.
//
// Columns after "id" are ordered by name. Problems in independent types are
// reported together.
func (d *Document) Register(b *Builder) error {
	var acc error
	for _, m := range d.Modules {
		ns := ModuleNamespace(m.Name)
		for _, t := range m.Types {
			acc = errs.Append(acc, registerType(b, ns, t))
		}
	}
	return acc
}

func registerType(b *Builder, ns string, t TypeDoc) error {
	owner := In(ns, t.Name)

	var (
		acc      error
		columns  []Field
		singles  []Relation
		deferred []func() error
	)

	for _, p := range t.Properties {
		typ, err := ParseFieldType(p.Type)
		if err != nil {
			acc = errs.Append(acc, scoped(owner, err))
			continue
		}
		if p.Multi {
			name := p.Name
			deferred = append(deferred, func() error { return b.DeclareValues(owner, name, typ) })
			continue
		}
		columns = append(columns, Field{Name: p.Name, Type: typ, Nullable: !p.Required})
	}

	for _, l := range t.Links {
		target, err := ParseRef(l.Target, ns)
		if err != nil {
			acc = errs.Append(acc, scoped(owner, err))
			continue
		}
		if l.Multi {
			name := l.Name
			deferred = append(deferred, func() error { return b.DeclareLinks(owner, name, target) })
			continue
		}
		fk := l.Name + "_" + FieldID
		columns = append(columns, Field{
			Name:       fk,
			Type:       TypeIdentifier,
			Nullable:   !l.Required,
			References: &Reference{Entity: target, Field: FieldID},
		})
		singles = append(singles, Single(owner, l.Name, fk, target))
	}

	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Name < columns[j].Name })

	entity, err := NewEntity(owner, append([]Field{IDField()}, columns...)...)
	if err != nil {
		return errs.Append(acc, err)
	}
	if err := b.RegisterEntity(entity); err != nil {
		return errs.Append(acc, err)
	}
	for _, r := range singles {
		b.RegisterRelation(r)
	}
	for _, declare := range deferred {
		acc = errs.Append(acc, declare())
	}
	return acc
}
