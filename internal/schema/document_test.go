package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/relschema/internal/errs"
)

const moviesDocument = `
modules:
  - name: default
    types:
      - name: Genre
        properties:
          - {name: name, type: std::str, required: true}
      - name: Person
        properties:
          - {name: name, type: text, required: true}
      - name: Movie
        properties:
          - {name: title, type: text, required: true}
          - {name: release_year, type: std::int16}
          - {name: tags, type: std::str, multi: true}
        links:
          - {name: genre, target: Genre}
          - {name: actors, target: Person, multi: true}
          - {name: studio, target: "default::links::Studio"}
  - name: default::links
    types:
      - name: Studio
        properties:
          - {name: founded, type: std::int64}
`

func TestLoadDocument(t *testing.T) {
	reg, err := LoadDocument(strings.NewReader(moviesDocument))
	require.NoError(t, err)

	movie, err := reg.Lookup("public", "Movie")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "genre_id", "release_year", "studio_id", "title"}, movie.FieldNames())

	id, _ := movie.Field("id")
	assert.Equal(t, DefaultGenerateID, id.Default)

	title, _ := movie.Field("title")
	assert.False(t, title.Nullable)
	year, _ := movie.Field("release_year")
	assert.True(t, year.Nullable)
	assert.Equal(t, TypeShortInt, year.Type)

	studioFK, _ := movie.Field("studio_id")
	require.NotNil(t, studioFK.References)
	assert.Equal(t, In("public::links", "Studio"), studioFK.References.Entity)

	rels := reg.RelationsOf(movie.Name())
	names := make([]string, len(rels))
	for i, r := range rels {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"genre", "studio", "tags", "actors"}, names)

	tags, err := reg.Relation(movie.Name(), "tags")
	require.NoError(t, err)
	assert.True(t, tags.IsScalar())

	tagLink, err := reg.Entity(tags.Link)
	require.NoError(t, err)
	assert.Equal(t, []string{"source_id", "target"}, tagLink.FieldNames())

	actors, err := reg.Relation(movie.Name(), "actors")
	require.NoError(t, err)
	assert.Equal(t, Public("Person"), actors.Target)
	actorLink, err := reg.Entity(actors.Link)
	require.NoError(t, err)
	assert.Equal(t, "public.Movie.actors", actorLink.QualifiedName())
	assert.Equal(t, []string{"source_id", "target_id"}, actorLink.FieldNames())

	assert.Equal(t, []string{"public", "public::links"}, reg.Namespaces())
}

func TestParseDocument_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ``},
		{"no modules", `modules: []`},
		{"unknown key", "modules:\n  - name: default\n    kinds: []\n"},
		{"property without type", "modules:\n  - name: default\n    types:\n      - name: A\n        properties:\n          - {name: x}\n"},
		{"bad identifier", "modules:\n  - name: default\n    types:\n      - name: 'A B'\n"},
		{"not yaml", "modules: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err), err.Error())
		})
	}
}

func TestLoadDocument_SemanticErrors(t *testing.T) {
	doc := `
modules:
  - name: default
    types:
      - name: Movie
        properties:
          - {name: rating, type: std::float64}
        links:
          - {name: genre, target: Genre}
      - name: Movie
`
	_, err := LoadDocument(strings.NewReader(doc))
	require.Error(t, err)

	kinds := map[errs.ErrKind]bool{}
	for _, e := range errs.All(err) {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[errs.ErrKindInvalidField], "unknown scalar type")
	assert.True(t, kinds[errs.ErrKindDuplicateEntity], "type declared twice")
}

func TestLoadDocument_DanglingLink(t *testing.T) {
	doc := `
modules:
  - name: default
    types:
      - name: Movie
        links:
          - {name: genre, target: Genre}
`
	_, err := LoadDocument(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errs.IsDanglingReference(err))
}
