package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/relschema/internal/errs"
)

var (
	genreName = Public("Genre")
	movieName = Public("Movie")
)

func genreEntity() *Entity {
	return MustEntity(genreName, IDField(), MustField("name", TypeText))
}

func movieEntity() *Entity {
	return MustEntity(movieName,
		IDField(),
		MustField("genre_id", TypeIdentifier, Nullable(), References(genreName, FieldID)),
		MustField("release_year", TypeShortInt, Nullable()),
		MustField("title", TypeText),
	)
}

func TestBuilder_Finalize(t *testing.T) {
	b := NewBuilder()

	// Relations may be declared before the entities they mention.
	b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))
	require.NoError(t, b.RegisterEntity(movieEntity()))
	require.NoError(t, b.RegisterEntity(genreEntity()))
	require.NoError(t, b.DeclareValues(movieName, "tags", TypeText))

	reg, err := b.Finalize()
	require.NoError(t, err)

	m, err := reg.Lookup("public", "Movie")
	require.NoError(t, err)
	assert.Equal(t, movieName, m.Name())

	rels := reg.RelationsOf(movieName)
	require.Len(t, rels, 2)
	assert.Equal(t, "genre", rels[0].Name)
	assert.Equal(t, RelationSingle, rels[0].Kind)
	assert.Equal(t, genreName, rels[0].Target)
	assert.Equal(t, "tags", rels[1].Name)
	assert.True(t, rels[1].IsScalar())
	assert.Equal(t, Public("Movie.tags"), rels[1].Link)

	assert.Empty(t, reg.RelationsOf(genreName))
	assert.Len(t, reg.Entities(), 3)
	assert.Equal(t, []string{"public"}, reg.Namespaces())
}

func TestBuilder_FinalizeIsRepeatable(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterEntity(genreEntity()))
	require.NoError(t, b.RegisterEntity(movieEntity()))
	b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))

	first, err := b.Finalize()
	require.NoError(t, err)
	second, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, first.RelationsOf(movieName), second.RelationsOf(movieName))
	assert.Equal(t, first.Entities(), second.Entities())
}

func TestBuilder_CollectionResolvesTarget(t *testing.T) {
	person := Public("Person")
	b := NewBuilder()
	require.NoError(t, b.RegisterEntity(movieEntity()))
	require.NoError(t, b.RegisterEntity(genreEntity()))
	require.NoError(t, b.RegisterEntity(MustEntity(person, IDField(), MustField("name", TypeText))))
	require.NoError(t, b.DeclareLinks(movieName, "actors", person))

	reg, err := b.Finalize()
	require.NoError(t, err)

	rel, err := reg.Relation(movieName, "actors")
	require.NoError(t, err)
	assert.Equal(t, RelationCollection, rel.Kind)
	assert.Equal(t, person, rel.Target)
	assert.False(t, rel.IsScalar())

	link, err := reg.Entity(rel.Link)
	require.NoError(t, err)
	assert.True(t, link.IsLink())
}

func TestBuilder_DuplicateEntity(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterEntity(genreEntity()))
	err := b.RegisterEntity(genreEntity())
	assert.True(t, errs.IsDuplicateEntity(err))

	// Same name in another namespace is a different entity.
	assert.NoError(t, b.RegisterEntity(MustEntity(In("archive", "Genre"), IDField())))
}

func TestBuilder_DanglingReferences(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		kind  errs.ErrKind
	}{
		{
			name: "foreign key to unknown entity",
			build: func(b *Builder) {
				_ = b.RegisterEntity(movieEntity())
			},
			kind: errs.ErrKindDanglingReference,
		},
		{
			name: "foreign key to unknown field",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				_ = b.RegisterEntity(MustEntity(movieName, IDField(),
					MustField("genre_id", TypeIdentifier, References(genreName, "code"))))
			},
			kind: errs.ErrKindDanglingReference,
		},
		{
			name: "foreign key to non-identifier field",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				_ = b.RegisterEntity(MustEntity(movieName, IDField(),
					MustField("genre_id", TypeIdentifier, References(genreName, "name"))))
			},
			kind: errs.ErrKindInvalidField,
		},
		{
			name: "relation with unknown owner",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))
			},
			kind: errs.ErrKindDanglingReference,
		},
		{
			name: "single relation without its field",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				_ = b.RegisterEntity(MustEntity(movieName, IDField()))
				b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))
			},
			kind: errs.ErrKindDanglingReference,
		},
		{
			name: "collection with unknown link",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				b.RegisterRelation(Collection(genreName, "movies", Public("Genre.movies")))
			},
			kind: errs.ErrKindDanglingReference,
		},
		{
			name: "collection through a domain entity",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				b.RegisterRelation(Collection(genreName, "self", genreName))
			},
			kind: errs.ErrKindInvalidField,
		},
		{
			name: "relation shadows a field",
			build: func(b *Builder) {
				_ = b.RegisterEntity(genreEntity())
				_ = b.DeclareValues(genreName, "name", TypeText)
			},
			kind: errs.ErrKindInvalidField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			reg, err := b.Finalize()
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.Equal(t, tt.kind, errs.KindOf(err), err.Error())
		})
	}
}

func TestBuilder_FinalizeAggregates(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterEntity(movieEntity()))
	b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))
	b.RegisterRelation(Collection(movieName, "actors", Public("Movie.actors")))

	_, err := b.Finalize()
	require.Error(t, err)

	parts := errs.All(err)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Equal(t, errs.ErrKindDanglingReference, p.Kind)
	}
}

func TestBuilder_DuplicateRelation(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterEntity(genreEntity()))
	require.NoError(t, b.RegisterEntity(movieEntity()))
	b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))
	b.RegisterRelation(Single(movieName, "genre", "genre_id", genreName))

	_, err := b.Finalize()
	assert.True(t, errs.IsInvalidField(err))
}

func TestRegistry_NotFound(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterEntity(genreEntity()))
	reg, err := b.Finalize()
	require.NoError(t, err)

	_, err = reg.Lookup("public", "Movie")
	assert.True(t, errs.IsNotFound(err))

	_, err = reg.Relation(genreName, "movies")
	assert.True(t, errs.IsNotFound(err))
}
