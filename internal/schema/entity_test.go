package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/relschema/internal/errs"
)

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "public.Movie", Public("Movie").String())
	assert.Equal(t, "public.Movie", In("", "Movie").String())
	assert.Equal(t, "public::links.Target", In("public::links", "Target").String())
	assert.True(t, In("", "Movie").IsDefaultNamespace())
	assert.False(t, In("public::links", "Target").IsDefaultNamespace())
	assert.Equal(t, []string{"public", "nested", "deep"}, In("public::nested::deep", "X").NamespacePath())
	assert.True(t, QualifiedName{}.IsZero())
}

func TestModuleNamespace(t *testing.T) {
	tests := []struct {
		module string
		want   string
	}{
		{"", "public"},
		{"default", "public"},
		{"default::links", "public::links"},
		{"default::nested::deep", "public::nested::deep"},
		{"billing", "billing"},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			assert.Equal(t, tt.want, ModuleNamespace(tt.module))
		})
	}
}

func TestParseRef(t *testing.T) {
	q, err := ParseRef("Genre", "public")
	require.NoError(t, err)
	assert.Equal(t, Public("Genre"), q)

	q, err = ParseRef("default::links::Target", "public")
	require.NoError(t, err)
	assert.Equal(t, In("public::links", "Target"), q)

	_, err = ParseRef("", "public")
	assert.True(t, errs.IsInvalidInput(err))

	_, err = ParseRef("default::", "public")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestParseFieldType(t *testing.T) {
	tests := []struct {
		in   string
		want FieldType
	}{
		{"identifier", TypeIdentifier},
		{"std::uuid", TypeIdentifier},
		{"short-integer", TypeShortInt},
		{"std::int16", TypeShortInt},
		{"long-integer", TypeLongInt},
		{"std::int64", TypeLongInt},
		{"text", TypeText},
		{"std::str", TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFieldType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFieldType("std::float64")
	assert.True(t, errs.IsInvalidField(err))
}

func TestNewField_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (Field, error)
	}{
		{"empty name", func() (Field, error) { return NewField(" ", TypeText) }},
		{"unknown type", func() (Field, error) { return NewField("x", FieldType(99)) }},
		{"non-identifier foreign key", func() (Field, error) {
			return NewField("genre_id", TypeText, References(Public("Genre"), FieldID))
		}},
		{"incomplete reference", func() (Field, error) {
			return NewField("genre_id", TypeIdentifier, References(Public("Genre"), ""))
		}},
		{"generated text", func() (Field, error) { return NewField("x", TypeText, GeneratedID()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.True(t, errs.IsInvalidField(err))
		})
	}
}

func TestNewEntity_Domain(t *testing.T) {
	e, err := NewEntity(Public("Movie"),
		IDField(),
		MustField("title", TypeText),
		MustField("release_year", TypeShortInt, Nullable()),
	)
	require.NoError(t, err)

	assert.Equal(t, KindDomain, e.Kind())
	assert.False(t, e.IsLink())
	assert.Equal(t, "public.Movie", e.QualifiedName())
	assert.Equal(t, []string{"id", "title", "release_year"}, e.FieldNames())
	assert.Equal(t, []string{"id"}, e.PrimaryKey())

	f, ok := e.Field("release_year")
	require.True(t, ok)
	assert.True(t, f.Nullable)

	_, ok = e.Field("missing")
	assert.False(t, ok)
}

func TestNewEntity_Link(t *testing.T) {
	pairs, err := NewEntity(Public("Movie.actors"),
		MustField(FieldSourceID, TypeIdentifier, References(Public("Movie"), FieldID)),
		MustField(FieldTargetID, TypeIdentifier, References(Public("Person"), FieldID)),
	)
	require.NoError(t, err)
	assert.True(t, pairs.IsLink())
	assert.False(t, pairs.HasScalarTarget())
	assert.Equal(t, []string{"source_id", "target_id"}, pairs.PrimaryKey())

	values, err := NewEntity(Public("Movie.tags"),
		MustField(FieldSourceID, TypeIdentifier, References(Public("Movie"), FieldID)),
		MustField(FieldTarget, TypeText),
	)
	require.NoError(t, err)
	assert.True(t, values.HasScalarTarget())
	assert.Equal(t, []string{"source_id", "target"}, values.PrimaryKey())
	assert.NotContains(t, values.FieldNames(), FieldOrdinal)

	counted, err := NewEntity(Public("Counter"), IDField(), MustField(FieldOrdinal, TypeLongInt))
	require.NoError(t, err, "domain entities may use the name freely")
	assert.False(t, counted.IsLink())
}

func TestNewEntity_Rejects(t *testing.T) {
	movie := Public("Movie")
	tests := []struct {
		name   string
		fields []Field
	}{
		{"no key", []Field{MustField("title", TypeText)}},
		{"text id", []Field{{Name: FieldID, Type: TypeText}}},
		{"nullable id", []Field{{Name: FieldID, Type: TypeIdentifier, Nullable: true}}},
		{"duplicate field", []Field{IDField(), MustField("title", TypeText), MustField("title", TypeText)}},
		{"link without target", []Field{
			MustField(FieldSourceID, TypeIdentifier, References(movie, FieldID)),
		}},
		{"link with both targets", []Field{
			MustField(FieldSourceID, TypeIdentifier, References(movie, FieldID)),
			MustField(FieldTargetID, TypeIdentifier, References(movie, FieldID)),
			MustField(FieldTarget, TypeText),
		}},
		{"source not a foreign key", []Field{
			MustField(FieldSourceID, TypeIdentifier),
			MustField(FieldTarget, TypeText),
		}},
		{"nullable scalar target", []Field{
			MustField(FieldSourceID, TypeIdentifier, References(movie, FieldID)),
			MustField(FieldTarget, TypeText, Nullable()),
		}},
		{"link declares ordinal", []Field{
			MustField(FieldSourceID, TypeIdentifier, References(movie, FieldID)),
			MustField(FieldTarget, TypeText),
			MustField(FieldOrdinal, TypeLongInt),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntity(In("", "Broken"), tt.fields...)
			require.Error(t, err)
			for _, e := range errs.All(err) {
				assert.Equal(t, errs.ErrKindInvalidField, e.Kind, e.Error())
			}
		})
	}
}

func TestNewEntity_ReportsEveryProblem(t *testing.T) {
	_, err := NewEntity(Public("Broken"),
		Field{Name: FieldID, Type: TypeText, Nullable: true},
		Field{Name: "", Type: TypeText},
		Field{Name: "count", Type: TypeLongInt, Default: DefaultGenerateID},
	)
	require.Error(t, err)
	assert.Len(t, errs.All(err), 4)
	assert.Contains(t, err.Error(), "public.Broken")
}

func TestEntity_FieldsIsACopy(t *testing.T) {
	e := MustEntity(Public("Genre"), IDField(), MustField("name", TypeText))
	fields := e.Fields()
	fields[1].Name = "changed"

	_, ok := e.Field("name")
	assert.True(t, ok)
}
