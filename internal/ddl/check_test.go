package ddl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
)

// memIntrospector serves canned information_schema content.
type memIntrospector map[string]*database.SchemaInfo

func (m memIntrospector) ListTables(_ context.Context, schema string) ([]string, error) {
	info, ok := m[schema]
	if !ok {
		return nil, nil
	}
	names := make([]string, len(info.Tables))
	for i, t := range info.Tables {
		names[i] = t.Name
	}
	return names, nil
}

func (m memIntrospector) TableExists(_ context.Context, schema, table string) (bool, error) {
	info, ok := m[schema]
	if !ok {
		return false, nil
	}
	_, ok = info.Table(table)
	return ok, nil
}

func (m memIntrospector) InspectTable(_ context.Context, schema, table string) (*database.TableInfo, error) {
	if info, ok := m[schema]; ok {
		if t, ok := info.Table(table); ok {
			return t, nil
		}
	}
	return nil, errs.Errorf(errs.ErrKindNotFound, "table %s.%s not found", schema, table)
}

func (m memIntrospector) ListForeignKeys(_ context.Context, schema string) ([]database.ForeignKey, error) {
	if info, ok := m[schema]; ok {
		return info.ForeignKeys, nil
	}
	return nil, nil
}

func col(name, typ string, nullable bool) database.ColumnInfo {
	return database.ColumnInfo{Name: name, DataType: typ, Nullable: nullable}
}

func liveStore() memIntrospector {
	return memIntrospector{
		"public": {
			Name: "public",
			Tables: []database.TableInfo{
				{Name: "Genre", Columns: []database.ColumnInfo{col("id", "uuid", false), col("name", "text", false)}},
				{Name: "Movie", Columns: []database.ColumnInfo{
					col("id", "uuid", false),
					col("genre_id", "uuid", true),
					col("studio_id", "uuid", true),
					col("title", "text", false),
				}},
				{Name: "Movie.tags", Columns: []database.ColumnInfo{
					col("source_id", "uuid", false), col("target", "text", false), col("ordinal", "bigint", false),
				}},
			},
			ForeignKeys: []database.ForeignKey{
				{Table: "Movie", Column: "genre_id", RefTable: "Genre", RefColumn: "id"},
				{Table: "Movie", Column: "studio_id", RefTable: "Studio", RefColumn: "id"},
				{Table: "Movie.tags", Column: "source_id", RefTable: "Movie", RefColumn: "id"},
			},
		},
		"public::links": {
			Name:   "public::links",
			Tables: []database.TableInfo{{Name: "Studio", Columns: []database.ColumnInfo{col("id", "uuid", false), col("name", "text", false)}}},
		},
	}
}

func TestCheck_NoDrift(t *testing.T) {
	report, err := Check(context.Background(), liveStore(), movieRegistry(t), database.DialectPostgres)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Empty(t, report.Drifts)
	assert.Equal(t, "no drift", report.String())
}

func TestCheck_ReportsDrift(t *testing.T) {
	live := liveStore()
	pub := live["public"]
	movie, _ := pub.Table("Movie")
	movie.Columns = []database.ColumnInfo{
		col("id", "uuid", false),
		col("genre_id", "uuid", false),
		col("title", "character varying", false),
		col("rating", "smallint", true),
	}
	pub.Tables = pub.Tables[:2]
	pub.ForeignKeys = nil

	report, err := Check(context.Background(), live, movieRegistry(t), database.DialectPostgres)
	require.NoError(t, err)
	assert.False(t, report.OK())

	got := make(map[DriftKind][]string)
	for _, d := range report.Drifts {
		got[d.Kind] = append(got[d.Kind], d.Entity+"."+d.Column)
	}
	assert.Equal(t, []string{"public.Movie.genre_id"}, got[DriftNullability])
	assert.Equal(t, []string{"public.Movie.studio_id"}, got[DriftMissingColumn])
	assert.Equal(t, []string{"public.Movie.title"}, got[DriftTypeMismatch])
	assert.Equal(t, []string{"public.Movie.genre_id"}, got[DriftMissingForeignKey])
	assert.Equal(t, []string{"public.Movie.rating"}, got[DriftExtraColumn])
	assert.Equal(t, []string{"public.Movie.tags."}, got[DriftMissingTable])
}

func TestCheck_ExtraColumnsOnlyIsOK(t *testing.T) {
	live := liveStore()
	genre, _ := live["public"].Table("Genre")
	genre.Columns = append(genre.Columns, col("slug", "text", true))

	report, err := Check(context.Background(), live, movieRegistry(t), database.DialectPostgres)
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, "extra_column: public.Genre.slug", report.Drifts[0].String())
}

func TestCheck_MySQLTypes(t *testing.T) {
	live := memIntrospector{
		"public": {Tables: []database.TableInfo{
			{Name: "Genre", Columns: []database.ColumnInfo{col("id", "char", false), col("name", "text", false)}},
			{Name: "Movie", Columns: []database.ColumnInfo{
				col("id", "char", false), col("genre_id", "char", true),
				col("studio_id", "char", true), col("title", "text", false),
			}},
			{Name: "Movie.tags", Columns: []database.ColumnInfo{
				col("source_id", "char", false), col("target", "varchar", false), col("ordinal", "bigint", false),
			}},
		}, ForeignKeys: liveStore()["public"].ForeignKeys},
		"public::links": liveStore()["public::links"],
	}
	live["public::links"].Tables[0].Columns = []database.ColumnInfo{col("id", "char", false), col("name", "text", false)}

	report, err := Check(context.Background(), live, movieRegistry(t), database.DialectMySQL)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.String())
}

func TestCheck_LinkTableOrdinal(t *testing.T) {
	live := liveStore()
	tags, _ := live["public"].Table("Movie.tags")
	tags.Columns = tags.Columns[:2]

	report, err := Check(context.Background(), live, movieRegistry(t), database.DialectPostgres)
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, "missing_column: public.Movie.tags.ordinal", report.Drifts[0].String())

	tags.Columns = append(tags.Columns, col("ordinal", "integer", false))
	report, err = Check(context.Background(), live, movieRegistry(t), database.DialectPostgres)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, DriftTypeMismatch, report.Drifts[0].Kind)
}
