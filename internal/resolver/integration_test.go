package resolver_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/database/postgres"
	"github.com/koustreak/relschema/internal/ddl"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/resolver"
	"github.com/koustreak/relschema/internal/schema"
)

const integrationDocument = `
modules:
  - name: default
    types:
      - name: Genre
        properties:
          - {name: name, type: std::str, required: true}
      - name: Person
        properties:
          - {name: first_name, type: std::str, required: true}
          - {name: last_name, type: std::str}
      - name: Movie
        properties:
          - {name: title, type: std::str, required: true}
          - {name: release_year, type: std::int16}
          - {name: budget, type: std::int64}
          - {name: tags, type: std::str, multi: true}
        links:
          - {name: genre, target: Genre}
          - {name: director, target: Person}
          - {name: actors, target: Person, multi: true}
  - name: default::links
    types:
      - name: Award
        properties:
          - {name: name, type: std::str, required: true}
        links:
          - {name: movie, target: "default::Movie"}
`

func startPostgres(t *testing.T) (*postgres.Driver, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("relschema"),
		tcpostgres.WithUsername("relschema"),
		tcpostgres.WithPassword("relschema"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.New(ctx, database.DefaultConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db, dsn
}

func TestPostgres_RoundTrip(t *testing.T) {
	db, dsn := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reg, err := schema.LoadDocument(strings.NewReader(integrationDocument))
	require.NoError(t, err)

	plan, err := ddl.Generate(reg, db.Dialect())
	require.NoError(t, err)
	_, err = ddl.Apply(ctx, db, plan, nil)
	require.NoError(t, err)

	again, err := ddl.Apply(ctx, db, plan, nil)
	require.NoError(t, err, "applying the same plan twice must succeed")
	assert.Positive(t, again.Skipped)

	report, err := ddl.Check(ctx, db, reg, db.Dialect())
	require.NoError(t, err)
	assert.True(t, report.OK(), report.String())

	r := resolver.New(reg, db)
	var (
		genre  = schema.Public("Genre")
		person = schema.Public("Person")
		movie  = schema.Public("Movie")
		actors = schema.Public("Movie.actors")
		tags   = schema.Public("Movie.tags")
		award  = schema.In("public::links", "Award")
	)

	crime, err := r.Insert(ctx, genre, resolver.Record{"name": "Crime"})
	require.NoError(t, err)
	require.NotNil(t, crime["id"])

	jack, err := r.Insert(ctx, person, resolver.Record{"first_name": "Jack"})
	require.NoError(t, err)
	ann, err := r.Insert(ctx, person, resolver.Record{"first_name": "Ann", "last_name": "Lee"})
	require.NoError(t, err)
	bob, err := r.Insert(ctx, person, resolver.Record{"first_name": "Bob"})
	require.NoError(t, err)

	m, err := r.Insert(ctx, movie, resolver.Record{
		"title":        "Here and There",
		"release_year": 2005,
		"budget":       int64(1) << 40,
		"genre_id":     crime["id"],
		"director_id":  jack["id"],
	})
	require.NoError(t, err)
	assert.Equal(t, int16(2005), m["release_year"])
	assert.Equal(t, int64(1)<<40, m["budget"])

	for _, p := range []resolver.Record{bob, ann} {
		_, err := r.Insert(ctx, actors, resolver.Record{"source_id": m["id"], "target_id": p["id"]})
		require.NoError(t, err)
	}
	_, err = r.Insert(ctx, tags, resolver.Record{"source_id": m["id"], "target": "noir"})
	require.NoError(t, err)
	_, err = r.Insert(ctx, award, resolver.Record{"name": "Golden Reel", "movie_id": m["id"]})
	require.NoError(t, err)

	found, err := r.FindMany(ctx, movie, nil, resolver.Paths("genre", "director", "actors", "tags"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Crime", found[0]["genre"].(resolver.Record)["name"])
	assert.Equal(t, "Jack", found[0]["director"].(resolver.Record)["first_name"])
	assert.Equal(t, []any{"noir"}, found[0]["tags"])
	cast := found[0]["actors"].([]resolver.Record)
	require.Len(t, cast, 2)
	assert.Equal(t, "Bob", cast[0]["first_name"])
	assert.Equal(t, "Ann", cast[1]["first_name"])

	awards, err := r.FindMany(ctx, award, nil, resolver.Paths("movie.genre"))
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Crime", awards[0]["movie"].(resolver.Record)["genre"].(resolver.Record)["name"])

	n, err := r.Update(ctx, movie, resolver.Eq("title", "Here and There"), resolver.Record{"release_year": 2007})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	updated, err := r.FindMany(ctx, movie, resolver.Eq("title", "Here and There"), nil)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, int16(2007), updated[0]["release_year"])
	assert.Equal(t, m["budget"], updated[0]["budget"])
	assert.Equal(t, m["genre_id"], updated[0]["genre_id"])

	_, err = r.Insert(ctx, movie, resolver.Record{"title": "Orphan", "genre_id": ann["id"]})
	require.Error(t, err)
	assert.True(t, errs.IsConstraint(err), err.Error())

	// Link rows still point at the movie; the store rejects the delete.
	_, err = r.Delete(ctx, movie, resolver.Eq("title", "Here and There"))
	require.Error(t, err)
	assert.True(t, errs.IsConstraint(err), err.Error())

	err = r.InTx(ctx, db, func(tx *resolver.Resolver) error {
		for _, e := range []schema.QualifiedName{actors, tags} {
			if _, err := tx.Delete(ctx, e, resolver.Eq("source_id", m["id"])); err != nil {
				return err
			}
		}
		if _, err := tx.Delete(ctx, award, resolver.Eq("movie_id", m["id"])); err != nil {
			return err
		}
		_, err := tx.Delete(ctx, movie, resolver.Eq("title", "Here and There"))
		return err
	})
	require.NoError(t, err)

	gone, err := r.FindMany(ctx, movie, resolver.Eq("title", "Here and There"), nil)
	require.NoError(t, err)
	assert.Empty(t, gone)

	// The database/sql client sees the same store.
	sqlDB, err := postgres.OpenSQL(ctx, database.DefaultConfig(dsn))
	require.NoError(t, err)
	defer sqlDB.Close()
	report, err = ddl.Check(ctx, sqlDB, reg, sqlDB.Dialect())
	require.NoError(t, err)
	assert.True(t, report.OK(), report.String())
	genres, err := resolver.New(reg, sqlDB).FindMany(ctx, genre, resolver.Eq("id", crime["id"]), nil)
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "Crime", genres[0]["name"])
}
