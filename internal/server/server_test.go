package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/relschema/internal/database/postgres"
	"github.com/koustreak/relschema/internal/idgen"
	"github.com/koustreak/relschema/internal/metrics"
	"github.com/koustreak/relschema/internal/resolver"
	"github.com/koustreak/relschema/internal/schema"
)

const moviesDocument = `
modules:
  - name: default
    types:
      - name: Genre
        properties:
          - {name: name, type: std::str, required: true}
      - name: Movie
        properties:
          - {name: title, type: std::str, required: true}
          - {name: release_year, type: std::int16}
        links:
          - {name: genre, target: Genre}
`

type fixture struct {
	mock sqlmock.Sqlmock
	srv  *httptest.Server
	reg  *prometheus.Registry
}

func newFixture(t *testing.T, ids ...uuid.UUID) *fixture {
	t.Helper()
	reg, err := schema.LoadDocument(strings.NewReader(moviesDocument))
	require.NoError(t, err)

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	r := resolver.New(reg, postgres.Wrap(sqlDB), resolver.WithIDGenerator(idgen.Sequence(ids...)), resolver.WithObserver(m))

	srv := httptest.NewServer(New(r, WithMetrics(m, promReg)).Handler())
	t.Cleanup(srv.Close)
	return &fixture{mock: mock, srv: srv, reg: promReg}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(&v), string(data))
	return v
}

func TestSchemaEndpoints(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, code)
	list := decode[[]entityView](t, body)
	var names []string
	for _, e := range list {
		names = append(names, e.Namespace+"."+e.Name)
	}
	assert.ElementsMatch(t, []string{"public.Genre", "public.Movie"}, names)

	code, body = f.do(t, http.MethodGet, "/schema/default/Movie", "")
	require.Equal(t, http.StatusOK, code)
	movie := decode[entityView](t, body)
	assert.Equal(t, "domain", movie.Kind)
	assert.Equal(t, []string{"id"}, movie.PrimaryKey)
	require.Len(t, movie.Fields, 4)
	assert.Equal(t, fieldView{Name: "genre_id", Type: "identifier", Nullable: true, References: "public.Genre.id"}, movie.Fields[1])
	assert.Equal(t, []relationView{{Name: "genre", Kind: "single", Target: "public.Genre", ForeignKey: "genre_id"}}, movie.Relations)

	code, body = f.do(t, http.MethodGet, "/schema/public/Studio", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", decode[map[string]errorBody](t, body)["error"].Kind)
}

func TestRecords_Insert(t *testing.T) {
	id := uuid.New()
	f := newFixture(t, id)

	f.mock.ExpectQuery(`INSERT INTO "Genre" ("id", "name") VALUES ($1, $2) RETURNING "id", "name"`).
		WithArgs(id.String(), "Crime").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(id.String(), "Crime"))

	code, body := f.do(t, http.MethodPost, "/records/public/Genre", `{"name":"Crime"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	assert.Equal(t, map[string]any{"id": id.String(), "name": "Crime"}, decode[map[string]any](t, body))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRecords_InsertErrors(t *testing.T) {
	id := uuid.New()
	// Rejected inserts draw an id before their values are checked.
	f := newFixture(t, uuid.New(), uuid.New(), id)

	code, _ := f.do(t, http.MethodPost, "/records/public/Genre", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/records/public/Movie", `{"release_year": 1999}`)
	assert.Equal(t, http.StatusConflict, code, "missing required title")

	code, _ = f.do(t, http.MethodPost, "/records/public/Movie", `{"title": "x", "release_year": 99999}`)
	assert.Equal(t, http.StatusBadRequest, code)

	genreID := uuid.New()
	f.mock.ExpectQuery(`INSERT INTO "Movie" ("id", "genre_id", "title") VALUES ($1, $2, $3) RETURNING "id", "genre_id", "release_year", "title"`).
		WithArgs(id.String(), genreID.String(), "Orphan").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "Movie_genre_id_fkey"})

	code, body := f.do(t, http.MethodPost, "/records/public/Movie", `{"title": "Orphan", "genre_id": "`+genreID.String()+`"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "constraint", decode[map[string]errorBody](t, body)["error"].Kind)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRecords_FindManyWithRelations(t *testing.T) {
	f := newFixture(t)
	m, g := uuid.New(), uuid.New()

	f.mock.ExpectQuery(`SELECT "id", "genre_id", "release_year", "title" FROM "Movie" WHERE "release_year" >= $1 AND "title" LIKE $2`).
		WithArgs(int64(2000), "Here%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "genre_id", "release_year", "title"}).
			AddRow(m.String(), g.String(), int64(2005), "Here and There"))
	f.mock.ExpectQuery(`SELECT "id", "name" FROM "Genre" WHERE "id" IN ($1)`).
		WithArgs(g.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(g.String(), "Crime"))

	code, body := f.do(t, http.MethodGet, "/records/public/Movie?release_year__gte=2000&title__like=Here%25&with=genre", "")
	require.Equal(t, http.StatusOK, code, string(body))

	recs := decode[[]map[string]any](t, body)
	require.Len(t, recs, 1)
	assert.Equal(t, "Here and There", recs[0]["title"])
	assert.EqualValues(t, 2005, recs[0]["release_year"])
	assert.Equal(t, map[string]any{"id": g.String(), "name": "Crime"}, recs[0]["genre"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRecords_FindManyErrors(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodGet, "/records/public/Movie?title__regex=x", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/records/public/Movie?with=studio", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/records/public/Nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecords_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectExec(`UPDATE "Movie" SET "release_year" = $1 WHERE "title" = $2`).
		WithArgs(int64(2007), "Here and There").
		WillReturnResult(sqlmock.NewResult(0, 1))
	code, body := f.do(t, http.MethodPatch, "/records/public/Movie?title=Here+and+There", `{"release_year": 2007}`)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, map[string]int64{"updated": 1}, decode[map[string]int64](t, body))

	a, b := uuid.New(), uuid.New()
	f.mock.ExpectExec(`DELETE FROM "Movie" WHERE "id" IN ($1, $2)`).
		WithArgs(a.String(), b.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	code, body = f.do(t, http.MethodDelete, "/records/public/Movie?id__in="+a.String()+","+b.String(), "")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, map[string]int64{"deleted": 2}, decode[map[string]int64](t, body))

	code, _ = f.do(t, http.MethodDelete, "/records/public/Movie", "")
	assert.Equal(t, http.StatusBadRequest, code, "unfiltered delete")

	code, _ = f.do(t, http.MethodPatch, "/records/public/Movie", `{"title": "x"}`)
	assert.Equal(t, http.StatusBadRequest, code, "unfiltered update")

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	code, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `relschema_http_requests_total{code="200",method="GET",route="/healthz"} 1`)

	down := httptest.NewServer(New(nil, WithPinger(pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))).Handler())
	defer down.Close()
	resp, err := http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestParseFilters(t *testing.T) {
	q := map[string][]string{
		"title":       {"A"},
		"genre_id":    {"null"},
		"year__nin":   {"1999, 2000,"},
		"with":        {"genre"},
		"name__ilike": {"%a%"},
	}
	pred, err := parseFilters(q)
	require.NoError(t, err)
	assert.Equal(t, resolver.Predicate{
		{Column: "genre_id", Op: "=", Value: nil},
		{Column: "name", Op: "ILIKE", Value: "%a%"},
		{Column: "title", Op: "=", Value: "A"},
		{Column: "year", Op: "NOT IN", Value: []any{"1999", "2000"}},
	}, pred)

	_, err = parseFilters(map[string][]string{"x__between": {"1"}})
	assert.Error(t, err)

	assert.Equal(t, []string{"actors.genre", "genre"}, parseInclude(map[string][]string{"with": {"genre,actors.genre"}}).Paths())
	assert.Nil(t, parseInclude(nil))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
