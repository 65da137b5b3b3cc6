package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/resolver"
	"github.com/koustreak/relschema/internal/schema"
)

// --- schema ---

type fieldView struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Generated  bool   `json:"generated,omitempty"`
	References string `json:"references,omitempty"`
}

type relationView struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Target     string `json:"target,omitempty"`
	ForeignKey string `json:"foreign_key,omitempty"`
	Link       string `json:"link,omitempty"`
}

type entityView struct {
	Namespace  string         `json:"namespace"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	PrimaryKey []string       `json:"primary_key"`
	Fields     []fieldView    `json:"fields"`
	Relations  []relationView `json:"relations"`
}

func (s *Server) describe(e *schema.Entity) entityView {
	q := e.Name()
	v := entityView{
		Namespace:  q.Namespace,
		Name:       q.Name,
		Kind:       e.Kind().String(),
		PrimaryKey: e.PrimaryKey(),
		Fields:     []fieldView{},
		Relations:  []relationView{},
	}
	for _, f := range e.Fields() {
		fv := fieldView{Name: f.Name, Type: f.Type.String(), Nullable: f.Nullable, Generated: f.HasDefault()}
		if f.References != nil {
			fv.References = f.References.Entity.String() + "." + f.References.Field
		}
		v.Fields = append(v.Fields, fv)
	}
	for _, rel := range s.resolver.Registry().RelationsOf(q) {
		rv := relationView{Name: rel.Name, Kind: rel.Kind.String(), ForeignKey: rel.ForeignKey}
		if !rel.Target.IsZero() {
			rv.Target = rel.Target.String()
		}
		if !rel.Link.IsZero() {
			rv.Link = rel.Link.String()
		}
		v.Relations = append(v.Relations, rv)
	}
	return v
}

func (s *Server) listEntities(w http.ResponseWriter, _ *http.Request) {
	entities := s.resolver.Registry().Entities()
	out := make([]entityView, 0, len(entities))
	for _, e := range entities {
		out = append(out, s.describe(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.resolver.Registry().Entity(entityName(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.describe(e))
}

// --- records ---

// entityName reads the target entity from the route. The namespace accepts
// both store names ("public::links") and module names ("default::links").
func entityName(r *http.Request) schema.QualifiedName {
	return schema.In(schema.ModuleNamespace(chi.URLParam(r, "namespace")), chi.URLParam(r, "entity"))
}

func (s *Server) findMany(w http.ResponseWriter, r *http.Request) {
	pred, err := parseFilters(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.resolver.FindMany(r.Context(), entityName(r), pred, parseInclude(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) insert(w http.ResponseWriter, r *http.Request) {
	values, err := decodeRecord(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.resolver.Insert(r.Context(), entityName(r), values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	pred, err := s.requireFilters(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changes, err := decodeRecord(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.resolver.Update(r.Context(), entityName(r), pred, changes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	pred, err := s.requireFilters(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.resolver.Delete(r.Context(), entityName(r), pred)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// requireFilters refuses bulk writes over a whole table.
func (s *Server) requireFilters(r *http.Request) (resolver.Predicate, error) {
	pred, err := parseFilters(r.URL.Query())
	if err != nil {
		return nil, err
	}
	if len(pred) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "at least one filter is required")
	}
	return pred, nil
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (resolver.Record, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var rec resolver.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "request body must be a JSON object", err)
	}
	if rec == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "request body must be a JSON object")
	}
	return rec, nil
}

// --- health ---

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
