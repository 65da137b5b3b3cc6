package resolver

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/schema"
)

// Include is a tree of relation names to load: each key is a relation of
// the entity at that level, each value the relations to load below it.
type Include map[string]Include

// Paths builds an Include from dotted relation paths such as
// "genre" and "actors.genre".
func Paths(paths ...string) Include {
	root := Include{}
	for _, p := range paths {
		node := root
		for _, name := range strings.Split(p, ".") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			next, ok := node[name]
			if !ok {
				next = Include{}
				node[name] = next
			}
			node = next
		}
	}
	return root
}

// Paths flattens the tree back into sorted dotted paths.
func (in Include) Paths() []string {
	var out []string
	var walk func(prefix string, node Include)
	walk = func(prefix string, node Include) {
		for name, sub := range node {
			p := prefix + name
			if len(sub) == 0 {
				out = append(out, p)
				continue
			}
			walk(p+".", sub)
		}
	}
	walk("", in)
	sort.Strings(out)
	return out
}

// FindMany returns every row of entity matching pred, with the relations
// named in with resolved eagerly. Each relation at each level costs one
// query per batch of keys, not one per row. Single relations attach the
// related Record or nil; collections attach a non-nil slice in link-row
// insertion order ([]Record for entity targets, []any for scalar values).
// Every attached Record is owned by its parent, even when several parents
// relate to the same row. Link entities are always read in insertion order.
func (r *Resolver) FindMany(ctx context.Context, entity schema.QualifiedName, pred Predicate, with Include) (recs []Record, err error) {
	start := time.Now()
	defer func() { r.observe(OpFindMany, entity, start, len(recs), err) }()

	e, err := r.reg.Entity(entity)
	if err != nil {
		return nil, err
	}
	if err := r.checkInclude(e, with); err != nil {
		return nil, err
	}
	conds, err := pred.compile(e)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	recs, err = r.selectRows(ctx, e, conds)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, e, recs, with); err != nil {
		return nil, err
	}
	return recs, nil
}

// checkInclude validates the whole tree before any query runs.
func (r *Resolver) checkInclude(e *schema.Entity, with Include) error {
	for name, sub := range with {
		rel, err := r.reg.Relation(e.Name(), name)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "cannot include "+name, err)
		}
		if len(sub) == 0 {
			continue
		}
		if rel.IsScalar() {
			return errs.Errorf(errs.ErrKindInvalidInput, "%s.%s holds values and has no relations", e.Name(), name)
		}
		target, err := r.reg.Entity(rel.Target)
		if err != nil {
			return err
		}
		if err := r.checkInclude(target, sub); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) selectRows(ctx context.Context, e *schema.Entity, conds []database.Condition) ([]Record, error) {
	q := e.Name()
	sel := database.Select(q.Name, r.exec.Dialect()).
		InSchema(q.Namespace).
		Columns(e.FieldNames()...).
		WhereAll(conds...)
	if e.IsLink() {
		sel.OrderBy(schema.FieldOrdinal, database.Asc)
	}
	sqlText, args, err := sel.Build()
	if err != nil {
		return nil, err
	}
	r.logStatement(ctx, OpFindMany, q, sqlText)

	rows, err := r.exec.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	raw, err := database.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, m := range raw {
		rec, err := normalizeRow(e, m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// selectIn loads the rows of e whose column is one of keys, batch by batch.
func (r *Resolver) selectIn(ctx context.Context, e *schema.Entity, column string, keys []any) ([]Record, error) {
	var out []Record
	for lo := 0; lo < len(keys); lo += r.batchSize {
		hi := min(lo+r.batchSize, len(keys))
		recs, err := r.selectRows(ctx, e, []database.Condition{database.In(column, keys[lo:hi])})
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// loadRelations attaches the relations in with to recs, in declaration order.
func (r *Resolver) loadRelations(ctx context.Context, e *schema.Entity, recs []Record, with Include) error {
	if len(with) == 0 {
		return nil
	}
	for _, rel := range r.reg.RelationsOf(e.Name()) {
		sub, ok := with[rel.Name]
		if !ok {
			continue
		}
		var err error
		switch rel.Kind {
		case schema.RelationSingle:
			err = r.loadSingle(ctx, rel, recs, sub)
		case schema.RelationCollection:
			err = r.loadCollection(ctx, rel, recs, sub)
		default:
			err = errs.Errorf(errs.ErrKindInvalidField, "relation %s has unknown kind", rel)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) loadSingle(ctx context.Context, rel schema.Relation, recs []Record, sub Include) error {
	keys := distinctIDs(recs, rel.ForeignKey)
	byID, err := r.loadTargets(ctx, rel.Target, keys, sub)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		var related any
		if id, ok := rec[rel.ForeignKey].(uuid.UUID); ok {
			if t, ok := byID[id]; ok {
				related = cloneRecord(t)
			}
		}
		rec[rel.Name] = related
	}
	return nil
}

func (r *Resolver) loadCollection(ctx context.Context, rel schema.Relation, recs []Record, sub Include) error {
	link, err := r.reg.Entity(rel.Link)
	if err != nil {
		return err
	}
	owners := distinctIDs(recs, schema.FieldID)
	linkRows, err := r.selectIn(ctx, link, schema.FieldSourceID, owners)
	if err != nil {
		return err
	}

	if rel.IsScalar() {
		values := make(map[uuid.UUID][]any, len(owners))
		for _, lr := range linkRows {
			src, _ := lr[schema.FieldSourceID].(uuid.UUID)
			values[src] = append(values[src], lr[schema.FieldTarget])
		}
		for _, rec := range recs {
			id, _ := rec[schema.FieldID].(uuid.UUID)
			vs := values[id]
			if vs == nil {
				vs = []any{}
			}
			rec[rel.Name] = vs
		}
		return nil
	}

	targetIDs := distinctIDs(linkRows, schema.FieldTargetID)
	byID, err := r.loadTargets(ctx, rel.Target, targetIDs, sub)
	if err != nil {
		return err
	}
	related := make(map[uuid.UUID][]Record, len(owners))
	for _, lr := range linkRows {
		src, _ := lr[schema.FieldSourceID].(uuid.UUID)
		tid, _ := lr[schema.FieldTargetID].(uuid.UUID)
		if t, ok := byID[tid]; ok {
			related[src] = append(related[src], cloneRecord(t))
		}
	}
	for _, rec := range recs {
		id, _ := rec[schema.FieldID].(uuid.UUID)
		rs := related[id]
		if rs == nil {
			rs = []Record{}
		}
		rec[rel.Name] = rs
	}
	return nil
}

// loadTargets fetches target rows by id, resolves their own relations and
// indexes them by id.
func (r *Resolver) loadTargets(ctx context.Context, target schema.QualifiedName, keys []any, sub Include) (map[uuid.UUID]Record, error) {
	if len(keys) == 0 {
		return map[uuid.UUID]Record{}, nil
	}
	te, err := r.reg.Entity(target)
	if err != nil {
		return nil, err
	}
	rows, err := r.selectIn(ctx, te, schema.FieldID, keys)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, te, rows, sub); err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]Record, len(rows))
	for _, row := range rows {
		if id, ok := row[schema.FieldID].(uuid.UUID); ok {
			byID[id] = row
		}
	}
	return byID, nil
}

// cloneRecord copies rec along with every related Record attached below it.
func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		switch v := v.(type) {
		case Record:
			out[k] = cloneRecord(v)
		case []Record:
			rs := make([]Record, len(v))
			for i, r := range v {
				rs[i] = cloneRecord(r)
			}
			out[k] = rs
		case []any:
			out[k] = append([]any{}, v...)
		default:
			out[k] = v
		}
	}
	return out
}

// distinctIDs collects the non-null identifiers under field, first-seen order.
func distinctIDs(recs []Record, field string) []any {
	seen := make(map[uuid.UUID]bool, len(recs))
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		id, ok := rec[field].(uuid.UUID)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
