// Package resolver translates entity-level operations into statements
// against the relational store and assembles nested results.
//
// A Resolver holds a non-owning reference to a finalized schema.Registry
// and an executor. It keeps no state between calls, so one Resolver may be
// shared by any number of goroutines.
package resolver

import (
	"context"
	"time"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/idgen"
	"github.com/koustreak/relschema/internal/logger"
	"github.com/koustreak/relschema/internal/schema"
)

// Operation names a resolver call, as reported to an Observer.
type Operation string

const (
	OpInsert   Operation = "insert"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpFindMany Operation = "find_many"
)

// Observer is notified once per completed operation. rows is the number of
// rows written, deleted or returned at the top level.
type Observer interface {
	Observe(op Operation, entity string, elapsed time.Duration, rows int, err error)
}

// DefaultBatchSize bounds the IN-list of one relation lookup.
const DefaultBatchSize = 500

// Resolver runs Insert, Update, Delete and FindMany.
type Resolver struct {
	reg       *schema.Registry
	exec      database.Executor
	ids       idgen.Generator
	log       *logger.Logger
	observer  Observer
	timeout   time.Duration
	batchSize int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDGenerator sets the generator used for fields with a generated default.
func WithIDGenerator(g idgen.Generator) Option {
	return func(r *Resolver) { r.ids = g }
}

// WithLogger sets the logger. Statements are logged at debug level.
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithObserver reports every operation to o.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithQueryTimeout bounds each operation. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithBatchSize sets how many keys one relation lookup may carry.
func WithBatchSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// New returns a Resolver for reg running statements on exec.
func New(reg *schema.Registry, exec database.Executor, opts ...Option) *Resolver {
	r := &Resolver{
		reg:       reg,
		exec:      exec,
		ids:       idgen.UUIDv7(),
		log:       logger.Nop(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the resolver reads.
func (r *Resolver) Registry() *schema.Registry { return r.reg }

// With returns a copy of r that runs its statements on exec, typically a
// database.Tx.
func (r *Resolver) With(exec database.Executor) *Resolver {
	cp := *r
	cp.exec = exec
	return &cp
}

// InTx runs fn with a resolver bound to a new transaction on db. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Resolver) InTx(ctx context.Context, db database.DB, fn func(*Resolver) error) error {
	return database.RunInTx(ctx, db, func(tx database.Tx) error {
		return fn(r.With(tx))
	})
}

// Insert writes one row. Fields with a generated default that are absent
// from values receive a fresh identifier first. It returns the persisted
// row, generated values included.
func (r *Resolver) Insert(ctx context.Context, entity schema.QualifiedName, values Record) (rec Record, err error) {
	start := time.Now()
	defer func() {
		n := 0
		if err == nil {
			n = 1
		}
		r.observe(OpInsert, entity, start, n, err)
	}()

	e, err := r.reg.Entity(entity)
	if err != nil {
		return nil, err
	}
	if err := checkFields(e, values); err != nil {
		return nil, err
	}

	q := e.Name()
	b := database.Insert(q.Name, r.exec.Dialect()).InSchema(q.Namespace)
	written := make(Record, len(e.Fields()))
	for _, f := range e.Fields() {
		v, supplied := values[f.Name]
		switch {
		case supplied:
			cv, err := coerce(f, v)
			if err != nil {
				return nil, err
			}
			if cv == nil && !f.Nullable {
				return nil, errs.Errorf(errs.ErrKindConstraint, "%s.%s cannot be null", q, f.Name)
			}
			written[f.Name] = cv
		case f.HasDefault():
			id, err := r.ids.NewID()
			if err != nil {
				return nil, errs.Wrap(errs.ErrKindUnknown, "generate "+f.Name, err)
			}
			written[f.Name] = id
		case f.Nullable:
			written[f.Name] = nil
			continue
		default:
			return nil, errs.Errorf(errs.ErrKindConstraint, "%s.%s is required", q, f.Name)
		}
		b.Set(f.Name, written[f.Name])
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	if !r.exec.Dialect().SupportsReturning() {
		sqlText, args, err := b.Build()
		if err != nil {
			return nil, err
		}
		r.logStatement(ctx, OpInsert, q, sqlText)
		if _, err := r.exec.Exec(ctx, sqlText, args...); err != nil {
			return nil, err
		}
		return written, nil
	}

	cols := e.FieldNames()
	sqlText, args, err := b.Returning(cols...).Build()
	if err != nil {
		return nil, err
	}
	r.logStatement(ctx, OpInsert, q, sqlText)
	row, err := r.exec.QueryRow(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	raw, err := database.ScanRow(row, cols)
	if err != nil {
		return nil, err
	}
	return normalizeRow(e, raw)
}

// Update applies changes to every row matching pred and returns the number
// of rows affected.
func (r *Resolver) Update(ctx context.Context, entity schema.QualifiedName, pred Predicate, changes Record) (n int64, err error) {
	start := time.Now()
	defer func() { r.observe(OpUpdate, entity, start, int(n), err) }()

	e, err := r.reg.Entity(entity)
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, errs.Errorf(errs.ErrKindInvalidInput, "update of %s has no changes", e.Name())
	}
	if err := checkFields(e, changes); err != nil {
		return 0, err
	}
	conds, err := pred.compile(e)
	if err != nil {
		return 0, err
	}

	q := e.Name()
	b := database.Update(q.Name, r.exec.Dialect()).InSchema(q.Namespace).WhereAll(conds...)
	for _, f := range e.Fields() {
		v, ok := changes[f.Name]
		if !ok {
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			return 0, err
		}
		if cv == nil && !f.Nullable {
			return 0, errs.Errorf(errs.ErrKindConstraint, "%s.%s cannot be null", q, f.Name)
		}
		b.Set(f.Name, cv)
	}

	sqlText, args, err := b.Build()
	if err != nil {
		return 0, err
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	r.logStatement(ctx, OpUpdate, q, sqlText)
	return r.exec.Exec(ctx, sqlText, args...)
}

// Delete removes every row matching pred and returns how many were removed.
// Rows of link entities that point at a deleted row are left to the store's
// foreign-key rules.
func (r *Resolver) Delete(ctx context.Context, entity schema.QualifiedName, pred Predicate) (n int64, err error) {
	start := time.Now()
	defer func() { r.observe(OpDelete, entity, start, int(n), err) }()

	e, err := r.reg.Entity(entity)
	if err != nil {
		return 0, err
	}
	conds, err := pred.compile(e)
	if err != nil {
		return 0, err
	}
	q := e.Name()
	sqlText, args, err := database.Delete(q.Name, r.exec.Dialect()).InSchema(q.Namespace).WhereAll(conds...).Build()
	if err != nil {
		return 0, err
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	r.logStatement(ctx, OpDelete, q, sqlText)
	return r.exec.Exec(ctx, sqlText, args...)
}

func checkFields(e *schema.Entity, values Record) error {
	for name := range values {
		if _, ok := e.Field(name); !ok {
			return errs.Errorf(errs.ErrKindInvalidInput, "%s has no field %q", e.Name(), name)
		}
	}
	return nil
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// logStatement prefers a request-scoped logger carried by ctx.
func (r *Resolver) logStatement(ctx context.Context, op Operation, q schema.QualifiedName, sqlText string) {
	logger.FromContextOr(ctx, r.log).DebugWith("resolver statement", map[string]any{
		"op":     string(op),
		"entity": q.String(),
		"sql":    sqlText,
	})
}

func (r *Resolver) observe(op Operation, entity schema.QualifiedName, start time.Time, rows int, err error) {
	if r.observer == nil {
		return
	}
	r.observer.Observe(op, entity.Normalize().String(), time.Since(start), rows, err)
}
