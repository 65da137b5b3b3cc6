// Package idgen draws 128-bit identifiers for generated-id fields.
//
// Every strategy yields a uuid.UUID so ids round-trip through UUID columns
// on both Postgres and MySQL. UUIDv7 and ULID are time-ordered.
package idgen

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/koustreak/relschema/internal/errs"
)

// Strategy names a generation algorithm.
type Strategy string

const (
	StrategyUUIDv7 Strategy = "uuidv7"
	StrategyUUIDv4 Strategy = "uuidv4"
	StrategyULID   Strategy = "ulid"
)

// Generator produces new identifiers. Implementations are safe for
// concurrent use.
type Generator interface {
	NewID() (uuid.UUID, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (uuid.UUID, error)

// NewID calls f.
func (f GeneratorFunc) NewID() (uuid.UUID, error) { return f() }

// New returns the generator for s. An empty strategy selects UUIDv7.
func New(s Strategy) (Generator, error) {
	switch Strategy(strings.ToLower(string(s))) {
	case "", StrategyUUIDv7:
		return UUIDv7(), nil
	case StrategyUUIDv4:
		return UUIDv4(), nil
	case StrategyULID:
		return NewULID(rand.Reader), nil
	default:
		return nil, errs.Errorf(errs.ErrKindInvalidInput, "unknown id strategy %q", s)
	}
}

// UUIDv7 returns a generator of time-ordered RFC 9562 version 7 UUIDs.
func UUIDv7() Generator {
	return GeneratorFunc(uuid.NewV7)
}

// UUIDv4 returns a generator of random version 4 UUIDs.
func UUIDv4() Generator {
	return GeneratorFunc(uuid.NewRandom)
}

// ULID generates monotonic ULIDs, stored as UUIDs. Within one millisecond
// successive ids strictly increase.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewULID returns a ULID generator reading randomness from src.
func NewULID(src io.Reader) *ULID {
	return &ULID{entropy: ulid.Monotonic(src, 0), now: time.Now}
}

// NewID returns the next ULID as a uuid.UUID.
func (g *ULID) NewID() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return uuid.Nil, errs.Wrap(errs.ErrKindUnknown, "generate ulid", err)
	}
	return uuid.UUID(id), nil
}

// Sequence returns a deterministic generator that hands out ids in order
// and then fails. Intended for tests.
func Sequence(ids ...uuid.UUID) Generator {
	var (
		mu   sync.Mutex
		next int
	)
	return GeneratorFunc(func() (uuid.UUID, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			return uuid.Nil, errs.Errorf(errs.ErrKindUnknown, "id sequence exhausted after %d ids", len(ids))
		}
		id := ids[next]
		next++
		return id, nil
	})
}
