package idgen

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/relschema/internal/errs"
)

func TestNew(t *testing.T) {
	tests := []struct {
		strategy Strategy
		version  uuid.Version
	}{
		{"", 7},
		{StrategyUUIDv7, 7},
		{"UUIDv4", 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			g, err := New(tt.strategy)
			require.NoError(t, err)
			id, err := g.NewID()
			require.NoError(t, err)
			assert.Equal(t, tt.version, id.Version())
		})
	}

	_, err := New("snowflake")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err), err.Error())
}

func TestUUIDv7_Unique(t *testing.T) {
	g := UUIDv7()
	seen := make(map[uuid.UUID]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id, err := g.NewID()
				assert.NoError(t, err)
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 4000)
}

func TestULID_Monotonic(t *testing.T) {
	g := NewULID(rand.Reader)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	prev, err := g.NewID()
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		id, err := g.NewID()
		require.NoError(t, err)
		assert.Equal(t, 1, bytes.Compare(id[:], prev[:]), "ids must strictly increase within a millisecond")
		prev = id
	}
}

func TestSequence(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	g := Sequence(a, b)

	got, err := g.NewID()
	require.NoError(t, err)
	assert.Equal(t, a, got)
	got, err = g.NewID()
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = g.NewID()
	assert.Error(t, err)
}
