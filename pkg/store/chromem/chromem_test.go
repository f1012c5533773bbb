package chromem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlapax/aimem/pkg/store/chromem"
)

func newTestDenseStore(t *testing.T) *chromem.Store {
	t.Helper()
	s, err := chromem.Open("", "test-memories")
	require.NoError(t, err)
	return s
}

func TestPutQueryCount(t *testing.T) {
	ctx := context.Background()
	s := newTestDenseStore(t)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, s.Put(ctx, 1, "the cat sat on the mat", []float32{1, 0, 0}))
	require.NoError(t, s.Put(ctx, 2, "dogs play fetch in the park", []float32{0, 1, 0}))

	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := s.Query(ctx, []float32{0.9, 0.1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].MemoryID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)

	hits, err = s.Query(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestQueryEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newTestDenseStore(t)

	hits, err := s.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestDenseStore(t)

	require.NoError(t, s.Put(ctx, 1, "original", []float32{1, 0, 0}))
	require.NoError(t, s.Put(ctx, 1, "updated", []float32{0, 1, 0}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := s.Query(ctx, []float32{0, 1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestDenseStore(t)

	require.NoError(t, s.Put(ctx, 1, "to be removed", []float32{1, 0, 0}))
	require.NoError(t, s.Delete(ctx, 1))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestDenseStore(t)

	require.NoError(t, s.Put(ctx, 1, "a", []float32{1, 0, 0}))
	require.NoError(t, s.Put(ctx, 2, "b", []float32{0, 1, 0}))
	require.NoError(t, s.Reset(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The store remains usable after a reset
	require.NoError(t, s.Put(ctx, 3, "c", []float32{0, 0, 1}))
	hits, err := s.Query(ctx, []float32{0, 0, 1}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(3), hits[0].MemoryID)
}
