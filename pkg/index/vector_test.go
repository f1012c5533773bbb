package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSelfSimilarity(t *testing.T) {
	v := Vector{"cat": 0.8, "mat": 1.2, "sat": 0.4}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosineSymmetry(t *testing.T) {
	a := Vector{"cat": 1.0, "dog": 0.5}
	b := Vector{"dog": 0.7, "park": 0.3}
	assert.InDelta(t, Cosine(a, b), Cosine(b, a), 1e-9)
}

func TestCosineDisjointVectors(t *testing.T) {
	a := Vector{"cat": 1.0}
	b := Vector{"dog": 1.0}
	assert.Equal(t, 0.0, Cosine(a, b))
}

func TestCosineZeroNorm(t *testing.T) {
	a := Vector{"cat": 1.0}
	assert.Equal(t, 0.0, Cosine(a, Vector{}))
	assert.Equal(t, 0.0, Cosine(Vector{}, a))
	assert.Equal(t, 0.0, Cosine(Vector{}, Vector{}))
}

func TestVectorMarshalRoundTrip(t *testing.T) {
	v := Vector{"编程": 1.5, "cat": 0.25}
	data, err := v.Marshal()
	require.NoError(t, err)
	assert.Equal(t, v, UnmarshalVector(data))
}

func TestUnmarshalVectorCorrupt(t *testing.T) {
	// A corrupted row degrades to an empty vector instead of failing.
	assert.Empty(t, UnmarshalVector([]byte("not a vector")))
	assert.Empty(t, UnmarshalVector(nil))
	assert.Empty(t, UnmarshalVector([]byte("null")))
}
