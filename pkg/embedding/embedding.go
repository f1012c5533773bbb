package embedding

import (
	"context"
	"math"
)

// Provider generates fixed-dimension dense embeddings for text. It is
// the only part of the system that may touch the network; callers must
// treat every method as fallible and degrade to the local TF-IDF path.
type Provider interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed embedding dimension for this provider.
	Dimensions() int
}

// Cosine computes the cosine similarity of two dense vectors.
// It is 0 when either vector has zero norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
