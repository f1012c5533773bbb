package index

import (
	"encoding/json"
	"math"
)

// Vector is a sparse TF-IDF vector: term -> non-negative weight.
// Absent terms implicitly weigh zero.
type Vector map[string]float64

// Cosine computes the cosine similarity of two sparse vectors.
// It is 0 when either vector has zero norm.
func Cosine(a, b Vector) float64 {
	var dot, normA, normB float64
	for term, wa := range a {
		normA += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Marshal serializes the vector for storage.
func (v Vector) Marshal() ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalVector restores a stored sparse vector. Corrupted input
// degrades to an empty vector rather than failing, so one bad row
// cannot abort a whole search.
func UnmarshalVector(data []byte) Vector {
	if len(data) == 0 {
		return Vector{}
	}
	var v Vector
	if err := json.Unmarshal(data, &v); err != nil || v == nil {
		return Vector{}
	}
	return v
}
