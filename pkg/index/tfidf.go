package index

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Index maintains the global TF-IDF statistics: the number of indexed
// documents and the per-term document frequency. It is not safe for
// concurrent mutation; the engine owns a single instance and keeps it
// in sync with the store.
type Index struct {
	docCount int
	df       map[string]int
}

// NewIndex returns an empty TF-IDF index.
func NewIndex() *Index {
	return &Index{df: make(map[string]int)}
}

// AddDocument folds one document into the index statistics. Calling it
// twice for the same text counts the document twice; callers must call
// it exactly once per stored memory.
func (ix *Index) AddDocument(text string) {
	for term := range TokenSet(text) {
		ix.df[term]++
	}
	ix.docCount++
}

// BuildFromDocs discards the current statistics and rebuilds them from
// the given documents. Rebuilds are all-or-nothing: folding in only a
// subset of the corpus would silently skew every similarity score.
func (ix *Index) BuildFromDocs(texts []string) {
	ix.docCount = 0
	ix.df = make(map[string]int)
	for _, text := range texts {
		ix.AddDocument(text)
	}
}

// DocCount returns the number of documents folded into the index.
func (ix *Index) DocCount() int {
	return ix.docCount
}

// DocumentFrequency returns how many documents contain the given term.
func (ix *Index) DocumentFrequency(term string) int {
	return ix.df[term]
}

// Vocabulary returns the sorted set of known terms.
func (ix *Index) Vocabulary() []string {
	terms := make([]string, 0, len(ix.df))
	for term := range ix.df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// idf computes the smoothed inverse document frequency for a term,
// using the index's current statistics. Unknown terms default to a
// document frequency of zero. The +1 smoothing keeps the value
// strictly positive.
func (ix *Index) idf(term string) float64 {
	return math.Log(float64(ix.docCount+1)/float64(ix.df[term]+1)) + 1
}

// Vectorize converts text into a sparse TF-IDF vector. The term
// frequency component is normalized by the maximum raw count in the
// token list. When expandSynonyms is set the token list is widened
// with synonym group-mates before counting; this is meant for queries
// only. Text that tokenizes to nothing yields an empty vector.
func (ix *Index) Vectorize(text string, expandSynonyms bool) Vector {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Vector{}
	}
	if expandSynonyms {
		tokens = ExpandSynonyms(tokens)
	}

	tf := make(map[string]int, len(tokens))
	maxTF := 1
	for _, t := range tokens {
		tf[t]++
		if tf[t] > maxTF {
			maxTF = tf[t]
		}
	}

	vec := make(Vector, len(tf))
	for term, count := range tf {
		normalizedTF := float64(count) / float64(maxTF)
		vec[term] = normalizedTF * ix.idf(term)
	}
	return vec
}

// indexState is the persisted form of the index. The vocabulary is
// derivable from the document frequency map and is not stored.
type indexState struct {
	DocCount int            `json:"doc_count"`
	DF       map[string]int `json:"df"`
}

// Serialize encodes the index statistics for storage.
func (ix *Index) Serialize() ([]byte, error) {
	return json.Marshal(indexState{DocCount: ix.docCount, DF: ix.df})
}

// Restore decodes index statistics previously produced by Serialize.
// Empty input yields a fresh index.
func Restore(data []byte) (*Index, error) {
	if len(data) == 0 {
		return NewIndex(), nil
	}
	var state indexState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode index state: %w", err)
	}
	ix := NewIndex()
	ix.docCount = state.DocCount
	if state.DF != nil {
		ix.df = state.DF
	}
	return ix, nil
}
