package memory

import (
	"context"

	"github.com/lexlapax/aimem/pkg/index"
	"github.com/lexlapax/aimem/pkg/store"
)

const (
	// maxSampleTokens is how many tokens from new content are used to
	// prefilter candidates.
	maxSampleTokens = 5

	// maxCandidatesPerToken caps the candidate pool per sample token.
	maxCandidatesPerToken = 50
)

// jaccard computes the Jaccard similarity of two token sets. Two empty
// sets are defined as similarity 1.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for term := range a {
		if _, ok := b[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// findDuplicate looks for an existing memory whose token set is
// Jaccard-similar to the new content at or above the configured
// threshold. Candidates are narrowed with a substring lookup on a few
// sample tokens so imports do not devolve into full scans. Among
// candidates clearing the threshold, the highest similarity wins, with
// the lowest id as tie-break, so the outcome is deterministic.
func (e *Engine) findDuplicate(ctx context.Context, content string) (*store.MemoryRecord, float64, error) {
	tokens := index.Tokenize(content)
	if len(tokens) == 0 {
		return nil, 0, nil
	}
	contentSet := make(map[string]struct{}, len(tokens))

	// Unique sample tokens in first-seen order keep the prefilter
	// deterministic.
	var samples []string
	for _, token := range tokens {
		if _, ok := contentSet[token]; !ok && len(samples) < maxSampleTokens {
			samples = append(samples, token)
		}
		contentSet[token] = struct{}{}
	}

	seen := make(map[int64]struct{})
	var candidates []store.MemoryRecord
	for _, token := range samples {
		rows, err := e.store.CandidatesByToken(ctx, token, maxCandidatesPerToken)
		if err != nil {
			return nil, 0, err
		}
		for _, row := range rows {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			candidates = append(candidates, row)
		}
	}

	var best *store.MemoryRecord
	var bestSimilarity float64
	for i := range candidates {
		similarity := jaccard(contentSet, index.TokenSet(candidates[i].Content))
		if similarity < e.config.DedupThreshold {
			continue
		}
		if best == nil ||
			similarity > bestSimilarity ||
			(similarity == bestSimilarity && candidates[i].ID < best.ID) {
			best = &candidates[i]
			bestSimilarity = similarity
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, round3(bestSimilarity), nil
}
