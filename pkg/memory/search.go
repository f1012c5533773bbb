package memory

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/lexlapax/aimem/pkg/index"
	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/store"
)

// EngineKind identifies which retrieval strategy served a result set.
type EngineKind string

// Retrieval strategies.
const (
	// EngineFullText is the FTS match path of lexical search
	EngineFullText EngineKind = "fts"

	// EngineSubstring is the substring fallback of lexical search
	EngineSubstring EngineKind = "like"

	// EngineRank is the no-query listing ordered by importance x decay
	EngineRank EngineKind = "rank"

	// EngineTFIDF is the sparse-vector semantic path
	EngineTFIDF EngineKind = "tfidf"

	// EngineDense is the dense-vector semantic path
	EngineDense EngineKind = "dense"
)

// SearchOptions filters and bounds a search.
type SearchOptions struct {
	// Limit is the maximum number of results; 0 means the engine default
	Limit int

	// Category restricts results to one category when non-empty
	Category string

	// MinImportance is the importance floor
	MinImportance float64

	// MinScore is the minimum cosine similarity for semantic results;
	// 0 means the engine default
	MinScore float64
}

// SearchResult is one retrieved memory with its scores. Similarity is
// only set on semantic results.
type SearchResult struct {
	Memory     store.MemoryRecord `json:"memory"`
	Similarity float64            `json:"similarity,omitempty"`
	Score      float64            `json:"score"`
	Engine     EngineKind         `json:"engine"`
}

// Search is the lexical retrieval path. A well-formed query goes
// through the full-text index ordered by match rank x importance x
// decay; a rejected query or an empty match set falls back to
// substring containment ordered by importance x decay; an empty query
// lists records above the importance floor by the same order. Every
// returned record has its last_accessed and access_count updated.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	q := store.SearchQuery{
		Text:          strings.TrimSpace(query),
		Category:      opts.Category,
		MinImportance: opts.MinImportance,
		Limit:         e.limitOrDefault(opts.Limit),
	}

	if q.Text == "" {
		rows, err := e.store.ListByRank(ctx, q)
		if err != nil {
			return nil, err
		}
		return e.finishLexical(ctx, rows, EngineRank)
	}

	rows, err := e.store.SearchFullText(ctx, q)
	if err != nil {
		// Malformed match syntax is recovered locally, never surfaced.
		log.DebugContext(ctx, "Full-text query rejected, falling back to substring",
			"query", q.Text, "error", err)
	} else if len(rows) > 0 {
		return e.finishLexical(ctx, rows, EngineFullText)
	}

	rows, err = e.store.SearchSubstring(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.finishLexical(ctx, rows, EngineSubstring)
}

// finishLexical applies the read side effects and shapes lexical rows
// into results.
func (e *Engine) finishLexical(ctx context.Context, rows []store.ScoredMemory, kind EngineKind) ([]SearchResult, error) {
	results := make([]SearchResult, len(rows))
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		results[i] = SearchResult{
			Memory: row.MemoryRecord,
			Score:  round3(lexicalScore(row, kind)),
			Engine: kind,
		}
	}
	if err := e.store.TouchMemories(ctx, ids); err != nil {
		return nil, err
	}
	return results, nil
}

// lexicalScore is the ordering score the store applied, recomputed for
// presentation.
func lexicalScore(row store.ScoredMemory, kind EngineKind) float64 {
	if kind == EngineFullText {
		return row.Rank * row.Importance * row.DecayScore
	}
	return row.Importance * row.DecayScore
}

// SemanticSearch is the TF-IDF retrieval path. The query is vectorized
// with synonym expansion; a query that tokenizes to nothing returns no
// results. Stored sparse vectors passing the category/importance
// filter are scored by cosine similarity blended with importance and
// decay, floored at the minimum similarity, ordered by blended score.
func (e *Engine) SemanticSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	queryVec := e.idx.Vectorize(query, true)
	if len(queryVec) == 0 {
		return nil, nil
	}

	rows, err := e.store.LoadVectors(ctx, opts.Category, opts.MinImportance)
	if err != nil {
		return nil, err
	}

	minScore := e.minScoreOrDefault(opts.MinScore)
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		similarity := index.Cosine(queryVec, index.UnmarshalVector(row.VectorData))
		if similarity < minScore {
			continue
		}
		results = append(results, SearchResult{
			Memory:     row.MemoryRecord,
			Similarity: round3(similarity),
			Score:      round3(blendScore(similarity, row.Importance, row.DecayScore)),
			Engine:     EngineTFIDF,
		})
	}

	return e.finishSemantic(ctx, results, e.limitOrDefault(opts.Limit))
}

// SemanticSearchAuto prefers the dense retrieval strategy when a
// provider is configured and dense vectors exist, and degrades
// transparently to the TF-IDF path when the provider fails or nothing
// is embedded. The Engine field of each result reports which strategy
// served it.
func (e *Engine) SemanticSearchAuto(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	if e.provider != nil && e.dense != nil {
		results, err := e.denseSearch(ctx, query, opts)
		if err != nil {
			log.WarnContext(ctx, "Dense search failed, falling back to TF-IDF",
				"error", err)
		} else if results != nil {
			return results, nil
		}
	}

	return e.SemanticSearch(ctx, query, opts)
}

// denseSearch runs the dense strategy. It returns (nil, nil) when the
// strategy is not applicable (no dense vectors stored).
func (e *Engine) denseSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	count, err := e.dense.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	queryEmb, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := e.dense.Query(ctx, queryEmb, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.MemoryID
	}
	records, err := e.store.GetMemoriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	minScore := e.minScoreOrDefault(opts.MinScore)
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		record, ok := records[hit.MemoryID]
		if !ok {
			// Stale dense row for a forgotten memory.
			continue
		}
		if opts.Category != "" && record.Category != opts.Category {
			continue
		}
		if record.Importance < opts.MinImportance {
			continue
		}
		if hit.Similarity < minScore {
			continue
		}
		results = append(results, SearchResult{
			Memory:     *record,
			Similarity: round3(hit.Similarity),
			Score:      round3(blendScore(hit.Similarity, record.Importance, record.DecayScore)),
			Engine:     EngineDense,
		})
	}

	return e.finishSemantic(ctx, results, e.limitOrDefault(opts.Limit))
}

// finishSemantic orders by blended score (ties broken by lowest id),
// truncates, and applies the read side effects.
func (e *Engine) finishSemantic(ctx context.Context, results []SearchResult, limit int) ([]SearchResult, error) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	ids := make([]int64, len(results))
	for i, result := range results {
		ids[i] = result.Memory.ID
	}
	if err := e.store.TouchMemories(ctx, ids); err != nil {
		return nil, err
	}
	return results, nil
}

// blendScore combines similarity with the record's importance and
// freshness: similarity x (0.5 + 0.5 x importance) x decay.
func blendScore(similarity, importance, decayScore float64) float64 {
	return similarity * (0.5 + 0.5*importance) * decayScore
}

func (e *Engine) limitOrDefault(limit int) int {
	if limit > 0 {
		return limit
	}
	return e.config.DefaultLimit
}

func (e *Engine) minScoreOrDefault(minScore float64) float64 {
	if minScore > 0 {
		return minScore
	}
	return e.config.MinScore
}

// round3 rounds to three decimals for presentation.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
