package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexlapax/aimem/pkg/store"
)

// defaultLimit bounds result sets when the caller passes none.
const defaultLimit = 100

// SearchFullText matches the query against the FTS5 index. The query
// is prefix-matched. FTS5 rank is negative, so it is negated to get an
// ascending-is-worse match rank, and results are ordered by
// match rank x importance x decay descending. Malformed query syntax
// surfaces as an error; callers recover by falling back to substring
// search.
func (s *Store) SearchFullText(ctx context.Context, query store.SearchQuery) ([]store.ScoredMemory, error) {
	builder := strings.Builder{}
	builder.WriteString(`
		SELECT m.*, (memories_fts.rank * -1) AS match_rank
		FROM memories_fts
		JOIN memories m ON m.id = memories_fts.rowid
		WHERE memories_fts MATCH (? || '*')
		AND m.importance >= ?`)
	params := []interface{}{query.Text, query.MinImportance}

	if query.Category != "" {
		builder.WriteString(` AND m.category = ?`)
		params = append(params, query.Category)
	}

	builder.WriteString(` ORDER BY (memories_fts.rank * -1) * m.importance * m.decay_score DESC LIMIT ?`)
	params = append(params, limitOrDefault(query.Limit))

	var results []store.ScoredMemory
	if err := s.db.SelectContext(ctx, &results, builder.String(), params...); err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	return results, nil
}

// SearchSubstring matches the query as a substring of content, ordered
// by importance x decay descending. This is the fallback when FTS
// rejects the query or finds nothing; it also handles scripts the FTS
// tokenizer splits poorly.
func (s *Store) SearchSubstring(ctx context.Context, query store.SearchQuery) ([]store.ScoredMemory, error) {
	builder := strings.Builder{}
	builder.WriteString(`
		SELECT m.*, 0 AS match_rank
		FROM memories m
		WHERE m.content LIKE ?
		AND m.importance >= ?`)
	params := []interface{}{"%" + query.Text + "%", query.MinImportance}

	if query.Category != "" {
		builder.WriteString(` AND m.category = ?`)
		params = append(params, query.Category)
	}

	builder.WriteString(` ORDER BY m.importance * m.decay_score DESC LIMIT ?`)
	params = append(params, limitOrDefault(query.Limit))

	var results []store.ScoredMemory
	if err := s.db.SelectContext(ctx, &results, builder.String(), params...); err != nil {
		return nil, fmt.Errorf("substring search failed: %w", err)
	}
	return results, nil
}

// ListByRank returns filtered memories ordered by importance x decay
// descending; used when no query text is given.
func (s *Store) ListByRank(ctx context.Context, query store.SearchQuery) ([]store.ScoredMemory, error) {
	builder := strings.Builder{}
	builder.WriteString(`
		SELECT m.*, 0 AS match_rank
		FROM memories m
		WHERE m.importance >= ?`)
	params := []interface{}{query.MinImportance}

	if query.Category != "" {
		builder.WriteString(` AND m.category = ?`)
		params = append(params, query.Category)
	}

	builder.WriteString(` ORDER BY m.importance * m.decay_score DESC LIMIT ?`)
	params = append(params, limitOrDefault(query.Limit))

	var results []store.ScoredMemory
	if err := s.db.SelectContext(ctx, &results, builder.String(), params...); err != nil {
		return nil, fmt.Errorf("rank listing failed: %w", err)
	}
	return results, nil
}

// CandidatesByToken returns up to limit memories whose content
// contains the token. Recall-oriented: used only to narrow the
// deduplication candidate pool.
func (s *Store) CandidatesByToken(ctx context.Context, token string, limit int) ([]store.MemoryRecord, error) {
	var records []store.MemoryRecord
	err := s.db.SelectContext(ctx, &records,
		`SELECT * FROM memories WHERE content LIKE ? LIMIT ?`,
		"%"+token+"%", limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("candidate lookup failed: %w", err)
	}
	return records, nil
}

func limitOrDefault(limit int) int {
	if limit > 0 {
		return limit
	}
	return defaultLimit
}
