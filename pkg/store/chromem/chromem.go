package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/lexlapax/aimem/pkg/store"
)

// Store implements store.DenseStore on top of a chromem-go collection.
// Embeddings are always computed by the engine's provider and passed
// in precomputed; the collection never calls out to an embedding API
// itself.
type Store struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection
	name       string
}

// errPrecomputedOnly guards against chromem trying to embed text itself.
func errPrecomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("dense store requires precomputed embeddings")
}

// Open creates a dense vector store. With a non-empty path the
// collection is persisted on disk; otherwise it lives in memory only
// (useful for tests).
func Open(path, collection string) (*Store, error) {
	var db *chromemgo.DB
	var err error
	if path != "" {
		db, err = chromemgo.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open dense vector store: %w", err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	col, err := db.GetOrCreateCollection(collection, nil, errPrecomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open dense vector collection: %w", err)
	}

	return &Store{db: db, collection: col, name: collection}, nil
}

// Put stores the embedding for a memory, replacing any previous one.
func (s *Store) Put(ctx context.Context, memoryID int64, content string, embedding []float32) error {
	err := s.collection.AddDocument(ctx, chromemgo.Document{
		ID:        strconv.FormatInt(memoryID, 10),
		Content:   content,
		Embedding: embedding,
	})
	if err != nil {
		return fmt.Errorf("failed to store dense vector for memory %d: %w", memoryID, err)
	}
	return nil
}

// Delete removes the embedding for a memory if present.
func (s *Store) Delete(ctx context.Context, memoryID int64) error {
	err := s.collection.Delete(ctx, nil, nil, strconv.FormatInt(memoryID, 10))
	if err != nil {
		return fmt.Errorf("failed to delete dense vector for memory %d: %w", memoryID, err)
	}
	return nil
}

// Query returns up to limit hits ordered by descending similarity.
func (s *Store) Query(ctx context.Context, embedding []float32, limit int) ([]store.DenseHit, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("dense vector query failed: %w", err)
	}

	hits := make([]store.DenseHit, 0, len(results))
	for _, result := range results {
		id, err := strconv.ParseInt(result.ID, 10, 64)
		if err != nil {
			// A foreign document id cannot be joined back to a memory;
			// skip it rather than failing the whole query.
			continue
		}
		hits = append(hits, store.DenseHit{MemoryID: id, Similarity: float64(result.Similarity)})
	}
	return hits, nil
}

// Count returns the number of stored dense vectors.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Reset drops every stored dense vector; used by rebuild.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to reset dense vector store: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(s.name, nil, errPrecomputedOnly)
	if err != nil {
		return fmt.Errorf("failed to recreate dense vector collection: %w", err)
	}
	s.collection = col
	return nil
}
