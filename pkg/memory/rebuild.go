package memory

import (
	"context"

	aimemerrors "github.com/lexlapax/aimem/pkg/errors"
	"github.com/lexlapax/aimem/pkg/index"
	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/store"
)

// RebuildResult reports what a rebuild covered.
type RebuildResult struct {
	// Count is the number of memories reindexed
	Count int `json:"count"`

	// Dense reports whether the dense vectors were rebuilt as well
	Dense bool `json:"dense"`
}

// Rebuild recomputes the TF-IDF index and every sparse vector from the
// full current record set, replacing the old state in one storage
// transaction. A partial rebuild would silently skew every similarity
// score, so it is always all-or-nothing. When a dense provider is
// configured the dense vectors are re-requested in bulk afterwards; a
// failure there is fatal to the dense portion only, the committed
// TF-IDF state remains valid. This is the supported recovery path
// after bulk import or index corruption.
func (e *Engine) Rebuild(ctx context.Context) (*RebuildResult, error) {
	records, err := e.store.ListMemories(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Content
	}

	fresh := index.NewIndex()
	fresh.BuildFromDocs(texts)

	vectors := make(map[int64][]byte, len(records))
	for _, record := range records {
		vector, err := fresh.Vectorize(record.Content, false).Marshal()
		if err != nil {
			return nil, aimemerrors.Wrap(err, "failed to serialize vector for memory %d", record.ID)
		}
		vectors[record.ID] = vector
	}

	state, err := fresh.Serialize()
	if err != nil {
		return nil, aimemerrors.Wrap(err, "failed to serialize index state")
	}

	if err := e.store.ReplaceVectors(ctx, vectors, state); err != nil {
		return nil, err
	}
	e.idx = fresh

	result := &RebuildResult{Count: len(records)}
	log.InfoContext(ctx, "Rebuilt TF-IDF index", "memories", result.Count)

	if e.provider != nil && e.dense != nil && len(records) > 0 {
		if err := e.rebuildDense(ctx, records, texts); err != nil {
			log.ErrorContext(ctx, "Dense vector rebuild failed, TF-IDF index remains valid",
				"error", err)
			return result, nil
		}
		result.Dense = true
	}

	return result, nil
}

// rebuildDense re-embeds every record and swaps the dense store
// contents. Embeddings are fetched before the old vectors are dropped
// so a provider failure leaves the previous dense state intact.
func (e *Engine) rebuildDense(ctx context.Context, records []store.MemoryRecord, texts []string) error {
	embeddings, err := e.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(records) {
		return aimemerrors.Wrap(aimemerrors.ErrProviderUnavailable,
			"provider returned %d embeddings for %d records", len(embeddings), len(records))
	}

	if err := e.dense.Reset(ctx); err != nil {
		return err
	}
	for i, record := range records {
		if err := e.dense.Put(ctx, record.ID, record.Content, embeddings[i]); err != nil {
			return err
		}
	}

	log.InfoContext(ctx, "Rebuilt dense vectors", "memories", len(records))
	return nil
}
