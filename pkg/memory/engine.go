package memory

import (
	"context"
	"strings"

	"github.com/lexlapax/aimem/pkg/embedding"
	aimemerrors "github.com/lexlapax/aimem/pkg/errors"
	"github.com/lexlapax/aimem/pkg/index"
	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/store"
)

// DefaultImportance is assigned when a caller does not specify one.
const DefaultImportance = 0.5

// Config contains configuration options for the memory engine.
type Config struct {
	// DedupThreshold is the Jaccard similarity at or above which new
	// content is treated as a duplicate of an existing memory
	DedupThreshold float64

	// DefaultLimit is the result limit applied when a caller passes none
	DefaultLimit int

	// MinScore is the default minimum cosine similarity for semantic results
	MinScore float64

	// DecayTiers is the importance-tiered decay schedule
	DecayTiers []store.DecayTier
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DedupThreshold: 0.7,
		DefaultLimit:   10,
		MinScore:       0.05,
		DecayTiers:     DefaultDecayTiers(),
	}
}

// Engine composes the store, the TF-IDF index and the optional dense
// embedding provider into the public memory operations. It owns the
// index instance: the statistics are loaded once at construction and
// flushed through the same transaction as each write.
//
// The engine is designed for single-process use; the in-memory index
// statistics are not synchronized across concurrent engine instances.
type Engine struct {
	store    store.Store
	provider embedding.Provider
	dense    store.DenseStore
	idx      *index.Index
	config   Config
}

// NewEngine creates a memory engine over the given store. provider and
// dense may both be nil, in which case semantic search always uses the
// local TF-IDF path.
func NewEngine(ctx context.Context, st store.Store, provider embedding.Provider, dense store.DenseStore, config Config) (*Engine, error) {
	if config.DedupThreshold <= 0 {
		config.DedupThreshold = 0.7
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if config.MinScore <= 0 {
		config.MinScore = 0.05
	}
	if len(config.DecayTiers) == 0 {
		config.DecayTiers = DefaultDecayTiers()
	}

	state, err := st.LoadIndexState(ctx)
	if err != nil {
		return nil, aimemerrors.Wrap(err, "failed to load index state")
	}
	idx, err := index.Restore(state)
	if err != nil {
		// A corrupted index blob degrades to an empty index; a rebuild
		// restores meaningful statistics.
		log.Warn("Corrupted TF-IDF index state, starting empty", "error", err)
		idx = index.NewIndex()
	}

	log.Debug("Memory engine initialized",
		"indexed_docs", idx.DocCount(),
		"dense_retrieval", provider != nil && dense != nil,
	)

	return &Engine{
		store:    st,
		provider: provider,
		dense:    dense,
		idx:      idx,
		config:   config,
	}, nil
}

// AddOptions carries the optional attributes of a new memory.
type AddOptions struct {
	// Category tags the memory; empty means "general"
	Category string

	// Importance is in [0, 1]; zero means DefaultImportance
	Importance float64

	// Source optionally records where the memory came from
	Source string

	// Tags is an ordered list of tag strings
	Tags []string
}

// AddResult is the outcome of an Add call.
type AddResult struct {
	// Memory is the stored record: newly created, or the existing one
	// when Duplicate is set
	Memory *store.MemoryRecord

	// Duplicate indicates the content matched an existing memory
	Duplicate bool

	// Similarity is the Jaccard similarity to the existing memory when
	// Duplicate is set
	Similarity float64
}

// Add stores one memory, deduplicating against existing content. On a
// duplicate no new record is created; if the new call's importance
// exceeds the stored one, the stored importance is raised. The record,
// its sparse vector and the updated index statistics are persisted in
// one storage transaction. When a dense provider is configured the
// dense vector is persisted best-effort afterwards: a provider failure
// is logged, never fatal.
func (e *Engine) Add(ctx context.Context, content string, opts AddOptions) (*AddResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, aimemerrors.ErrInvalidInput
	}
	if opts.Importance == 0 {
		opts.Importance = DefaultImportance
	}
	if opts.Importance < 0 || opts.Importance > 1 {
		return nil, aimemerrors.ErrInvalidInput
	}

	existing, similarity, err := e.findDuplicate(ctx, content)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if opts.Importance > existing.Importance {
			if err := e.store.UpdateImportance(ctx, existing.ID, opts.Importance); err != nil {
				return nil, err
			}
			existing.Importance = opts.Importance
		}
		log.DebugContext(ctx, "Duplicate memory",
			"existing_id", existing.ID, "similarity", similarity)
		return &AddResult{Memory: existing, Duplicate: true, Similarity: similarity}, nil
	}

	e.idx.AddDocument(content)
	vector, err := e.idx.Vectorize(content, false).Marshal()
	if err != nil {
		return nil, aimemerrors.Wrap(err, "failed to serialize vector")
	}
	state, err := e.idx.Serialize()
	if err != nil {
		return nil, aimemerrors.Wrap(err, "failed to serialize index state")
	}

	record := &store.MemoryRecord{
		Content:    content,
		Category:   opts.Category,
		Importance: opts.Importance,
		Source:     opts.Source,
		Tags:       store.TagList(opts.Tags),
	}
	if err := e.store.CreateMemory(ctx, record, vector, state); err != nil {
		// The in-memory statistics already include the document; reload
		// the persisted state so they stay consistent with the store.
		e.reloadIndex(ctx)
		return nil, err
	}

	e.persistDenseVector(ctx, record.ID, content)

	return &AddResult{Memory: record}, nil
}

// ExtractedMemory is the candidate tuple shape produced by an external
// rule-based extractor.
type ExtractedMemory struct {
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Importance float64  `json:"importance"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source,omitempty"`
}

// AddExtracted stores a batch of extractor candidates through the
// regular deduplicating Add path.
func (e *Engine) AddExtracted(ctx context.Context, candidates []ExtractedMemory) ([]AddResult, error) {
	results := make([]AddResult, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := e.Add(ctx, candidate.Content, AddOptions{
			Category:   candidate.Category,
			Importance: candidate.Importance,
			Source:     candidate.Source,
			Tags:       candidate.Tags,
		})
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// Get fetches one memory by id.
func (e *Engine) Get(ctx context.Context, id int64) (*store.MemoryRecord, error) {
	return e.store.GetMemory(ctx, id)
}

// Forget removes a memory and its derived vectors. The TF-IDF
// statistics keep counting the removed document until the next
// rebuild.
func (e *Engine) Forget(ctx context.Context, id int64) error {
	if err := e.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	if e.dense != nil {
		if err := e.dense.Delete(ctx, id); err != nil {
			log.WarnContext(ctx, "Failed to delete dense vector", "memory_id", id, "error", err)
		}
	}
	return nil
}

// SetImportance updates a memory's importance.
func (e *Engine) SetImportance(ctx context.Context, id int64, importance float64) error {
	if importance < 0 || importance > 1 {
		return aimemerrors.ErrInvalidInput
	}
	return e.store.UpdateImportance(ctx, id, importance)
}

// Stats summarizes the store contents and the in-memory index.
type Stats struct {
	TotalMemories  int                   `json:"total_memories"`
	ByCategory     []store.CategoryCount `json:"by_category"`
	TotalEntities  int                   `json:"total_entities"`
	IndexedDocs    int                   `json:"indexed_docs"`
	VocabularySize int                   `json:"vocabulary_size"`
}

// Stats returns memory and entity counts alongside the index
// statistics. After a Forget the indexed document count can exceed the
// stored memory count until the next rebuild.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	total, err := e.store.CountMemories(ctx)
	if err != nil {
		return nil, err
	}
	byCategory, err := e.store.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := e.store.CountEntities(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalMemories:  total,
		ByCategory:     byCategory,
		TotalEntities:  entities,
		IndexedDocs:    e.idx.DocCount(),
		VocabularySize: len(e.idx.Vocabulary()),
	}, nil
}

// persistDenseVector stores the dense embedding for a new memory when
// a provider is configured. Failures degrade to TF-IDF-only retrieval.
func (e *Engine) persistDenseVector(ctx context.Context, id int64, content string) {
	if e.provider == nil || e.dense == nil {
		return
	}
	emb, err := e.provider.Embed(ctx, content)
	if err != nil {
		log.WarnContext(ctx, "Dense embedding failed, TF-IDF remains available",
			"memory_id", id, "error", err)
		return
	}
	if err := e.dense.Put(ctx, id, content, emb); err != nil {
		log.WarnContext(ctx, "Failed to persist dense vector",
			"memory_id", id, "error", err)
	}
}

// reloadIndex restores the in-memory index from the last persisted
// state after a failed write.
func (e *Engine) reloadIndex(ctx context.Context) {
	state, err := e.store.LoadIndexState(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to reload index state", "error", err)
		return
	}
	idx, err := index.Restore(state)
	if err != nil {
		log.ErrorContext(ctx, "Failed to restore index state", "error", err)
		return
	}
	e.idx = idx
}
