package memory_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlapax/aimem/pkg/embedding"
	"github.com/lexlapax/aimem/pkg/embedding/adapters/mock"
	aimemerrors "github.com/lexlapax/aimem/pkg/errors"
	"github.com/lexlapax/aimem/pkg/memory"
	"github.com/lexlapax/aimem/pkg/store"
	"github.com/lexlapax/aimem/pkg/store/chromem"
	"github.com/lexlapax/aimem/pkg/store/sqlite"
)

// newTestEngine builds an engine over a fresh on-disk database.
func newTestEngine(t *testing.T, provider embedding.Provider, dense store.DenseStore) *memory.Engine {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "memories.db"))
	if errors.Is(err, sqlite.ErrFTS5Unavailable) {
		t.Skip("requires -tags sqlite_fts5")
	}
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := memory.NewEngine(context.Background(), st, provider, dense, memory.DefaultConfig())
	require.NoError(t, err)
	return engine
}

func newDenseStore(t *testing.T) *chromem.Store {
	t.Helper()
	dense, err := chromem.Open("", "memories")
	require.NoError(t, err)
	return dense
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	result, err := engine.Add(ctx, "Alice prefers tea over coffee", memory.AddOptions{
		Tags: []string{"preferences"},
	})
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	assert.Greater(t, result.Memory.ID, int64(0))
	assert.Equal(t, "general", result.Memory.Category)
	assert.Equal(t, memory.DefaultImportance, result.Memory.Importance)
	assert.Equal(t, 1.0, result.Memory.DecayScore)

	fetched, err := engine.Get(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice prefers tea over coffee", fetched.Content)
	assert.Equal(t, store.TagList{"preferences"}, fetched.Tags)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "   ", memory.AddOptions{})
	assert.ErrorIs(t, err, aimemerrors.ErrInvalidInput)

	_, err = engine.Add(ctx, "valid content", memory.AddOptions{Importance: 1.5})
	assert.ErrorIs(t, err, aimemerrors.ErrInvalidInput)

	_, err = engine.Add(ctx, "valid content", memory.AddOptions{Importance: -0.1})
	assert.ErrorIs(t, err, aimemerrors.ErrInvalidInput)
}

func TestAddDuplicateRaisesImportance(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	first, err := engine.Add(ctx, "I love coding", memory.AddOptions{Importance: 0.5})
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := engine.Add(ctx, "I love coding!!", memory.AddOptions{Importance: 0.9})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.Greater(t, second.Similarity, 0.7)
	assert.Equal(t, 0.9, second.Memory.Importance)

	fetched, err := engine.Get(ctx, first.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.9, fetched.Importance)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMemories)
	assert.Equal(t, 1, stats.IndexedDocs)
}

func TestAddDuplicateNeverLowersImportance(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	first, err := engine.Add(ctx, "the backup job runs at midnight", memory.AddOptions{Importance: 0.8})
	require.NoError(t, err)

	second, err := engine.Add(ctx, "the backup job runs at midnight", memory.AddOptions{Importance: 0.2})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 0.8, second.Memory.Importance)

	fetched, err := engine.Get(ctx, first.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.8, fetched.Importance)
}

func TestSemanticSearchRanking(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)

	results, err := engine.SemanticSearch(ctx, "cat", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the cat sat on the mat", results[0].Memory.Content)
	assert.Equal(t, memory.EngineTFIDF, results[0].Engine)
	assert.Greater(t, results[0].Similarity, 0.0)
}

func TestSemanticSearchMinScoreFiltersUnrelated(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "quantum physics lecture notes", memory.AddOptions{})
	require.NoError(t, err)

	results, err := engine.SemanticSearch(ctx, "banana smoothie recipe", memory.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "something stored", memory.AddOptions{})
	require.NoError(t, err)

	// Stop words tokenize to nothing
	results, err := engine.SemanticSearch(ctx, "the and of", memory.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.SemanticSearchAuto(ctx, "   ", memory.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchSynonymExpansion(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "wrote code for the side project all evening", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "watered the garden plants", memory.AddOptions{})
	require.NoError(t, err)

	// "coding" expands to the group containing "code"
	results, err := engine.SemanticSearch(ctx, "coding", memory.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "wrote code for the side project all evening", results[0].Memory.Content)
}

func TestLexicalSearchFullText(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "deployment checklist for the staging cluster", memory.AddOptions{Importance: 0.9})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "grocery list for the weekend", memory.AddOptions{})
	require.NoError(t, err)

	results, err := engine.Search(ctx, "deployment", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, memory.EngineFullText, results[0].Engine)
	assert.Contains(t, results[0].Memory.Content, "deployment")
}

func TestLexicalSearchSubstringFallback(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "config key server(timeout) controls retries", memory.AddOptions{})
	require.NoError(t, err)

	// Parens are invalid match syntax; the substring path serves it
	results, err := engine.Search(ctx, "server(timeout)", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, memory.EngineSubstring, results[0].Engine)
}

func TestLexicalSearchEmptyQueryListsByRank(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "low importance note", memory.AddOptions{Importance: 0.2})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "critical production credential location", memory.AddOptions{Importance: 0.9})
	require.NoError(t, err)

	results, err := engine.Search(ctx, "", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, memory.EngineRank, results[0].Engine)
	assert.Equal(t, "critical production credential location", results[0].Memory.Content)

	filtered, err := engine.Search(ctx, "", memory.SearchOptions{MinImportance: 0.5})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 0.9, filtered[0].Memory.Importance)
}

func TestSearchTouchesResults(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	added, err := engine.Add(ctx, "remember to rotate the api keys", memory.AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), added.Memory.AccessCount)

	_, err = engine.Search(ctx, "rotate", memory.SearchOptions{})
	require.NoError(t, err)

	fetched, err := engine.Get(ctx, added.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fetched.AccessCount)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	added, err := engine.Add(ctx, "temporary scratch note", memory.AddOptions{})
	require.NoError(t, err)

	require.NoError(t, engine.Forget(ctx, added.Memory.ID))

	_, err = engine.Get(ctx, added.Memory.ID)
	assert.ErrorIs(t, err, aimemerrors.ErrNotFound)

	assert.ErrorIs(t, engine.Forget(ctx, added.Memory.ID), aimemerrors.ErrNotFound)

	// Index statistics stay stale until the next rebuild
	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalMemories)
	assert.Equal(t, 1, stats.IndexedDocs)
}

func TestSetImportance(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	added, err := engine.Add(ctx, "adjustable memory", memory.AddOptions{})
	require.NoError(t, err)

	require.NoError(t, engine.SetImportance(ctx, added.Memory.ID, 0.95))
	fetched, err := engine.Get(ctx, added.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.95, fetched.Importance)

	assert.ErrorIs(t, engine.SetImportance(ctx, added.Memory.ID, 2), aimemerrors.ErrInvalidInput)
	assert.ErrorIs(t, engine.SetImportance(ctx, 9999, 0.5), aimemerrors.ErrNotFound)
}

func TestAddExtracted(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	results, err := engine.AddExtracted(ctx, []memory.ExtractedMemory{
		{Content: "user works at a robotics startup", Category: "fact", Importance: 0.7},
		{Content: "user works at a robotics startup", Category: "fact", Importance: 0.7},
		{Content: "user dislikes morning meetings", Category: "preference", Importance: 0.6},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results[0].Duplicate)
	assert.True(t, results[1].Duplicate)
	assert.False(t, results[2].Duplicate)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMemories)
}

func TestEngineRestoresIndexState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memories.db")

	st, err := sqlite.Open(path)
	require.NoError(t, err)
	engine, err := memory.NewEngine(ctx, st, nil, nil, memory.DefaultConfig())
	require.NoError(t, err)
	_, err = engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = sqlite.Open(path)
	require.NoError(t, err)
	defer st.Close()
	reopened, err := memory.NewEngine(ctx, st, nil, nil, memory.DefaultConfig())
	require.NoError(t, err)

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IndexedDocs)

	results, err := reopened.SemanticSearch(ctx, "cat", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the cat sat on the mat", results[0].Memory.Content)
}

func TestRebuildAfterForget(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	first, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "birds migrate south in winter", memory.AddOptions{})
	require.NoError(t, err)

	require.NoError(t, engine.Forget(ctx, first.Memory.ID))

	result, err := engine.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.False(t, result.Dense)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IndexedDocs)

	results, err := engine.SemanticSearch(ctx, "cat", memory.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchAutoDense(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider(
		mock.WithEmbedding("the cat sat on the mat", []float32{1, 0, 0}),
		mock.WithEmbedding("dogs play fetch in the park", []float32{0, 1, 0}),
		mock.WithEmbedding("feline", []float32{0.9, 0.1, 0}),
	)
	dense := newDenseStore(t)
	engine := newTestEngine(t, provider, dense)

	_, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)

	// "feline" shares no TF-IDF term with either memory, only the dense
	// strategy can serve it
	results, err := engine.SemanticSearchAuto(ctx, "feline", memory.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, memory.EngineDense, results[0].Engine)
	assert.Equal(t, "the cat sat on the mat", results[0].Memory.Content)
}

func TestSemanticSearchAutoFallsBackWithoutDenseVectors(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider()
	provider.SetShouldError(true)
	dense := newDenseStore(t)
	engine := newTestEngine(t, provider, dense)

	// Adds succeed, the embedding failure only skips the dense vector
	_, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)

	results, err := engine.SemanticSearchAuto(ctx, "cat", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, memory.EngineTFIDF, results[0].Engine)
}

func TestSemanticSearchAutoFallsBackOnProviderFailure(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider(
		mock.WithEmbedding("the cat sat on the mat", []float32{1, 0, 0}),
	)
	dense := newDenseStore(t)
	engine := newTestEngine(t, provider, dense)

	_, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)

	provider.SetShouldError(true)
	results, err := engine.SemanticSearchAuto(ctx, "cat", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, memory.EngineTFIDF, results[0].Engine)
}

func TestRebuildDense(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider()
	dense := newDenseStore(t)
	engine := newTestEngine(t, provider, dense)

	_, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)

	result, err := engine.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.True(t, result.Dense)

	count, err := dense.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRebuildDenseFailurePreservesOldVectors(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider()
	dense := newDenseStore(t)
	engine := newTestEngine(t, provider, dense)

	_, err := engine.Add(ctx, "the cat sat on the mat", memory.AddOptions{})
	require.NoError(t, err)
	_, err = engine.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)

	provider.SetShouldError(true)
	result, err := engine.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.False(t, result.Dense)

	// Embeddings are fetched before the old dense state is dropped
	count, err := dense.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEntityLifecycle(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	added, err := engine.Add(ctx, "met alice at the conference", memory.AddOptions{})
	require.NoError(t, err)

	entity, err := engine.AddEntity(ctx, "alice", "person", map[string]interface{}{"city": "Berlin"})
	require.NoError(t, err)
	assert.Greater(t, entity.ID, int64(0))

	// Upsert by name keeps the id and merges the update
	updated, err := engine.AddEntity(ctx, "alice", "person", map[string]interface{}{"city": "Munich"})
	require.NoError(t, err)
	assert.Equal(t, entity.ID, updated.ID)
	assert.Equal(t, "Munich", updated.Attributes["city"])

	require.NoError(t, engine.LinkMemoryEntity(ctx, added.Memory.ID, "alice"))
	// Linking the same pair twice changes nothing
	require.NoError(t, engine.LinkMemoryEntity(ctx, added.Memory.ID, "alice"))

	linked, err := engine.MemoryEntities(ctx, added.Memory.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "alice", linked[0].Name)

	err = engine.LinkMemoryEntity(ctx, added.Memory.ID, "nobody")
	assert.ErrorIs(t, err, aimemerrors.ErrEntityNotFound)

	_, err = engine.GetEntity(ctx, "nobody")
	assert.ErrorIs(t, err, aimemerrors.ErrEntityNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newTestEngine(t, nil, nil)

	_, err := source.Add(ctx, "the cat sat on the mat", memory.AddOptions{Importance: 0.8, Tags: []string{"animals"}})
	require.NoError(t, err)
	_, err = source.Add(ctx, "dogs play fetch in the park", memory.AddOptions{})
	require.NoError(t, err)
	_, err = source.AddEntity(ctx, "alice", "person", nil)
	require.NoError(t, err)

	snapshot, err := source.Export(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.SnapshotID)
	assert.Len(t, snapshot.Memories, 2)
	assert.Len(t, snapshot.Entities, 1)

	target := newTestEngine(t, nil, nil)
	_, err = target.Add(ctx, "the cat sat on the mat!", memory.AddOptions{})
	require.NoError(t, err)

	result, err := target.Import(ctx, snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Entities)

	stats, err := target.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMemories)
	assert.Equal(t, 2, stats.IndexedDocs)
	assert.Equal(t, 1, stats.TotalEntities)

	results, err := target.SemanticSearch(ctx, "dogs", memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dogs play fetch in the park", results[0].Memory.Content)
}

func TestApplyDecaySkipsFreshMemories(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	_, err := engine.Add(ctx, "freshly stored memory", memory.AddOptions{})
	require.NoError(t, err)

	affected, err := engine.ApplyDecay(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}
