package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/store"
)

// Snapshot is the export/import boundary: every memory with its full
// attribute set (tags as a list, not an encoded string) and every
// entity with structured attributes. Derived vectors are not exported;
// they are recomputed on import.
type Snapshot struct {
	SnapshotID string               `json:"snapshot_id"`
	ExportedAt time.Time            `json:"exported_at"`
	Memories   []store.MemoryRecord `json:"memories"`
	Entities   []store.EntityRecord `json:"entities"`
}

// Export captures the full record set as a snapshot.
func (e *Engine) Export(ctx context.Context) (*Snapshot, error) {
	memories, err := e.store.ListMemories(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		SnapshotID: uuid.NewString(),
		ExportedAt: time.Now().UTC(),
		Memories:   memories,
		Entities:   entities,
	}, nil
}

// ImportResult reports what an import did.
type ImportResult struct {
	// Added is the number of newly stored memories
	Added int `json:"added"`

	// Duplicates is the number of snapshot memories that matched
	// existing content
	Duplicates int `json:"duplicates"`

	// Entities is the number of upserted entities
	Entities int `json:"entities"`
}

// Import replays a snapshot through the regular deduplicating Add path
// and upserts its entities, then rebuilds the index so the statistics
// reflect the merged corpus.
func (e *Engine) Import(ctx context.Context, snapshot *Snapshot) (*ImportResult, error) {
	result := &ImportResult{}

	for _, memory := range snapshot.Memories {
		added, err := e.Add(ctx, memory.Content, AddOptions{
			Category:   memory.Category,
			Importance: memory.Importance,
			Source:     memory.Source,
			Tags:       memory.Tags,
		})
		if err != nil {
			return result, err
		}
		if added.Duplicate {
			result.Duplicates++
		} else {
			result.Added++
		}
	}

	for _, entity := range snapshot.Entities {
		if _, err := e.store.UpsertEntity(ctx, entity.Name, entity.Type, entity.Attributes); err != nil {
			return result, err
		}
		result.Entities++
	}

	if _, err := e.Rebuild(ctx); err != nil {
		return result, err
	}

	log.InfoContext(ctx, "Imported snapshot",
		"snapshot_id", snapshot.SnapshotID,
		"added", result.Added,
		"duplicates", result.Duplicates,
		"entities", result.Entities,
	)
	return result, nil
}
