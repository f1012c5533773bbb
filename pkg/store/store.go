package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TagList is an ordered list of tags stored as a JSON array in a
// single text column.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner. Missing or corrupted values scan to an
// empty list.
func (t *TagList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = TagList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TagList", src)
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil || tags == nil {
		*t = TagList{}
		return nil
	}
	*t = tags
	return nil
}

// AttributeMap holds arbitrary structured entity attributes stored as
// a JSON object in a single text column.
type AttributeMap map[string]interface{}

// Value implements driver.Valuer.
func (a AttributeMap) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner. Missing or corrupted values scan to an
// empty map.
func (a *AttributeMap) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = AttributeMap{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AttributeMap", src)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(data, &attrs); err != nil || attrs == nil {
		*a = AttributeMap{}
		return nil
	}
	*a = attrs
	return nil
}

// MemoryRecord is one stored memory.
type MemoryRecord struct {
	// ID is unique and monotonically assigned by the store
	ID int64 `db:"id" json:"id"`

	// Content is the memory text
	Content string `db:"content" json:"content"`

	// Category is an open tag set, defaulting to "general"
	Category string `db:"category" json:"category"`

	// Importance is in [0, 1]
	Importance float64 `db:"importance" json:"importance"`

	// Source is optional free text describing where the memory came from
	Source string `db:"source" json:"source,omitempty"`

	// Tags is an ordered list of tag strings
	Tags TagList `db:"tags" json:"tags"`

	// CreatedAt is when the memory was stored
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// LastAccessed is updated on every read that returns this record
	LastAccessed time.Time `db:"last_accessed" json:"last_accessed"`

	// AccessCount is incremented on every read that returns this record
	AccessCount int64 `db:"access_count" json:"access_count"`

	// DecayScore is the freshness multiplier in (0, 1], starting at 1.0
	DecayScore float64 `db:"decay_score" json:"decay_score"`
}

// EntityRecord is a named entity (person, place, concept) upserted by name.
type EntityRecord struct {
	ID         int64        `db:"id" json:"id"`
	Name       string       `db:"name" json:"name"`
	Type       string       `db:"type" json:"type"`
	Attributes AttributeMap `db:"attributes" json:"attributes"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// SearchQuery describes a lexical search or listing request.
type SearchQuery struct {
	// Text is the query text; empty means list by rank
	Text string

	// Category filters to one category when non-empty
	Category string

	// MinImportance is the importance floor
	MinImportance float64

	// Limit is the maximum number of rows returned
	Limit int
}

// ScoredMemory is a memory with its full-text match rank. Rank is 0
// for substring and listing results.
type ScoredMemory struct {
	MemoryRecord
	Rank float64 `db:"match_rank"`
}

// VectorRow pairs a memory with its persisted sparse vector bytes.
type VectorRow struct {
	MemoryRecord
	VectorData []byte `db:"vector"`
}

// DecayTier maps an importance threshold to a decay multiplier and floor.
type DecayTier struct {
	// MinImportance is the inclusive lower importance bound of the tier
	MinImportance float64

	// Factor multiplies decay_score on each sweep
	Factor float64

	// Floor is the minimum decay_score for records in this tier
	Floor float64
}

// CategoryCount is one row of the per-category memory statistics.
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// Store is the durable storage contract for memories, entities, sparse
// vectors and the TF-IDF index state. Composite write operations are
// transactional: a crash mid-operation leaves either the old or the
// fully-updated state.
type Store interface {
	// CreateMemory inserts a memory together with its sparse vector and
	// the updated index state in one transaction. The record's ID and
	// timestamps are filled in on return.
	CreateMemory(ctx context.Context, record *MemoryRecord, vector []byte, indexState []byte) error

	// GetMemory fetches one memory by id.
	GetMemory(ctx context.Context, id int64) (*MemoryRecord, error)

	// GetMemoriesByIDs fetches the given memories keyed by id.
	GetMemoriesByIDs(ctx context.Context, ids []int64) (map[int64]*MemoryRecord, error)

	// ListMemories returns all memories ordered by id.
	ListMemories(ctx context.Context) ([]MemoryRecord, error)

	// DeleteMemory removes a memory and its derived rows.
	DeleteMemory(ctx context.Context, id int64) error

	// UpdateImportance sets a memory's importance.
	UpdateImportance(ctx context.Context, id int64, importance float64) error

	// TouchMemories updates last_accessed and increments access_count
	// for the given memories.
	TouchMemories(ctx context.Context, ids []int64) error

	// SearchFullText matches the query against the full-text index,
	// ordered by match rank x importance x decay. A malformed query
	// surfaces as an error for the caller to recover from.
	SearchFullText(ctx context.Context, query SearchQuery) ([]ScoredMemory, error)

	// SearchSubstring matches the query as a substring of content,
	// ordered by importance x decay.
	SearchSubstring(ctx context.Context, query SearchQuery) ([]ScoredMemory, error)

	// ListByRank returns filtered memories ordered by importance x decay.
	ListByRank(ctx context.Context, query SearchQuery) ([]ScoredMemory, error)

	// CandidatesByToken returns up to limit memories whose content
	// contains the token. This is a recall-oriented prefilter for
	// deduplication, not a similarity test.
	CandidatesByToken(ctx context.Context, token string, limit int) ([]MemoryRecord, error)

	// LoadVectors returns all sparse vector rows joined with their
	// memories, filtered by category and importance floor.
	LoadVectors(ctx context.Context, category string, minImportance float64) ([]VectorRow, error)

	// ReplaceVectors overwrites every sparse vector row and the index
	// state in one transaction. Used only by rebuild.
	ReplaceVectors(ctx context.Context, vectors map[int64][]byte, indexState []byte) error

	// LoadIndexState returns the persisted TF-IDF index state, or nil
	// when none has been stored yet.
	LoadIndexState(ctx context.Context) ([]byte, error)

	// ApplyDecay attenuates decay_score for every memory idle for more
	// than a day, per the given tiers. Returns affected row count.
	ApplyDecay(ctx context.Context, tiers []DecayTier) (int64, error)

	// UpsertEntity creates or updates an entity by name.
	UpsertEntity(ctx context.Context, name, entityType string, attributes AttributeMap) (*EntityRecord, error)

	// GetEntityByName fetches an entity by its unique name.
	GetEntityByName(ctx context.Context, name string) (*EntityRecord, error)

	// ListEntities returns all entities ordered by id.
	ListEntities(ctx context.Context) ([]EntityRecord, error)

	// LinkMemoryEntity records an association between a memory and an
	// entity. Linking the same pair twice is a no-op.
	LinkMemoryEntity(ctx context.Context, memoryID, entityID int64) error

	// MemoryEntityLinks returns the entities linked to a memory.
	MemoryEntityLinks(ctx context.Context, memoryID int64) ([]EntityRecord, error)

	// CountMemories returns the total number of memories.
	CountMemories(ctx context.Context) (int, error)

	// CountByCategory returns memory counts grouped by category.
	CountByCategory(ctx context.Context) ([]CategoryCount, error)

	// CountEntities returns the total number of entities.
	CountEntities(ctx context.Context) (int, error)

	// Close releases the underlying database handle.
	Close() error
}

// DenseHit is one dense-vector query result.
type DenseHit struct {
	// MemoryID is the id of the matching memory
	MemoryID int64

	// Similarity is the cosine similarity to the query embedding
	Similarity float64
}

// DenseStore persists one dense vector per memory. It is a derived,
// disposable cache: deleting and recomputing it never changes a
// memory record.
type DenseStore interface {
	// Put stores the embedding for a memory, replacing any previous one.
	Put(ctx context.Context, memoryID int64, content string, embedding []float32) error

	// Delete removes the embedding for a memory if present.
	Delete(ctx context.Context, memoryID int64) error

	// Query returns up to limit hits ordered by descending similarity.
	Query(ctx context.Context, embedding []float32, limit int) ([]DenseHit, error)

	// Count returns the number of stored dense vectors.
	Count(ctx context.Context) (int, error)

	// Reset drops every stored dense vector.
	Reset(ctx context.Context) error
}
