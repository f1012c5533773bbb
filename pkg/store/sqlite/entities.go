package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	aimemerrors "github.com/lexlapax/aimem/pkg/errors"
	"github.com/lexlapax/aimem/pkg/store"
)

// UpsertEntity creates or updates an entity by its unique name.
func (s *Store) UpsertEntity(ctx context.Context, name, entityType string, attributes store.AttributeMap) (*store.EntityRecord, error) {
	if name == "" {
		return nil, aimemerrors.ErrInvalidInput
	}
	if entityType == "" {
		entityType = "unknown"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (name, type, attributes) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			attributes = excluded.attributes,
			updated_at = datetime('now')`,
		name, entityType, attributes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entity: %w", err)
	}

	return s.GetEntityByName(ctx, name)
}

// GetEntityByName fetches an entity by its unique name.
func (s *Store) GetEntityByName(ctx context.Context, name string) (*store.EntityRecord, error) {
	var entity store.EntityRecord
	err := s.db.GetContext(ctx, &entity, `SELECT * FROM entities WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, aimemerrors.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

// ListEntities returns all entities ordered by id.
func (s *Store) ListEntities(ctx context.Context) ([]store.EntityRecord, error) {
	var entities []store.EntityRecord
	if err := s.db.SelectContext(ctx, &entities, `SELECT * FROM entities ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}

// LinkMemoryEntity records an association between a memory and an
// entity. At most one edge exists per pair; re-linking is a no-op.
func (s *Store) LinkMemoryEntity(ctx context.Context, memoryID, entityID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memory_entities (memory_id, entity_id) VALUES (?, ?)`,
		memoryID, entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to link memory and entity: %w", err)
	}
	return nil
}

// MemoryEntityLinks returns the entities linked to a memory.
func (s *Store) MemoryEntityLinks(ctx context.Context, memoryID int64) ([]store.EntityRecord, error) {
	var entities []store.EntityRecord
	err := s.db.SelectContext(ctx, &entities,
		`SELECT e.* FROM entities e
		 JOIN memory_entities me ON me.entity_id = e.id
		 WHERE me.memory_id = ?
		 ORDER BY e.id`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity links: %w", err)
	}
	return entities, nil
}
