package memory

import (
	"context"

	"github.com/lexlapax/aimem/pkg/store"
)

// AddEntity creates or updates an entity by name.
func (e *Engine) AddEntity(ctx context.Context, name, entityType string, attributes map[string]interface{}) (*store.EntityRecord, error) {
	return e.store.UpsertEntity(ctx, name, entityType, store.AttributeMap(attributes))
}

// GetEntity fetches an entity by its unique name. A missing entity
// yields errors.ErrEntityNotFound.
func (e *Engine) GetEntity(ctx context.Context, name string) (*store.EntityRecord, error) {
	return e.store.GetEntityByName(ctx, name)
}

// LinkMemoryEntity associates a memory with a named entity. Linking to
// a non-existent entity is a no-op that reports
// errors.ErrEntityNotFound; linking the same pair twice changes
// nothing.
func (e *Engine) LinkMemoryEntity(ctx context.Context, memoryID int64, entityName string) error {
	entity, err := e.store.GetEntityByName(ctx, entityName)
	if err != nil {
		return err
	}
	return e.store.LinkMemoryEntity(ctx, memoryID, entity.ID)
}

// MemoryEntities returns the entities linked to a memory.
func (e *Engine) MemoryEntities(ctx context.Context, memoryID int64) ([]store.EntityRecord, error) {
	return e.store.MemoryEntityLinks(ctx, memoryID)
}
