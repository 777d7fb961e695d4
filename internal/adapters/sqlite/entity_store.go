package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/feedforge/activitylog/internal/adapters/sqlite/gormdb"
	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/ports"
	"gorm.io/gorm"
)

// TableSpec maps an entity type onto its backing table. DisplayNameColumn
// is optional; when set, that column drives the entity's display name.
type TableSpec struct {
	Table             string
	KeyColumn         string
	DisplayNameColumn string
}

// EntityStore resolves polymorphic (type, id) references by dispatching on
// the type to a registered backing table. Unregistered types and missing
// rows both resolve to domain.ErrNotFound.
type EntityStore struct {
	db *gormdb.DB

	mu     sync.RWMutex
	tables map[string]TableSpec
}

func NewEntityStore(db *gormdb.DB) *EntityStore {
	return &EntityStore{db: db, tables: map[string]TableSpec{}}
}

// Register binds an entity type to its table. KeyColumn defaults to "id".
func (s *EntityStore) Register(entityType string, spec TableSpec) {
	if spec.KeyColumn == "" {
		spec.KeyColumn = "id"
	}
	s.mu.Lock()
	s.tables[entityType] = spec
	s.mu.Unlock()
}

func (s *EntityStore) Resolve(ctx context.Context, key domain.EntityKey) (ports.Entity, error) {
	s.mu.RLock()
	spec, ok := s.tables[key.Type]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	row := map[string]any{}
	err := s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Table(spec.Table).
			Where(fmt.Sprintf("%s = ?", spec.KeyColumn), key.ID).
			Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("resolve %s/%s: %w", key.Type, key.ID, err)
	}

	return storedEntity{key: key, attrs: row, nameColumn: spec.DisplayNameColumn}, nil
}

// storedEntity wraps a resolved row with the renderer's capabilities.
type storedEntity struct {
	key        domain.EntityKey
	attrs      map[string]any
	nameColumn string
}

func (e storedEntity) EntityType() string { return e.key.Type }
func (e storedEntity) EntityID() string   { return e.key.ID }

func (e storedEntity) DisplayName() string {
	if e.nameColumn == "" {
		return ""
	}
	name, _ := e.attrs[e.nameColumn].(string)
	return name
}

func (e storedEntity) Attribute(name string) (any, bool) {
	v, ok := e.attrs[name]
	return v, ok
}
