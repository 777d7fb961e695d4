package ports

import (
	"context"

	"github.com/feedforge/activitylog/internal/core/domain"
)

// Entity is an object resolved from the caller-owned universe.
type Entity interface {
	EntityType() string
	EntityID() string
}

// DisplayNameProvider is an optional capability an entity may implement to
// control how it is named in rendered descriptions.
type DisplayNameProvider interface {
	DisplayName() string
}

// AttributeProvider is an optional capability exposing named attributes for
// the renderer's display-name probe.
type AttributeProvider interface {
	Attribute(name string) (any, bool)
}

// EntityStore performs polymorphic lookup by (type, id). Missing objects
// return domain.ErrNotFound; lookups may block on external I/O.
type EntityStore interface {
	Resolve(ctx context.Context, key domain.EntityKey) (Entity, error)
}
