package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMissingAction   = errors.New("missing action")
	ErrMissingTemplate = errors.New("missing template")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrNotFound        = errors.New("not found")
)

// Well-known entity roles. Roles are free-form strings; these are the
// conventional ones. RoleActor is the only role that receives viewer-relative
// substitution during rendering.
const (
	RoleActor     = "actor"
	RoleSubject   = "subject"
	RoleTarget    = "target"
	RoleMentioned = "mentioned"
	RoleRelated   = "related"
)

// Reserved property keys written by Builder.Finalize when changes were
// tracked, and the derived placeholder computed at render time.
const (
	PropChanges               = "changes"
	PropChangesCount          = "changes_count"
	PlaceholderChangesSummary = "changes_summary"
)

// EntityKey is a polymorphic pointer into the caller-owned object universe:
// a type discriminator plus an identifier, resolved through an EntityStore.
type EntityKey struct {
	Type string
	ID   string
}

func (k EntityKey) IsZero() bool {
	return k.Type == "" && k.ID == ""
}

// EntityRef ties a role on a record to an entity key. Refs are immutable once
// attached and share the owning record's lifetime.
type EntityRef struct {
	Role   string
	Entity EntityKey
}

// ActivityRecord is one logged activity event. It is read-only after
// Finalize; the only later mutations are property updates and deletion, both
// of which invalidate cached renders.
type ActivityRecord struct {
	ID         string
	Action     string
	Template   string
	Properties map[string]any
	EntityRefs []EntityRef
	OccurredAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r ActivityRecord) Validate() error {
	if r.Action == "" {
		return ErrMissingAction
	}
	if r.Template == "" {
		return ErrMissingTemplate
	}
	return nil
}

// RefByRole returns the first reference attached under role. Duplicate roles
// are retained in storage but only the first takes part in substitution.
func (r ActivityRecord) RefByRole(role string) (EntityRef, bool) {
	for _, ref := range r.EntityRefs {
		if ref.Role == role {
			return ref, true
		}
	}
	return EntityRef{}, false
}

// RefsByRole returns every reference attached under role, in attach order.
func (r ActivityRecord) RefsByRole(role string) []EntityRef {
	var refs []EntityRef
	for _, ref := range r.EntityRefs {
		if ref.Role == role {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Changes reconstructs the change set persisted under the reserved changes
// property. It accepts both the in-memory []Change form and the generic form
// produced by a JSON round-trip through storage.
func (r ActivityRecord) Changes() *ChangeSet {
	cs := &ChangeSet{}
	raw, ok := r.Properties[PropChanges]
	if !ok {
		return cs
	}
	switch entries := raw.(type) {
	case []Change:
		for _, e := range entries {
			cs.Add(e.Field, e.Old, e.New)
		}
	case []any:
		for _, e := range entries {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			field, _ := m["field"].(string)
			if field == "" {
				continue
			}
			cs.Add(field, m["old"], m["new"])
		}
	case json.RawMessage:
		var decoded []Change
		if err := json.Unmarshal(entries, &decoded); err == nil {
			for _, e := range decoded {
				cs.Add(e.Field, e.Old, e.New)
			}
		}
	}
	return cs
}

// ActivityEvent is the envelope published on record lifecycle transitions
// (activity.logged, activity.updated, activity.deleted).
type ActivityEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	RecordID   string          `json:"record_id"`
	Action     string          `json:"action"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
