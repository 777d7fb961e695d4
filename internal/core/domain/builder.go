package domain

import "time"

// Builder accumulates an activity record fluently and produces an immutable
// ActivityRecord via Finalize. A builder may finalize more than once; each
// call yields an independent record sharing no top-level containers with the
// previous one. Reset clears all accumulated state.
type Builder struct {
	action     string
	template   string
	properties map[string]any
	refs       []EntityRef
	occurredAt time.Time
	changes    ChangeSet
	now        func() time.Time
}

// NewBuilder returns a Builder using now as its clock for the occurred-at
// default. A nil now falls back to time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{properties: map[string]any{}, now: now}
}

// Action sets the categorical action string. Last write wins.
func (b *Builder) Action(action string) *Builder {
	b.action = action
	return b
}

// Template sets the description template. Last write wins.
func (b *Builder) Template(template string) *Builder {
	b.template = template
	return b
}

// Property appends one property. Keys are append-only during construction;
// writing an existing key overwrites its value.
func (b *Builder) Property(key string, value any) *Builder {
	b.properties[key] = value
	return b
}

// Properties appends every entry of props.
func (b *Builder) Properties(props map[string]any) *Builder {
	for k, v := range props {
		b.properties[k] = v
	}
	return b
}

// Entity attaches an entity reference under role. Attaching an absent entity
// (empty type or id) is a no-op so optional participants need no branching at
// the call site. Refs cannot be removed once attached.
func (b *Builder) Entity(role string, key EntityKey) *Builder {
	if key.Type == "" || key.ID == "" {
		return b
	}
	b.refs = append(b.refs, EntityRef{Role: role, Entity: key})
	return b
}

// Actor attaches key under the actor role.
func (b *Builder) Actor(key EntityKey) *Builder {
	return b.Entity(RoleActor, key)
}

// Subject attaches key under the subject role.
func (b *Builder) Subject(key EntityKey) *Builder {
	return b.Entity(RoleSubject, key)
}

// OccurredAt sets an explicit occurrence time; unset records default to the
// builder clock at finalize.
func (b *Builder) OccurredAt(t time.Time) *Builder {
	b.occurredAt = t
	return b
}

// Change tracks one field-level before/after pair.
func (b *Builder) Change(field string, oldValue, newValue any) *Builder {
	b.changes.Add(field, oldValue, newValue)
	return b
}

// ChangesFromMapping tracks changes from a field -> {old, new} mapping.
func (b *Builder) ChangesFromMapping(mapping map[string]map[string]any) *Builder {
	b.changes.AddFromMapping(mapping)
	return b
}

// ChangesFromDiff tracks changes between two flat snapshots.
func (b *Builder) ChangesFromDiff(before, after map[string]any) *Builder {
	b.changes.AddFromDiff(before, after)
	return b
}

// Finalize validates the accumulated state and produces the record. Tracked
// changes are folded into the properties under the reserved changes and
// changes_count keys, overwriting caller-supplied values there.
func (b *Builder) Finalize() (ActivityRecord, error) {
	if b.action == "" {
		return ActivityRecord{}, ErrMissingAction
	}
	if b.template == "" {
		return ActivityRecord{}, ErrMissingTemplate
	}

	props := make(map[string]any, len(b.properties)+2)
	for k, v := range b.properties {
		props[k] = v
	}
	if b.changes.HasAny() {
		props[PropChanges] = b.changes.Entries()
		props[PropChangesCount] = b.changes.Count()
	}

	refs := make([]EntityRef, len(b.refs))
	copy(refs, b.refs)

	occurredAt := b.occurredAt
	if occurredAt.IsZero() {
		occurredAt = b.now().UTC()
	}

	return ActivityRecord{
		Action:     b.action,
		Template:   b.template,
		Properties: props,
		EntityRefs: refs,
		OccurredAt: occurredAt,
	}, nil
}

// Reset clears all accumulated state back to an empty builder.
func (b *Builder) Reset() *Builder {
	b.action = ""
	b.template = ""
	b.properties = map[string]any{}
	b.refs = nil
	b.occurredAt = time.Time{}
	b.changes = ChangeSet{}
	return b
}
