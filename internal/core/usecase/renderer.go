package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/ports"
)

const (
	// UnknownEntity substitutes for references whose object no longer exists.
	UnknownEntity = "[Unknown]"
	// ViewerName substitutes for the actor when the viewer is the actor.
	ViewerName = "You"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// displayNameProbe is the ordered list of conventional attributes tried when
// a resolved entity exposes no display-name capability.
var displayNameProbe = []string{"name", "title", "display_name", "full_name", "username"}

// Renderer resolves an activity record's template into display text for an
// optional viewer. Rendering is best effort and never fails: missing
// entities degrade to UnknownEntity, store errors are treated as misses and
// unresolved placeholders stay verbatim.
type Renderer struct {
	store ports.EntityStore
}

func NewRenderer(store ports.EntityStore) *Renderer {
	return &Renderer{store: store}
}

// Render substitutes every {name} token in one pass. Resolution order per
// token: entity role (first-seen ref per role), the derived changes_summary,
// then record properties. Only the actor role is viewer-relative.
func (r *Renderer) Render(ctx context.Context, rec domain.ActivityRecord, viewer *domain.EntityKey) string {
	needed := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(rec.Template, -1) {
		needed[match[1]] = true
	}
	if len(needed) == 0 {
		return rec.Template
	}

	subs := make(map[string]string, len(needed))

	// First-seen ref per role; duplicates under a role stay queryable on the
	// record but take no part in substitution.
	roleRefs := map[string]domain.EntityRef{}
	resolved := map[domain.EntityKey]ports.Entity{}
	for _, ref := range rec.EntityRefs {
		if !needed[ref.Role] {
			continue
		}
		if _, seen := roleRefs[ref.Role]; seen {
			continue
		}
		roleRefs[ref.Role] = ref
		if _, done := resolved[ref.Entity]; !done {
			entity, err := r.store.Resolve(ctx, ref.Entity)
			if err != nil {
				entity = nil
			}
			resolved[ref.Entity] = entity
		}
	}

	for role, ref := range roleRefs {
		entity := resolved[ref.Entity]
		if entity == nil {
			subs[role] = UnknownEntity
			continue
		}
		if role == domain.RoleActor && viewer != nil &&
			entity.EntityType() == viewer.Type && entity.EntityID() == viewer.ID {
			subs[role] = ViewerName
			continue
		}
		subs[role] = entityDisplayName(entity)
	}

	if needed[domain.PlaceholderChangesSummary] {
		if _, taken := subs[domain.PlaceholderChangesSummary]; !taken {
			subs[domain.PlaceholderChangesSummary] = rec.Changes().Summary()
		}
	}

	for key, value := range rec.Properties {
		if !needed[key] {
			continue
		}
		if _, taken := subs[key]; taken {
			continue
		}
		subs[key] = domain.FormatTemplateValue(value)
	}

	return placeholderPattern.ReplaceAllStringFunc(rec.Template, func(token string) string {
		name := token[1 : len(token)-1]
		if value, ok := subs[name]; ok {
			return value
		}
		return token
	})
}

// entityDisplayName prefers the DisplayNameProvider capability, then probes
// conventional attributes, then falls back to "Type #id".
func entityDisplayName(entity ports.Entity) string {
	if named, ok := entity.(ports.DisplayNameProvider); ok {
		if name := named.DisplayName(); name != "" {
			return name
		}
	}
	if attrs, ok := entity.(ports.AttributeProvider); ok {
		for _, attr := range displayNameProbe {
			value, present := attrs.Attribute(attr)
			if !present {
				continue
			}
			if s := domain.FormatTemplateValue(value); s != "" && s != "null" {
				return s
			}
		}
	}
	return fmt.Sprintf("%s #%s", titleType(entity.EntityType()), entity.EntityID())
}

func titleType(entityType string) string {
	if entityType == "" {
		return entityType
	}
	return strings.ToUpper(entityType[:1]) + entityType[1:]
}
