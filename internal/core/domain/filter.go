package domain

import (
	"regexp"
	"time"
)

var pathSegmentPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// PropertyFilter narrows listings by a dot path inside the stored properties
// document, e.g. path "shipment.carrier" with op "eq".
type PropertyFilter struct {
	Path  string
	Op    string
	Value string
}

func (f PropertyFilter) Validate() error {
	if f.Path == "" {
		if f.Op == "" && f.Value == "" {
			return nil
		}
		return ErrInvalidFilter
	}

	segments := SplitPropertyPath(f.Path)
	if len(segments) == 0 {
		return ErrInvalidFilter
	}
	for _, seg := range segments {
		if !pathSegmentPattern.MatchString(seg) {
			return ErrInvalidFilter
		}
	}

	if f.Op == "" {
		f.Op = "eq"
	}
	switch f.Op {
	case "eq", "contains":
		if f.Value == "" {
			return ErrInvalidFilter
		}
	case "exists":
		if f.Value != "" {
			return ErrInvalidFilter
		}
	default:
		return ErrInvalidFilter
	}

	return nil
}

// ActivityFilter narrows List calls. Before is a keyset cursor on OccurredAt.
type ActivityFilter struct {
	Action   string
	Before   time.Time
	Property PropertyFilter
	Limit    int
}

func (f ActivityFilter) Validate() error {
	return f.Property.Validate()
}

// SplitPropertyPath splits a dot path into its segments; empty segments make
// the whole path invalid and yield nil.
func SplitPropertyPath(path string) []string {
	segments := make([]string, 0)
	current := ""
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			if current == "" {
				return nil
			}
			segments = append(segments, current)
			current = ""
			continue
		}
		current += string(path[i])
	}
	if current == "" {
		return nil
	}
	segments = append(segments, current)
	return segments
}
