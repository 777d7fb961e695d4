package domain

import (
	"fmt"
	"reflect"
	"sort"
)

// Change is one field-level before/after pair tracked for a record.
type Change struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// ChangeSet accumulates field changes during record construction and answers
// query/format operations afterwards. Entries keep insertion order and are
// never deduplicated; Find returns the first match.
type ChangeSet struct {
	entries []Change
}

func (c *ChangeSet) Add(field string, oldValue, newValue any) {
	c.entries = append(c.entries, Change{Field: field, Old: oldValue, New: newValue})
}

// AddFromMapping applies Add for every entry of field -> {old, new}. Entries
// missing either key are skipped. Fields are applied in sorted order since Go
// map iteration is unordered.
func (c *ChangeSet) AddFromMapping(mapping map[string]map[string]any) {
	fields := make([]string, 0, len(mapping))
	for field := range mapping {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		pair := mapping[field]
		oldValue, hasOld := pair["old"]
		newValue, hasNew := pair["new"]
		if !hasOld || !hasNew {
			continue
		}
		c.Add(field, oldValue, newValue)
	}
}

// AddFromDiff records one change per field of after whose value is absent
// from or different in before. Fields are applied in sorted order.
func (c *ChangeSet) AddFromDiff(before, after map[string]any) {
	fields := make([]string, 0, len(after))
	for field := range after {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		oldValue, existed := before[field]
		if existed && reflect.DeepEqual(oldValue, after[field]) {
			continue
		}
		if !existed {
			oldValue = nil
		}
		c.Add(field, oldValue, after[field])
	}
}

func (c *ChangeSet) Count() int {
	return len(c.entries)
}

func (c *ChangeSet) HasAny() bool {
	return len(c.entries) > 0
}

// Find returns the first entry recorded for field.
func (c *ChangeSet) Find(field string) (Change, bool) {
	for _, e := range c.entries {
		if e.Field == field {
			return e, true
		}
	}
	return Change{}, false
}

// Entries returns a copy of the accumulated changes.
func (c *ChangeSet) Entries() []Change {
	out := make([]Change, len(c.entries))
	copy(out, c.entries)
	return out
}

// FormatAll renders every entry as "Field: old → new", or "old → new" when
// includeFieldNames is false, using change-display formatting.
func (c *ChangeSet) FormatAll(includeFieldNames bool) []string {
	lines := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		line := fmt.Sprintf("%s → %s", FormatChangeValue(e.Old), FormatChangeValue(e.New))
		if includeFieldNames {
			line = PrettifyField(e.Field) + ": " + line
		}
		lines = append(lines, line)
	}
	return lines
}

// Summary collapses the set into one phrase: "no changes", "updated Field"
// for a single entry, "updated N fields" otherwise.
func (c *ChangeSet) Summary() string {
	switch len(c.entries) {
	case 0:
		return "no changes"
	case 1:
		return "updated " + PrettifyField(c.entries[0].Field)
	default:
		return fmt.Sprintf("updated %d fields", len(c.entries))
	}
}
