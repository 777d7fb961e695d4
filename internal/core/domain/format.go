package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatChangeValue renders a value for the human change log: nil becomes
// "(empty)" and booleans become Yes/No. Structured values fall back to their
// JSON form.
func FormatChangeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "(empty)"
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case string:
		return val
	default:
		return stringify(v)
	}
}

// FormatTemplateValue renders a value for raw template substitution: nil
// becomes "null" and booleans become true/false, matching their JSON form.
func FormatTemplateValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return val
	default:
		return stringify(v)
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprintf("%v", val)
	case fmt.Stringer:
		return val.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// PrettifyField turns a snake_case field name into display form: underscores
// become spaces and only the first character is upper-cased
// (shipping_method -> "Shipping method").
func PrettifyField(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
