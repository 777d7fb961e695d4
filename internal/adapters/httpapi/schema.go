package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// logRequestSchema validates the shape of the create-activity payload
// before it reaches the strict decoder. Keeping a schema alongside the
// Go struct gives callers structured error messages for shape mistakes
// the decoder would report opaquely.
const logRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["action", "template"],
	"properties": {
		"action": {"type": "string", "minLength": 1},
		"template": {"type": "string", "minLength": 1},
		"occurred_at": {"type": "string"},
		"properties": {"type": "object"},
		"entities": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["role", "type", "id"],
				"properties": {
					"role": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"id": {"type": "string", "minLength": 1}
				}
			}
		},
		"changes": {
			"type": "object",
			"additionalProperties": {"type": "object"}
		}
	}
}`

var compileLogSchema = sync.OnceValues(func() (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("log_request.json", strings.NewReader(logRequestSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("log_request.json")
})

// validateLogRequest checks body against logRequestSchema. Violations are
// flattened into a single error message listing each failing constraint.
func validateLogRequest(body []byte) error {
	sch, err := compileLogSchema()
	if err != nil {
		return fmt.Errorf("compile request schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return errors.New("invalid json body")
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return errors.New(strings.Join(collectValidationErrors(ve), "; "))
		}
		return err
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
