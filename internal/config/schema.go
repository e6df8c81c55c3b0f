package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// sessionConfigSchema constrains the free-form config document a
// session may be started with.
const sessionConfigSchema = `{
	"type": "object",
	"properties": {
		"mission": {"type": "string", "minLength": 1},
		"max_turns": {"type": "integer", "minimum": 1, "maximum": 1000},
		"difficulty": {"type": "string", "enum": ["easy", "normal", "hard"]},
		"model": {"type": "string", "minLength": 1},
		"temperature": {"type": "number", "minimum": 0, "maximum": 2},
		"prompts": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	},
	"additionalProperties": true
}`

// SessionValidator validates session config documents against a JSON
// schema. It satisfies the registry's ConfigValidator interface.
type SessionValidator struct {
	schema *gojsonschema.Schema
}

// NewSessionValidator compiles the session config schema
func NewSessionValidator() (*SessionValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(sessionConfigSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile session config schema: %w", err)
	}
	return &SessionValidator{schema: schema}, nil
}

// Validate checks one session config document
func (v *SessionValidator) Validate(config map[string]interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("session config validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid session config: %s", strings.Join(problems, "; "))
}

// remarshal converts between struct and map representations via JSON
func remarshal(from, to interface{}) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}
