package api

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON Schema used to check a response body before
// decoding it.
type Schema struct {
	Name       string
	Definition map[string]any
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

var questionSchema = map[string]any{
	"type":     "object",
	"required": []string{"text", "options", "correct_index"},
	"properties": map[string]any{
		"text":          map[string]any{"type": "string"},
		"options":       map[string]any{"type": []string{"string", "array"}},
		"correct_index": map[string]any{"type": "integer", "minimum": 0},
		"segment_index": map[string]any{"type": []string{"integer", "null"}},
	},
}

// LevelsSchema describes the /levels response.
var LevelsSchema = &Schema{
	Name: "levels",
	Definition: map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []string{"id", "title", "xp_reward"},
			"properties": map[string]any{
				"id":               map[string]any{"type": "integer"},
				"title":            map[string]any{"type": "string"},
				"video_id":         map[string]any{"type": []string{"string", "null"}},
				"xp_reward":        map[string]any{"type": "integer", "minimum": 0},
				"duration_seconds": map[string]any{"type": []string{"number", "null"}},
				"questions": map[string]any{
					"type":  []string{"array", "null"},
					"items": questionSchema,
				},
			},
		},
	},
}

// UserSchema describes the /users/me response.
var UserSchema = &Schema{
	Name: "user",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"id", "username", "coins"},
		"properties": map[string]any{
			"id":       map[string]any{"type": "integer"},
			"username": map[string]any{"type": "string"},
			"coins":    map[string]any{"type": "integer"},
			"streak":   map[string]any{"type": "integer"},
			"progress": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []string{"level_id", "status"},
					"properties": map[string]any{
						"level_id": map[string]any{"type": "integer"},
						"status":   map[string]any{"type": "string"},
					},
				},
			},
		},
	},
}

// VerificationSchema describes the /verify-task response.
var VerificationSchema = &Schema{
	Name: "verification",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"verified"},
		"properties": map[string]any{
			"verified":    map[string]any{"type": "boolean"},
			"message":     map[string]any{"type": []string{"string", "null"}},
			"suggestions": map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
			"rewards": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"coins": map[string]any{"type": "integer"},
					"xp":    map[string]any{"type": "integer"},
				},
			},
		},
	},
}

// validateBody validates raw JSON against schema. It returns nil when no
// schema is given.
func validateBody(schema *Schema, raw []byte) error {
	if schema == nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	compiled, err := compiledSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// compiledSchema returns a cached compiled schema or compiles and caches it.
func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a parsed JSON value, not Go maps with typed slices.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
