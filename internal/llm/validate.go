package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// Validate checks raw JSON against the given Schema and returns the decoded
// value. A nil schema only checks that raw is valid JSON.
func Validate(schema *Schema, raw []byte) (any, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ErrInvalidResponse{
			Content: string(raw),
			Err:     fmt.Errorf("invalid JSON: %w", err),
		}
	}
	if schema == nil {
		return parsed, nil
	}

	compiled, err := compiledSchema(schema)
	if err != nil {
		return nil, &ErrInvalidResponse{
			Content: string(raw),
			Err:     fmt.Errorf("compile schema %q: %w", schema.Name, err),
		}
	}

	if err := compiled.Validate(parsed); err != nil {
		return nil, &ErrInvalidResponse{
			Content: string(raw),
			Err:     fmt.Errorf("schema validation failed: %w", err),
		}
	}
	return parsed, nil
}

func validateResponse(schema *Schema, content string) error {
	if schema == nil {
		return nil
	}
	_, err := Validate(schema, []byte(content))
	return err
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler expects a decoded JSON value, not a Go map of typed slices.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
