package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// compileSchema parses and resolves a document type metadata schema.
func compileSchema(raw []byte) (*jsonschema.Resolved, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("schema is empty")
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return resolved, nil
}

// validateMetadata checks a document metadata object against a stored schema.
func validateMetadata(schemaRaw, metadata []byte) error {
	resolved, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}
	var instance interface{} = map[string]interface{}{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &instance); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
	}
	return resolved.Validate(instance)
}
