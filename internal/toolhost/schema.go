package toolhost

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each tool's InputSchema once and reuses it across
// calls; tool definitions are registered once at discovery and never
// mutated afterward, so a name is a stable cache key.
type schemaCache struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

var globalSchemaCache = &schemaCache{schemas: make(map[string]*jsonschema.Schema)}

func (c *schemaCache) compile(name string, inputSchema map[string]any) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if schema, ok := c.schemas[name]; ok {
		return schema, nil
	}
	if len(inputSchema) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema for %q: %w", name, err)
	}
	schema, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile input schema for %q: %w", name, err)
	}
	c.schemas[name] = schema
	return schema, nil
}

// validateArguments checks call arguments against a tool's declared
// InputSchema before dispatch, surfacing a Validation error for malformed
// or schema-violating input instead of letting the tool implementation
// fail on a type assertion.
func validateArguments(name string, inputSchema map[string]any, arguments json.RawMessage) error {
	schema, err := globalSchemaCache.compile(name, inputSchema)
	if err != nil || schema == nil {
		return err
	}

	var payload any
	if len(arguments) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(arguments, &payload); err != nil {
		return fmt.Errorf("arguments for %q are not valid JSON: %w", name, err)
	}
	return schema.Validate(payload)
}
