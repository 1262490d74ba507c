// Package validation checks client-supplied JSON documents against JSON schemas.
package validation

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Error describes why a document failed validation.
type Error struct {
	// Path is a JSONPath-like location such as "$.2".
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed at '%s': %s", e.Path, e.Message)
}

// SchemaValidator validates documents, caching compiled schemas by their source text.
type SchemaValidator struct {
	schemaCache *lru.Cache[string, *jsonschema.Schema]
}

// NewSchemaValidator creates a new validator with LRU caching for compiled schemas
func NewSchemaValidator(cacheSize int) (*SchemaValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &SchemaValidator{schemaCache: cache}, nil
}

// Validate checks instance against schemaJSON. instance must be a decoded JSON
// value (map[string]any, []any, string, json.Number, bool or nil).
// A document that violates the schema returns *Error.
func (v *SchemaValidator) Validate(schemaJSON string, instance any) error {
	schema, ok := v.schemaCache.Get(schemaJSON)
	if !ok {
		compiled, err := compileSchema(schemaJSON)
		if err != nil {
			return fmt.Errorf("schema compilation failed: %w", err)
		}
		v.schemaCache.Add(schemaJSON, compiled)
		schema = compiled
	}

	if err := schema.Validate(instance); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// DecodeJSON parses raw into the generic form Validate expects.
func DecodeJSON(raw string) (any, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, &Error{Path: "$", Message: "malformed JSON"}
	}
	return doc, nil
}

func compileSchema(schemaJSON string) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse schema JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	schemaURL := "schema.json"
	if err := compiler.AddResource(schemaURL, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// formatValidationError turns a jsonschema error into an *Error located at
// the deepest failing instance.
func formatValidationError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &Error{Path: "$", Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}

	path := "$"
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		path = "$." + strings.Join(parts, ".")
	}

	msg := ve.Error()
	if len(msg) > 200 {
		msg = msg[:200] + "... (truncated)"
	}
	return &Error{Path: path, Message: msg}
}
