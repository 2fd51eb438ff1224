// Package schema validates a tool's arguments against its registered
// JSON Schema before the orchestrator dispatches to a caller.
package schema

import (
	"encoding/json"

	jsonschema "github.com/google/jsonschema-go/jsonschema"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
)

// Validator checks a tool's arguments against its registered schema.
type Validator interface {
	Validate(tool string, arguments map[string]any) error
}

// Registry is a static map from tool name to compiled JSON Schema,
// built once at startup. Tools with no registered schema are accepted
// unchecked — schema authorship for third-party tool surfaces is out
// of scope for the core.
type Registry struct {
	schemas map[string]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*jsonschema.Schema{}}
}

// Register compiles raw (a JSON Schema document) and associates it
// with tool.
func (r *Registry) Register(tool string, raw []byte) error {
	var doc jsonschema.Schema
	if err := json.Unmarshal(raw, &doc); err != nil {
		return gwerrors.Wrap(gwerrors.KindValidationFailure, err, "compiling schema for tool %q", tool)
	}
	resolved, err := doc.Resolve(nil)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindValidationFailure, err, "resolving schema for tool %q", tool)
	}
	_ = resolved
	r.schemas[tool] = &doc
	return nil
}

// Validate checks arguments against tool's registered schema. Tools
// with no registered schema pass unconditionally.
func (r *Registry) Validate(tool string, arguments map[string]any) error {
	doc, ok := r.schemas[tool]
	if !ok {
		return nil
	}
	resolved, err := doc.Resolve(nil)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindValidationFailure, err, "resolving schema for tool %q", tool)
	}
	if err := resolved.Validate(arguments); err != nil {
		return gwerrors.Wrap(gwerrors.KindValidationFailure, err, "arguments for tool %q failed validation", tool)
	}
	return nil
}
