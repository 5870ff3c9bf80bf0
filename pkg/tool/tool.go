package tool

import (
	"context"
	"sort"
)

// Param describes one parameter of a tool schema.
type Param struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Schema declares a tool's callable shape for the model.
type Schema struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Params      map[string]Param `json:"params"`
}

// InputSchema renders the declared parameters as a JSON Schema object, the
// format both the model API and parameter validation consume.
func (s Schema) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Params))
	var required []string

	for name, p := range s.Params {
		properties[name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Provenance identifies where a tool's result text came from, for citation
// display.
type Provenance struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Result is a successful tool execution outcome: the text fed back to the
// model plus any provenance records for the caller.
type Result struct {
	Text    string
	Sources []Provenance
}

// Tool is a named capability the model can invoke. Implementations must
// reject malformed or out-of-range parameters themselves and return a
// descriptive error rather than panicking.
type Tool interface {
	Schema() Schema
	Execute(ctx context.Context, params map[string]interface{}) (Result, error)
}
