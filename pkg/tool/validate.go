package tool

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateParams checks params against the schema's JSON Schema rendering.
// Tools call this at the top of Execute so malformed model input surfaces
// as a descriptive error instead of a fault mid-execution.
func ValidateParams(s Schema, params map[string]interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.InputSchema()),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("failed to validate parameters: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			messages = append(messages, e.String())
		}
		return fmt.Errorf("invalid parameters: %s", strings.Join(messages, "; "))
	}

	return nil
}
