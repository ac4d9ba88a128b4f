// internal/analysis/schema.go
package analysis

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// analysisSchema constrains the model's JSON before it is cleaned into an
// AnalysisResult. Unknown fields pass through; the cleaner ignores them.
const analysisSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "cuisine_type":      {"type": "string"},
    "ambience":          {"type": "string"},
    "highlights":        {"type": "array", "items": {"type": "string"}},
    "complaints":        {"type": "array", "items": {"type": "string"}},
    "overall_sentiment": {"type": "string"},
    "price_range":       {"type": "string"},
    "best_dishes":       {"type": "array", "items": {"type": "string"}},
    "service_quality":   {"type": "string"}
  }
}`

var compiledSchema = gojsonschema.NewStringLoader(analysisSchema)

// validateAnalysisJSON checks the extracted JSON document against the
// expected shape. Type mismatches on known fields are rejected here rather
// than silently coerced downstream.
func validateAnalysisJSON(document string) error {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewStringLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return fmt.Errorf("analysis JSON invalid: %s", strings.Join(issues, "; "))
	}
	return nil
}
