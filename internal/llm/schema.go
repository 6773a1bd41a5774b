package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReportJSONSchema returns the JSON-Schema of a sanitized report payload.
// It checks shape only; content rules live in the validation package.
func BuildReportJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	workItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category":    str,
			"location":    str,
			"description": str,
			"status":      str,
			"notes":       str,
			"hasPhoto":    map[string]any{"type": "boolean"},
		},
		"additionalProperties": false,
	}
	apartment := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"apartmentNumber": str,
			"workItems":       map[string]any{"type": "array", "items": workItem},
			"inspectionDates": map[string]any{"type": "object", "additionalProperties": str},
		},
		"required":             []string{"apartmentNumber", "workItems"},
		"additionalProperties": false,
	}
	progress := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"apartmentNumber": str,
			"category":        str,
			"inspectionDate":  str,
			"status":          str,
		},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reportDate":       str,
			"inspector":        str,
			"projectName":      str,
			"apartments":       map[string]any{"type": "array", "items": apartment},
			"developmentItems": map[string]any{"type": "array", "items": workItem},
			"progressTracking": map[string]any{"type": "array", "items": progress},
		},
		"additionalProperties": false,
	}
}

var reportSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(BuildReportJSONSchema())
})

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

// ValidateReportJSON validates data against the report payload schema.
func ValidateReportJSON(data []byte) error {
	schema, err := reportSchema()
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

func validateWith(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
