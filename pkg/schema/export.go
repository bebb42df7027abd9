package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes choices as an object of string labels; the Go side is
// an ordered slice.
func (Choices) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          "Map of the key the operator types to the label that gets stored",
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go File struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&File{})
	s.ID = "https://github.com/yourlabs/remember/schemas/remember-v0.json"
	s.Title = "remember variables v0"
	s.Description = "Schema for remember variables YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
