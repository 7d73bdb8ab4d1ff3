package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the canonical identifier of the procedure JSON Schema.
const SchemaID = "https://github.com/ormasoftchile/procrun/schemas/procedure.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Procedure struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Procedure{})
	s.ID = SchemaID
	s.Title = "Guided Procedure"
	s.Description = "Schema for procrun procedure YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
