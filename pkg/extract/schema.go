package extract

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateSchema checks an extracted JSON value against a JSON Schema
// document. A schema that cannot be parsed or compiled is an error in its
// own right, distinct from a value that merely fails validation.
func ValidateSchema(v any, schema []byte) error {
	var schemaDoc any
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		return fmt.Errorf("invalid JSON schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("invalid JSON schema: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compiling JSON schema: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("extracted JSON does not match schema: %w", err)
	}
	return nil
}
