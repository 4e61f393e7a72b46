// Package schemavalidate wraps santhosh-tekuri/jsonschema/v5 to give
// the core deterministic, side-effect-free JSON Schema compilation and
// validation (DESIGN NOTES: Schema validation). Draft-04 is the
// contract; draft-07 documents compile and validate identically since
// it is a compatible superset for the keywords this core exercises.
package schemavalidate

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Compile parses schemaBytes as a JSON Schema document and returns
// the compiled form, or a *errors.Error(KindValidation, "schema")
// describing why it does not parse/compile.
func Compile(schemaBytes []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, coreerrors.NewValidationError("schema", fmt.Sprintf("not valid JSON: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4
	const resourceURL = "gonk://schema"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, coreerrors.NewValidationError("schema", fmt.Sprintf("not a valid JSON Schema: %v", err))
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, coreerrors.NewValidationError("schema", fmt.Sprintf("not a valid JSON Schema: %v", err))
	}
	return schema, nil
}

// ValidateInstance checks instanceBytes against the compiled schema,
// returning a *errors.Error(KindValidation, "schema") on the first
// violation.
func ValidateInstance(schema *jsonschema.Schema, instanceBytes []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(instanceBytes))
	if err != nil {
		return coreerrors.NewValidationError("schema", fmt.Sprintf("annotation body is not valid JSON: %v", err))
	}
	if err := schema.Validate(doc); err != nil {
		return coreerrors.NewValidationError("schema", err.Error())
	}
	return nil
}
