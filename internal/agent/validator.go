package agent

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas
var schemaFiles embed.FS

const actionSchemaURL = "https://mjaibridge.local/schemas/action.json"

// ErrInvalidOutput is returned when an agent writes something that is not an
// mjai action.
var ErrInvalidOutput = errors.New("invalid agent output")

// Validator checks agent output against the embedded action schema.
type Validator struct {
	action *jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	data, err := schemaFiles.ReadFile("schemas/action.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read action schema: %w", err)
	}
	if err := compiler.AddResource(actionSchemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add action schema: %w", err)
	}
	schema, err := compiler.Compile(actionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile action schema: %w", err)
	}
	return &Validator{action: schema}, nil
}

// ValidateAction validates one raw action line.
func (v *Validator) ValidateAction(line []byte) error {
	var doc any
	if err := json.Unmarshal(line, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := v.action.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}
