package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const editSchemaURL = "https://rgsim.local/schemas/edit.schema.json"

// Validator checks raw editor requests against the embedded request schema.
type Validator struct {
	edit *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	b, err := schemaFS.ReadFile("schemas/edit.schema.json")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(editSchemaURL, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	s, err := c.Compile(editSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile edit schema: %w", err)
	}
	return &Validator{edit: s}, nil
}

// Validate decodes raw and checks it against the request schema.
func (v *Validator) Validate(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	return v.edit.Validate(doc)
}
