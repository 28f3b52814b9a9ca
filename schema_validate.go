package attrs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const outputSchemaResource = "output_schema.json"

// CompileOutputSchema compiles s as a draft-07 JSON schema.
func CompileOutputSchema(s *OutputSchema) (*jsonschema.Schema, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal output schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(outputSchemaResource, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(outputSchemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	return compiled, nil
}

// ValidateLabel checks a parsed label against a compiled output schema.
func ValidateLabel(schema *jsonschema.Schema, label map[string]LabelValue) error {
	b, err := json.Marshal(label)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

// schemaDiagnostics validates label and returns one diagnostic per leaf
// violation.
func schemaDiagnostics(schema *jsonschema.Schema, label map[string]LabelValue) []Diagnostic {
	err := ValidateLabel(schema, label)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Diagnostic{{Violation: err.Error()}}
	}
	var diags []Diagnostic
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			attr, _, _ := strings.Cut(strings.TrimPrefix(e.InstanceLocation, "/"), "/")
			d := Diagnostic{Attribute: attr, Violation: e.Message}
			if v, ok := label[attr]; ok && attr != "" {
				d.Value = v.String()
			}
			diags = append(diags, d)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return diags
}

// schemaSet compiles each distinct output schema of a run once.
type schemaSet map[string]*jsonschema.Schema

func (s schemaSet) compile(schema *OutputSchema) (*jsonschema.Schema, error) {
	if schema == nil {
		return nil, nil
	}
	key, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal output schema: %w", err)
	}
	if c, ok := s[string(key)]; ok {
		return c, nil
	}
	c, err := CompileOutputSchema(schema)
	if err != nil {
		return nil, err
	}
	s[string(key)] = c
	return c, nil
}
