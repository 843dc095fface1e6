// Package schemadoc publishes the JSON Schema for the selector wire
// format and validates selector documents against it. The CLI runs this
// before ingesting selector JSON from outside the local store.
package schemadoc

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/quillmark/driftanchor/core/errors"
)

//go:embed selector.schema.json
var schemaJSON []byte

// SchemaID is the canonical identifier of the selector schema.
const SchemaID = "https://github.com/quillmark/driftanchor/selector-v1.schema.json"

var schema = mustCompile()

func mustCompile() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(SchemaID, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("schemadoc: add schema resource: %v", err))
	}
	s, err := compiler.Compile(SchemaID)
	if err != nil {
		panic(fmt.Sprintf("schemadoc: compile schema: %v", err))
	}
	return s
}

// SchemaJSON returns the schema document.
func SchemaJSON() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}

// Validate checks selector JSON against the schema. data may hold one
// selector object or an array of them.
func Validate(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return errors.NewParse("selector JSON", "", err.Error())
	}

	items, isSet := instance.([]any)
	if !isSet {
		items = []any{instance}
	}
	for i, item := range items {
		if err := schema.Validate(item); err != nil {
			field := "selector"
			if isSet {
				field = fmt.Sprintf("selector[%d]", i)
			}
			return errors.NewValidation(field, err.Error())
		}
	}
	return nil
}
