package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas
var schemaFiles embed.FS

const schemaBaseURL = "https://metasino.dev/schemas/"

// dataSchemas maps a client message type to the schema for its data
// payload. Types absent from the map carry no data.
var dataSchemas = map[MessageType]string{
	MessageTypeAuth:           "auth",
	MessageTypeOpenTable:      "open_table",
	MessageTypeRegisterPlayer: "register_player",
	MessageTypeStartGame:      "table_ref",
	MessageTypeTerminate:      "table_ref",
	MessageTypeGetTable:       "table_ref",
	MessageTypeGetEvents:      "table_ref",
	MessageTypeWatch:          "table_ref",
}

// Validator checks inbound WebSocket messages against JSON schemas
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles the embedded schemas
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, entry := range entries {
		data, err := schemaFiles.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}

		url := schemaBaseURL + entry.Name()
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", entry.Name(), err)
		}

		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", entry.Name(), err)
		}

		name := entry.Name()[:len(entry.Name())-len(".json")]
		schemas[name] = schema
	}

	return &Validator{schemas: schemas}, nil
}

// ValidateMessage validates a raw client message: first the envelope, then
// the data payload for its type.
func (v *Validator) ValidateMessage(raw []byte) error {
	if err := v.validate("message", raw); err != nil {
		return fmt.Errorf("message format validation failed: %w", err)
	}

	var msg struct {
		Type MessageType     `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	name, ok := dataSchemas[msg.Type]
	if !ok {
		return nil
	}
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := v.validate(name, msg.Data); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}

func (v *Validator) validate(name string, data []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("schema not found: %s", name)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return schema.Validate(doc)
}
