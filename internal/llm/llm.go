package llm

import (
	"context"
	"encoding/json"
)

// Schema is a provider-neutral JSON schema fragment used to describe tool
// parameters. Each backend converts it to its native representation.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Tool describes a single structured-extraction function the model must call.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Invocation is one forced-choice structured-extraction request: the model is
// constrained to answer by calling the supplied tool, never with free text.
type Invocation struct {
	Prompt      string
	Tool        Tool
	MaxTokens   int32
	Temperature float32
}

// FunctionCaller issues a structured-extraction request and returns the raw
// JSON arguments of the forced tool call. Callers validate the payload into a
// typed value at their own boundary.
type FunctionCaller interface {
	Invoke(ctx context.Context, inv Invocation) (json.RawMessage, error)
}

// ObjectSchema is a shorthand for a required-properties object schema.
func ObjectSchema(description string, properties map[string]*Schema, required ...string) *Schema {
	return &Schema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// StringSchema builds a string property schema.
func StringSchema(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// BoolSchema builds a boolean property schema.
func BoolSchema(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// EnumSchema builds a string schema constrained to the given values.
func EnumSchema(description string, values ...string) *Schema {
	return &Schema{Type: "string", Description: description, Enum: values}
}

// jsonSchema renders the schema as the generic map shape Bedrock expects.
func (s *Schema) jsonSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.jsonSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}
