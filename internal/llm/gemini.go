package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiFunctionCaller performs forced function-calling extraction through the
// Gemini API. It serves as the fallback provider behind Bedrock.
type GeminiFunctionCaller struct {
	client  *genai.Client
	modelID string
}

// NewGeminiFunctionCaller creates a Gemini-backed structured extraction client.
func NewGeminiFunctionCaller(ctx context.Context, apiKey, modelID string) (*GeminiFunctionCaller, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}

	return &GeminiFunctionCaller{client: client, modelID: modelID}, nil
}

// Invoke constrains the model to answer by calling the supplied function
// (FunctionCallingAny with a single allowed name) and returns its arguments.
func (c *GeminiFunctionCaller) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	if strings.TrimSpace(inv.Prompt) == "" {
		return nil, errors.New("llm: prompt is required")
	}
	if inv.Tool.Name == "" || inv.Tool.Parameters == nil {
		return nil, errors.New("llm: tool name and parameters are required")
	}

	model := c.client.GenerativeModel(c.modelID)
	model.SetTemperature(inv.Temperature)
	if inv.MaxTokens > 0 {
		model.SetMaxOutputTokens(inv.MaxTokens)
	}
	model.Tools = []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        inv.Tool.Name,
					Description: inv.Tool.Description,
					Parameters:  toGenaiSchema(inv.Tool.Parameters),
				},
			},
		},
	}
	model.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{inv.Tool.Name},
		},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(inv.Prompt))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini generate: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			call, ok := part.(genai.FunctionCall)
			if !ok || call.Name != inv.Tool.Name {
				continue
			}
			raw, err := json.Marshal(call.Args)
			if err != nil {
				return nil, fmt.Errorf("llm: encode gemini tool args: %w", err)
			}
			return raw, nil
		}
	}
	return nil, fmt.Errorf("llm: gemini response contained no %q function call", inv.Tool.Name)
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGenaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func toGenaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "boolean":
		return genai.TypeBoolean
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
