package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockFunctionCaller performs forced tool-use extraction through the
// Bedrock Converse API.
type BedrockFunctionCaller struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockFunctionCaller wraps a Bedrock runtime client for structured extraction.
func NewBedrockFunctionCaller(api bedrockConverseAPI, modelID string) (*BedrockFunctionCaller, error) {
	if api == nil {
		return nil, errors.New("llm: bedrock converse client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	return &BedrockFunctionCaller{api: api, modelID: modelID}, nil
}

// Invoke sends the prompt with a tool configuration whose tool choice names
// the single supplied tool, so the model cannot answer any other way.
func (c *BedrockFunctionCaller) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	if strings.TrimSpace(inv.Prompt) == "" {
		return nil, errors.New("llm: prompt is required")
	}
	if inv.Tool.Name == "" || inv.Tool.Parameters == nil {
		return nil, errors.New("llm: tool name and parameters are required")
	}

	maxTokens := inv.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	toolSpec := brtypes.ToolSpecification{
		Name: aws.String(inv.Tool.Name),
		InputSchema: &brtypes.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(inv.Tool.Parameters.jsonSchema()),
		},
	}
	if inv.Tool.Description != "" {
		toolSpec.Description = aws.String(inv.Tool.Description)
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: inv.Prompt},
				},
			},
		},
		ToolConfig: &brtypes.ToolConfiguration{
			Tools: []brtypes.Tool{
				&brtypes.ToolMemberToolSpec{Value: toolSpec},
			},
			ToolChoice: &brtypes.ToolChoiceMemberTool{
				Value: brtypes.SpecificToolChoice{Name: aws.String(inv.Tool.Name)},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(inv.Temperature),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock converse: %w", err)
	}

	return bedrockExtractToolInput(out, inv.Tool.Name)
}

func bedrockExtractToolInput(out *bedrockruntime.ConverseOutput, toolName string) (json.RawMessage, error) {
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("llm: bedrock returned no message output")
	}
	for _, block := range msg.Value.Content {
		toolUse, ok := block.(*brtypes.ContentBlockMemberToolUse)
		if !ok {
			continue
		}
		if aws.ToString(toolUse.Value.Name) != toolName {
			continue
		}
		if toolUse.Value.Input == nil {
			return nil, fmt.Errorf("llm: bedrock tool call %q carried no input", toolName)
		}
		raw, err := toolUse.Value.Input.MarshalSmithyDocument()
		if err != nil {
			return nil, fmt.Errorf("llm: decode tool input: %w", err)
		}
		return json.RawMessage(raw), nil
	}
	return nil, fmt.Errorf("llm: bedrock response contained no %q tool call", toolName)
}
