package llm

import (
	"context"
	"encoding/json"

	"github.com/clearskymed/voicedesk/pkg/logging"
)

// FallbackFunctionCaller wraps a primary extraction provider with a fallback.
// If the primary fails, the same invocation is retried against the fallback.
type FallbackFunctionCaller struct {
	primary  FunctionCaller
	fallback FunctionCaller
	logger   *logging.Logger
}

// NewFallbackFunctionCaller creates a fallback-enabled extraction client.
// If fallback is nil, only the primary provider is used.
func NewFallbackFunctionCaller(primary, fallback FunctionCaller, logger *logging.Logger) *FallbackFunctionCaller {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackFunctionCaller{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Invoke tries the primary provider and falls back on any error.
func (c *FallbackFunctionCaller) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	raw, err := c.primary.Invoke(ctx, inv)
	if err == nil {
		return raw, nil
	}

	c.logger.Warn("primary extraction provider failed",
		"tool", inv.Tool.Name,
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return nil, err
	}

	raw, fallbackErr := c.fallback.Invoke(ctx, inv)
	if fallbackErr != nil {
		c.logger.Error("fallback extraction provider also failed",
			"tool", inv.Tool.Name,
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return nil, fallbackErr
	}

	c.logger.Info("fallback extraction provider succeeded", "tool", inv.Tool.Name)
	return raw, nil
}
