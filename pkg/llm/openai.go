package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// OpenAIReasoner implements the reasoning gateway over the OpenAI chat API
type OpenAIReasoner struct {
	config *config.LLMConfig
	client *openai.Client
}

// NewOpenAIReasoner creates a new OpenAI reasoning gateway
func NewOpenAIReasoner(cfg *config.LLMConfig) (interfaces.ReasoningLLM, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("llm config cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIReasoner{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Reason synthesizes an answer with a confidence score
func (or *OpenAIReasoner) Reason(ctx context.Context, query string, contextSummary string) (*types.GatewayResponse, error) {
	var raw string

	err := retry.Do(
		func() error {
			reqCtx := ctx
			if or.config.Timeout > 0 {
				var cancel context.CancelFunc
				reqCtx, cancel = context.WithTimeout(ctx, or.config.Timeout)
				defer cancel()
			}

			resp, err := or.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
				Model:       or.config.Model,
				MaxTokens:   or.config.MaxTokens,
				Temperature: float32(or.config.Temperature),
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: buildPrompt(query, contextSummary)},
				},
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("empty completion response")
			}
			raw = resp.Choices[0].Message.Content
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.NewLLMAPIError(
			fmt.Sprintf("OpenAI completion failed: %s", or.config.Model), err)
	}

	return parseResponse(raw), nil
}

// GetModelInfo returns model information
func (or *OpenAIReasoner) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"backend": string(types.BackendOpenAI),
		"model":   or.config.Model,
	}
}

// Close closes the gateway
func (or *OpenAIReasoner) Close() error {
	return nil
}
