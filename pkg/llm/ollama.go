package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// OllamaReasoner implements the reasoning gateway over the Ollama HTTP API
type OllamaReasoner struct {
	config  *config.LLMConfig
	client  *resty.Client
	baseURL string
}

// ollamaGenerateRequest represents an Ollama generate request
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse represents a non-streaming Ollama response
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaReasoner creates a new Ollama reasoning gateway
func NewOllamaReasoner(cfg *config.LLMConfig) (interfaces.ReasoningLLM, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("llm config cannot be nil")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &OllamaReasoner{
		config:  cfg,
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Reason synthesizes an answer with a confidence score
func (or *OllamaReasoner) Reason(ctx context.Context, query string, contextSummary string) (*types.GatewayResponse, error) {
	var result ollamaGenerateResponse

	operation := func() error {
		resp, err := or.client.R().
			SetContext(ctx).
			SetBody(&ollamaGenerateRequest{
				Model:  or.config.Model,
				System: systemPrompt,
				Prompt: buildPrompt(query, contextSummary),
				Stream: false,
			}).
			SetResult(&result).
			Post(or.baseURL + "/api/generate")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errors.NewLLMAPIError(
			fmt.Sprintf("Ollama completion failed: %s", or.config.Model), err)
	}

	return parseResponse(result.Response), nil
}

// GetModelInfo returns model information
func (or *OllamaReasoner) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"backend": string(types.BackendOllama),
		"model":   or.config.Model,
	}
}

// Close closes the gateway
func (or *OllamaReasoner) Close() error {
	return nil
}
