package embedders

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

// OllamaEmbedder implements Ollama embeddings over the local HTTP API
type OllamaEmbedder struct {
	*BaseEmbedder
	config  *config.EmbedderConfig
	client  *resty.Client
	baseURL string
}

// ollamaEmbeddingRequest represents an Ollama embedding request
type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbeddingResponse represents an Ollama embedding response
type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(cfg *config.EmbedderConfig) (interfaces.Embedder, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("embedder config cannot be nil")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 768 // Default for nomic-embed-text and friends
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	ol := &OllamaEmbedder{
		BaseEmbedder: NewBaseEmbedder(cfg.Model, dimension),
		config:       cfg,
		client:       client,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
	}
	ol.SetMaxLength(2048)

	return ol, nil
}

// Embed generates an embedding for a single text
func (ol *OllamaEmbedder) Embed(ctx context.Context, text string) (types.EmbeddingVector, error) {
	if text == "" {
		return types.EmbeddingVector{}, nil
	}

	var result ollamaEmbeddingResponse

	operation := func() error {
		resp, err := ol.client.R().
			SetContext(ctx).
			SetBody(&ollamaEmbeddingRequest{
				Model:  ol.GetModelName(),
				Prompt: ol.PreprocessText(text),
			}).
			SetResult(&result).
			Post(ol.baseURL + "/api/embeddings")
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
		return nil, errors.NewEmbeddingError(
			fmt.Sprintf("Ollama embedding request failed: %s", ol.GetModelName()), err)
	}

	vec := make(types.EmbeddingVector, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts. The Ollama API has
// no batch endpoint, so requests are issued sequentially.
func (ol *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingVector, error) {
	result := make([]types.EmbeddingVector, 0, len(texts))
	for _, text := range texts {
		vec, err := ol.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result = append(result, vec)
	}
	return result, nil
}

// Close closes the embedder
func (ol *OllamaEmbedder) Close() error {
	return nil
}
