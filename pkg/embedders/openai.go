package embedders

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

// OpenAIEmbedder implements OpenAI embeddings
type OpenAIEmbedder struct {
	*BaseEmbedder
	config *config.EmbedderConfig
	client *openai.Client
}

// NewOpenAIEmbedder creates a new OpenAI embedder
func NewOpenAIEmbedder(cfg *config.EmbedderConfig) (interfaces.Embedder, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("embedder config cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError("OpenAI API key is required")
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		switch cfg.Model {
		case "text-embedding-3-large":
			dimension = 3072
		default:
			dimension = 1536
		}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	oai := &OpenAIEmbedder{
		BaseEmbedder: NewBaseEmbedder(cfg.Model, dimension),
		config:       cfg,
		client:       openai.NewClientWithConfig(clientConfig),
	}
	oai.SetMaxLength(8191) // OpenAI's max input length
	if cfg.Timeout > 0 {
		oai.SetTimeout(cfg.Timeout)
	}

	return oai, nil
}

// Embed generates an embedding for a single text
func (oe *OpenAIEmbedder) Embed(ctx context.Context, text string) (types.EmbeddingVector, error) {
	if text == "" {
		return types.EmbeddingVector{}, nil
	}

	vectors, err := oe.embedWithRetry(ctx, []string{oe.PreprocessText(text)})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return types.EmbeddingVector{}, nil
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (oe *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingVector, error) {
	if len(texts) == 0 {
		return []types.EmbeddingVector{}, nil
	}

	processed := make([]string, len(texts))
	for i, t := range texts {
		processed[i] = oe.PreprocessText(t)
	}
	return oe.embedWithRetry(ctx, processed)
}

func (oe *OpenAIEmbedder) embedWithRetry(ctx context.Context, inputs []string) ([]types.EmbeddingVector, error) {
	var vectors []types.EmbeddingVector

	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, oe.GetTimeout())
			defer cancel()

			resp, err := oe.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(oe.GetModelName()),
				Input: inputs,
			})
			if err != nil {
				return err
			}

			vectors = make([]types.EmbeddingVector, len(resp.Data))
			for i, d := range resp.Data {
				vectors[i] = types.EmbeddingVector(d.Embedding)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.NewEmbeddingError(
			fmt.Sprintf("OpenAI embedding request failed: %s", oe.GetModelName()), err)
	}
	return vectors, nil
}

// GetDimension returns the embedding dimension
func (oe *OpenAIEmbedder) GetDimension() int {
	return oe.BaseEmbedder.GetDimension()
}

// Close closes the embedder
func (oe *OpenAIEmbedder) Close() error {
	return nil
}
