package embedders

import (
	"fmt"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// NewEmbedder creates an embedder for the configured backend
func NewEmbedder(cfg *config.EmbedderConfig) (interfaces.Embedder, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("embedder config cannot be nil")
	}

	switch cfg.Backend {
	case types.BackendOpenAI:
		return NewOpenAIEmbedder(cfg)
	case types.BackendOllama:
		return NewOllamaEmbedder(cfg)
	case types.BackendMock:
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, errors.NewConfigInvalidError(
			fmt.Sprintf("unsupported embedder backend: %s", cfg.Backend))
	}
}
