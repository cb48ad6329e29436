package llm

import (
	"fmt"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// NewReasoner creates a reasoning gateway for the configured backend
func NewReasoner(cfg *config.LLMConfig) (interfaces.ReasoningLLM, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("llm config cannot be nil")
	}

	switch cfg.Backend {
	case types.BackendOpenAI:
		return NewOpenAIReasoner(cfg)
	case types.BackendOllama:
		return NewOllamaReasoner(cfg)
	case types.BackendMock:
		return NewMockReasoner(), nil
	default:
		return nil, errors.NewConfigInvalidError(
			fmt.Sprintf("unsupported llm backend: %s", cfg.Backend))
	}
}
