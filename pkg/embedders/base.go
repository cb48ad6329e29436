// Package embedders provides embedding gateway clients for neuromem
package embedders

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// BaseEmbedder provides common functionality for all embedder implementations
type BaseEmbedder struct {
	modelName string
	dimension int
	maxLength int
	timeout   time.Duration
	mu        sync.RWMutex
}

// NewBaseEmbedder creates a new base embedder instance
func NewBaseEmbedder(modelName string, dimension int) *BaseEmbedder {
	return &BaseEmbedder{
		modelName: modelName,
		dimension: dimension,
		maxLength: 512, // Default max length for most models
		timeout:   30 * time.Second,
	}
}

// GetDimension returns the embedding dimension
func (b *BaseEmbedder) GetDimension() int {
	return b.dimension
}

// GetModelName returns the model name
func (b *BaseEmbedder) GetModelName() string {
	return b.modelName
}

// SetMaxLength sets the maximum input length
func (b *BaseEmbedder) SetMaxLength(maxLength int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxLength = maxLength
}

// GetMaxLength returns the maximum input length
func (b *BaseEmbedder) GetMaxLength() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxLength
}

// SetTimeout sets the request timeout
func (b *BaseEmbedder) SetTimeout(timeout time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = timeout
}

// GetTimeout returns the request timeout
func (b *BaseEmbedder) GetTimeout() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timeout
}

// PreprocessText preprocesses text before embedding
func (b *BaseEmbedder) PreprocessText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Join(strings.Fields(text), " ")

	// Rough estimate: 4 chars per token
	if len(text) > b.maxLength*4 {
		text = text[:b.maxLength*4]
		if lastSpace := strings.LastIndex(text, " "); lastSpace > b.maxLength*3 {
			text = text[:lastSpace]
		}
	}

	return text
}

// MockEmbedder produces deterministic embeddings from token hashes. It
// never calls the network, which makes it the default for tests and for
// running the engine without an API key.
type MockEmbedder struct {
	*BaseEmbedder
	// FailFor returns an empty vector for matching texts, simulating a
	// soft gateway failure
	FailFor func(text string) bool
	closed  bool
	mu      sync.Mutex
}

// NewMockEmbedder creates a deterministic in-process embedder
func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{
		BaseEmbedder: NewBaseEmbedder("mock-embedder", dimension),
	}
}

// Embed generates a deterministic embedding for text. Tokens are hashed
// into dimensions, so texts sharing words land near each other.
func (m *MockEmbedder) Embed(ctx context.Context, text string) (types.EmbeddingVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, context.Canceled
	}
	if m.FailFor != nil && m.FailFor(text) {
		return types.EmbeddingVector{}, nil
	}

	vec := make(types.EmbeddingVector, m.GetDimension())
	tokens := strings.Fields(strings.ToLower(m.PreprocessText(text)))
	if len(tokens) == 0 {
		return types.EmbeddingVector{}, nil
	}
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		idx := int(h.Sum32()) % len(vec)
		if idx < 0 {
			idx += len(vec)
		}
		vec[idx] += 1.0
	}

	// L2-normalize so cosine similarity behaves like a real model's output
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingVector, error) {
	result := make([]types.EmbeddingVector, 0, len(texts))
	for _, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result = append(result, vec)
	}
	return result, nil
}

// Close closes the embedder
func (m *MockEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ interfaces.Embedder = (*MockEmbedder)(nil)
