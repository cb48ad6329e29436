// Package interfaces defines the core interfaces for neuromem components
package interfaces

import (
	"context"

	"github.com/cortexkit/neuromem/pkg/types"
)

// Embedder defines the interface for embedding gateway implementations.
// An empty vector signals a soft failure; callers degrade instead of
// aborting.
type Embedder interface {
	// Embed generates an embedding for text
	Embed(ctx context.Context, text string) (types.EmbeddingVector, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingVector, error)

	// GetDimension returns the embedding dimension
	GetDimension() int

	// Close closes the embedder
	Close() error
}

// ReasoningLLM defines the interface for the external reasoning gateway
type ReasoningLLM interface {
	// Reason synthesizes an answer with a confidence score from a query
	// and a retrieval context summary
	Reason(ctx context.Context, query string, contextSummary string) (*types.GatewayResponse, error)

	// GetModelInfo returns model information
	GetModelInfo() map[string]interface{}

	// Close closes the gateway connection
	Close() error
}

// Collection defines a durable key/value document collection. Each store
// owns one logical collection (vector documents, memory nodes, ghost
// branches).
type Collection interface {
	// GetAll returns the raw JSON value of every record in the collection
	GetAll(ctx context.Context) (map[string][]byte, error)

	// Put writes one record
	Put(ctx context.Context, id string, value []byte) error

	// Delete removes one record; missing ids are not an error
	Delete(ctx context.Context, id string) error

	// Clear removes every record
	Clear(ctx context.Context) error

	// Size returns the total serialized size of the collection in bytes
	Size(ctx context.Context) (int64, error)

	// Close closes the underlying storage
	Close() error
}

// VectorIndexer is the write-side surface of the vector store consumed
// by the topological memory's background indexer
type VectorIndexer interface {
	// Add stores content with its embedding; returns the new document id,
	// or empty string when the write was rejected
	Add(ctx context.Context, content string, metadata map[string]interface{}, sentiment types.Sentiment) (string, error)
}

// GraphArchiver exports lattice state to an external graph database.
// Archiving is best-effort; failures are logged, never propagated.
type GraphArchiver interface {
	// ArchiveNode exports one lattice node
	ArchiveNode(ctx context.Context, node *types.LatticeNode) error

	// ArchiveEdge exports one lattice edge
	ArchiveEdge(ctx context.Context, edge *types.LatticeEdge) error

	// Close closes the connection
	Close() error
}

// Scheduler defines the interface for maintenance scheduling
type Scheduler interface {
	// Start starts the scheduler
	Start(ctx context.Context) error

	// Stop stops the scheduler and waits for an in-flight pass to finish
	Stop(ctx context.Context) error

	// GetStatus returns the scheduler status
	GetStatus() string
}

// Logger defines the interface for logging implementations
type Logger interface {
	// Debug logs debug level messages
	Debug(msg string, fields ...map[string]interface{})

	// Info logs info level messages
	Info(msg string, fields ...map[string]interface{})

	// Warn logs warning level messages
	Warn(msg string, fields ...map[string]interface{})

	// Error logs error level messages
	Error(msg string, err error, fields ...map[string]interface{})

	// Fatal logs fatal level messages and exits
	Fatal(msg string, err error, fields ...map[string]interface{})

	// WithFields returns a logger with additional fields
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for metrics collection
type Metrics interface {
	// Counter increments a counter metric
	Counter(name string, value float64, labels map[string]string)

	// Gauge sets a gauge metric
	Gauge(name string, value float64, labels map[string]string)

	// Histogram records a histogram metric
	Histogram(name string, value float64, labels map[string]string)

	// Timer records timing metrics
	Timer(name string, duration float64, labels map[string]string)
}
