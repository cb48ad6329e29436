// Package types defines the core types shared across neuromem components
package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sentiment is a closed tag set attached to stored documents
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentNegative   Sentiment = "negative"
	SentimentAnalytical Sentiment = "analytical"
)

// IsValid reports whether s is one of the known sentiment tags (or empty)
func (s Sentiment) IsValid() bool {
	switch s {
	case "", SentimentPositive, SentimentNeutral, SentimentNegative, SentimentAnalytical:
		return true
	}
	return false
}

// EmbeddingVector represents an embedding vector
type EmbeddingVector []float32

// VectorDocument is a persisted textual memory with its embedding.
// Documents are immutable after insertion; TemporalWeight is computed
// at read time and never persisted.
type VectorDocument struct {
	ID             string                 `json:"id"`
	Content        string                 `json:"content"`
	Embedding      EmbeddingVector        `json:"embedding"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Sentiment      Sentiment              `json:"sentiment,omitempty"`
	TemporalWeight float64                `json:"-"`
}

// ScoredDocument pairs a document with its blended retrieval score
type ScoredDocument struct {
	Document *VectorDocument `json:"document"`
	Score    float64         `json:"score"`
}

// MemoryNode is a node in the topological provenance forest.
// ChildrenIDs and ParentID are maintained bidirectionally: every id in
// ChildrenIDs of node A refers to a node whose ParentID is A.ID.
type MemoryNode struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Confidence     float64   `json:"confidence"`
	Tags           []string  `json:"tags,omitempty"`
	ParentID       string    `json:"parent_id,omitempty"`
	ChildrenIDs    []string  `json:"children_ids,omitempty"`
	GhostBranchIDs []string  `json:"ghost_branch_ids,omitempty"`
}

// GhostBranch records a rejected alternative continuation of a memory
// node. Branches older than the retention window are pruned during
// optimization.
type GhostBranch struct {
	ID                 string    `json:"id"`
	OriginNodeID       string    `json:"origin_node_id"`
	Content            string    `json:"content"`
	ReasonForRejection string    `json:"reason_for_rejection"`
	Timestamp          time.Time `json:"timestamp"`
}

// LatticeNodeType represents the kind of a lattice node
type LatticeNodeType string

const (
	LatticeNodeConcept LatticeNodeType = "concept"
	LatticeNodeEntity  LatticeNodeType = "entity"
	LatticeNodeMemory  LatticeNodeType = "memory"
	LatticeNodeGhost   LatticeNodeType = "ghost"
)

// LatticeNode is a node in the ephemeral knowledge graph
type LatticeNode struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Type         LatticeNodeType   `json:"type"`
	Confidence   float64           `json:"confidence"`
	SymbolicTags map[string]string `json:"symbolic_tags,omitempty"`
	Vector       EmbeddingVector   `json:"vector,omitempty"`
}

// LatticeEdge is a weighted, typed, directed edge between lattice nodes.
// Edges may dangle: traversal code skips edges whose endpoints are gone.
type LatticeEdge struct {
	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	RelationType string  `json:"relation_type"`
	Weight       float64 `json:"weight"`
}

// Subgraph is the activated slice of the lattice returned to callers
// for rendering and explanation
type Subgraph struct {
	Nodes []*LatticeNode `json:"nodes"`
	Edges []*LatticeEdge `json:"edges"`
}

// ActivationPath is the result of a lattice path search
type ActivationPath struct {
	NodeIDs    []string `json:"node_ids"`
	Labels     []string `json:"labels"`
	Confidence float64  `json:"confidence"`
}

// OptimizeReport summarizes a consolidation pass over the memory forest
type OptimizeReport struct {
	Clusters     int `json:"clusters"`
	Pruned       int `json:"pruned"`
	Consolidated int `json:"consolidated"`
}

// DreamReport summarizes a speculative linking pass over the lattice
type DreamReport struct {
	ThematicLinks     int      `json:"thematic_links"`
	HypotheticalLinks int      `json:"hypothetical_links"`
	Insights          []string `json:"insights"`
}

// ReasoningResult is the orchestrator's answer to a query
type ReasoningResult struct {
	ReasoningTrace string    `json:"reasoning_trace"`
	Confidence     float64   `json:"confidence"`
	Graph          *Subgraph `json:"graph"`
}

// GatewayResponse is the raw reply from the external reasoning gateway
type GatewayResponse struct {
	Trace      string  `json:"trace"`
	Confidence float64 `json:"confidence"`
}

// BackendType represents the type of an external backend
type BackendType string

const (
	BackendOpenAI BackendType = "openai"
	BackendOllama BackendType = "ollama"
	BackendMock   BackendType = "mock"
)

// StorageBackend represents the type of a persistence backend
type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendSQLite StorageBackend = "sqlite"
	StorageBackendMemory StorageBackend = "memory"
)

// Error types for better error handling
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
)

// NeuromemError represents a structured error in neuromem
type NeuromemError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *NeuromemError) Error() string {
	return e.Message
}

// Context keys for request context
type ContextKey string

const (
	ContextKeySessionID ContextKey = "session_id"
	ContextKeyRequestID ContextKey = "request_id"
)

// RequestContext holds request-specific context information
type RequestContext struct {
	SessionID string
	RequestID string
}

// GetRequestContext extracts request context from Go context
func GetRequestContext(ctx context.Context) *RequestContext {
	return &RequestContext{
		SessionID: getStringFromContext(ctx, ContextKeySessionID),
		RequestID: getStringFromContext(ctx, ContextKeyRequestID),
	}
}

func getStringFromContext(ctx context.Context, key ContextKey) string {
	if value := ctx.Value(key); value != nil {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return ""
}

// NewRequestContext creates a new request context with a generated request ID
func NewRequestContext(sessionID string) *RequestContext {
	return &RequestContext{
		SessionID: sessionID,
		RequestID: uuid.New().String(),
	}
}

// NewID returns a freshly generated unique identifier
func NewID() string {
	return uuid.New().String()
}
