// Package core wires the lattice, vector store, topological memory and
// the reasoning gateway into a single retrieval-augmented orchestrator.
package core

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/lattice"
	"github.com/cortexkit/neuromem/pkg/topology"
	"github.com/cortexkit/neuromem/pkg/types"
	"github.com/cortexkit/neuromem/pkg/vectorstore"
)

const (
	vectorTopK       = 3
	graphMatchLimit  = 10
	minKeywordLength = 4

	thematicWeight         = 0.4
	hypotheticalWeight     = 0.2
	hypotheticalLinkChance = 0.05

	degradedConfidence = 0.1
)

// NeuroSymbolicCore composes the memory subsystems behind one facade.
// All mutating entry points serialize through opMu, matching the single
// logical thread of control the stores assume.
type NeuroSymbolicCore struct {
	lattice  *lattice.Lattice
	vectors  *vectorstore.VectorStore
	topology *topology.TopologicalMemory
	gateway  interfaces.ReasoningLLM
	archiver interfaces.GraphArchiver
	logger   interfaces.Logger
	metrics  interfaces.Metrics

	rng  *rand.Rand
	opMu sync.Mutex
}

// NewNeuroSymbolicCore creates the orchestrator. archiver may be nil.
func NewNeuroSymbolicCore(lat *lattice.Lattice, vectors *vectorstore.VectorStore, topo *topology.TopologicalMemory, gateway interfaces.ReasoningLLM, archiver interfaces.GraphArchiver, logger interfaces.Logger, metrics interfaces.Metrics) *NeuroSymbolicCore {
	return &NeuroSymbolicCore{
		lattice:  lat,
		vectors:  vectors,
		topology: topo,
		gateway:  gateway,
		archiver: archiver,
		logger:   logger,
		metrics:  metrics,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ExtractKeywords tokenizes a query into lowercase keywords, dropping
// short stop-word-like tokens
func ExtractKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var keywords []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) >= minKeywordLength && !seen[f] {
			seen[f] = true
			keywords = append(keywords, f)
		}
	}
	return keywords
}

// Reason answers a query through the fixed retrieval pipeline: parse
// the query, retrieve vector and graph memories, activate the lattice,
// then delegate synthesis to the reasoning gateway. Retrieval failures
// degrade the answer instead of failing it.
func (c *NeuroSymbolicCore) Reason(ctx context.Context, query string) (*types.ReasoningResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewInvalidInputError("query must not be empty")
	}

	start := time.Now()
	c.opMu.Lock()
	defer c.opMu.Unlock()

	keywords := ExtractKeywords(query)

	// Vector retrieval, best-effort
	var retrieved []*types.ScoredDocument
	docs, err := c.vectors.Search(ctx, query, vectorTopK)
	if err != nil {
		c.logger.Warn("Vector retrieval failed, continuing without it", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		retrieved = docs
	}

	// Graph memory retrieval by keyword
	var graphNodes []*types.MemoryNode
	for _, kw := range keywords {
		for _, node := range c.topology.FindByKeyword(kw, graphMatchLimit-len(graphNodes)) {
			graphNodes = append(graphNodes, node)
			if len(graphNodes) >= graphMatchLimit {
				break
			}
		}
		if len(graphNodes) >= graphMatchLimit {
			break
		}
	}

	// Inject ephemeral query-concept nodes so activation always has
	// something to latch onto
	dynamic := c.injectEphemeralNodes(keywords, retrieved, graphNodes)

	graph := c.lattice.GetActivatedSubgraph(keywords)
	if len(graph.Nodes) == 0 {
		graph = &types.Subgraph{Nodes: dynamic}
	}

	summary := buildContextSummary(graph, retrieved, graphNodes)

	result := &types.ReasoningResult{Graph: graph}
	response, err := c.gateway.Reason(ctx, query, summary)
	if err != nil {
		reqCtx := types.GetRequestContext(ctx)
		c.logger.Error("Reasoning gateway failed, degrading", err, map[string]interface{}{
			"session_id": reqCtx.SessionID,
			"request_id": reqCtx.RequestID,
		})
		result.ReasoningTrace = fmt.Sprintf("Unable to reach the reasoning gateway for %q; no additional context available.", query)
		result.Confidence = degradedConfidence
	} else {
		result.ReasoningTrace = response.Trace
		result.Confidence = response.Confidence
	}

	if c.metrics != nil {
		c.metrics.Timer("core_reason_duration", time.Since(start).Seconds(), nil)
		c.metrics.Counter("core_reason_count", 1, nil)
	}
	return result, nil
}

// injectEphemeralNodes adds query concepts and retrieved memories to the
// lattice for this session and returns the dynamic concept nodes
func (c *NeuroSymbolicCore) injectEphemeralNodes(keywords []string, retrieved []*types.ScoredDocument, graphNodes []*types.MemoryNode) []*types.LatticeNode {
	var dynamic []*types.LatticeNode
	var prev string
	for _, kw := range keywords {
		node := &types.LatticeNode{
			ID:         "query_" + lattice.Slugify(kw),
			Label:      kw,
			Type:       types.LatticeNodeConcept,
			Confidence: 0.6,
			SymbolicTags: map[string]string{
				"origin": "query",
			},
		}
		c.lattice.AddNode(node)
		dynamic = append(dynamic, node)
		if prev != "" {
			c.lattice.AddEdge(&types.LatticeEdge{
				SourceID:     prev,
				TargetID:     node.ID,
				RelationType: "co_occurring",
				Weight:       0.3,
			})
		}
		prev = node.ID
	}

	for _, doc := range retrieved {
		c.lattice.AddNode(&types.LatticeNode{
			ID:         "retrieved_" + doc.Document.ID,
			Label:      truncateLabel(doc.Document.Content),
			Type:       types.LatticeNodeMemory,
			Confidence: doc.Score,
			SymbolicTags: map[string]string{
				"origin": "vector_retrieval",
			},
		})
	}
	for _, node := range graphNodes {
		c.lattice.AddNode(&types.LatticeNode{
			ID:         "memory_" + node.ID,
			Label:      truncateLabel(node.Content),
			Type:       types.LatticeNodeMemory,
			Confidence: node.Confidence,
			SymbolicTags: map[string]string{
				"origin": "graph_retrieval",
			},
		})
	}
	return dynamic
}

// buildContextSummary renders active concepts, relationships and
// retrieved facts into the prompt context for the gateway
func buildContextSummary(graph *types.Subgraph, retrieved []*types.ScoredDocument, graphNodes []*types.MemoryNode) string {
	var sb strings.Builder

	if len(graph.Nodes) > 0 {
		sb.WriteString("Active concepts: ")
		for i, node := range graph.Nodes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(node.Label)
		}
		sb.WriteString("\n")
	}
	for _, edge := range graph.Edges {
		fmt.Fprintf(&sb, "Relationship: %s -[%s]-> %s\n", edge.SourceID, edge.RelationType, edge.TargetID)
	}
	for _, doc := range retrieved {
		fmt.Fprintf(&sb, "Recalled (%.2f): %s\n", doc.Score, doc.Document.Content)
	}
	for _, node := range graphNodes {
		fmt.Fprintf(&sb, "Known fact (%.2f): %s\n", node.Confidence, node.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Remember writes content back into long-term memory: vector store,
// topology, and naive semantic tags into the lattice. Returns the new
// topology node id.
func (c *NeuroSymbolicCore) Remember(ctx context.Context, content, parentID string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.NewInvalidInputError("content must not be empty")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	// The topology queues the content for vector indexing itself, so a
	// direct vector write here would store every memory twice
	nodeID, err := c.topology.AddMemory(ctx, content, parentID, 0.8)
	if err != nil {
		return "", err
	}

	// Mirror the node into the lattice right away so the tag ingest
	// below can anchor its related_to edges; a restart would otherwise
	// only recreate it during the next reseed.
	memoryID := "memory_" + nodeID
	c.lattice.AddNode(&types.LatticeNode{
		ID:         memoryID,
		Label:      truncateLabel(content),
		Type:       types.LatticeNodeMemory,
		Confidence: 0.8,
		SymbolicTags: map[string]string{
			"origin": "topology",
		},
	})

	if tags := ExtractKeywords(content); len(tags) > 0 {
		if len(tags) > 5 {
			tags = tags[:5]
		}
		c.lattice.IngestSemanticTags(tags, memoryID)
	}
	return nodeID, nil
}

// ValidateConsistency checks content against near-certain lattice nodes
// for textual negation and applies a circular-reasoning heuristic.
// Returns human-readable issue strings, empty when nothing was found.
func (c *NeuroSymbolicCore) ValidateConsistency(content string) []string {
	var issues []string
	lower := strings.ToLower(content)

	for _, node := range c.lattice.Nodes() {
		if node.Confidence <= 0.98 {
			continue
		}
		label := strings.ToLower(node.Label)
		if label == "" {
			continue
		}
		for _, negation := range []string{"not " + label, "no " + label, label + " is false", label + " is impossible"} {
			if strings.Contains(lower, negation) {
				issues = append(issues, fmt.Sprintf("contradicts axiom %q", node.Label))
				break
			}
		}
	}

	// Circular reasoning: premise restated inside its own conclusion
	if idx := strings.Index(lower, "therefore"); idx > 0 {
		premise := strings.TrimSpace(lower[:idx])
		conclusion := lower[idx+len("therefore"):]
		premise = strings.Trim(premise, " .,;")
		if premise != "" && strings.Contains(conclusion, premise) {
			issues = append(issues, "circular reasoning: premise restated as its own conclusion")
		}
	}
	return issues
}

// SimulateCounterfactuals produces three fixed-persona hypothetical
// prompts seeded with the current high-confidence nodes
func (c *NeuroSymbolicCore) SimulateCounterfactuals(query string) []string {
	var anchors []string
	for _, node := range c.lattice.Nodes() {
		if node.Confidence >= 0.8 {
			anchors = append(anchors, node.Label)
		}
		if len(anchors) >= 5 {
			break
		}
	}
	grounding := "no established beliefs"
	if len(anchors) > 0 {
		grounding = strings.Join(anchors, ", ")
	}

	return []string{
		fmt.Sprintf("Skeptic: assuming %s were all wrong, what would falsify %q?", grounding, query),
		fmt.Sprintf("Visionary: if %s could be extended without limit, where does %q lead?", grounding, query),
		fmt.Sprintf("Engineer: given only %s as constraints, how would you build an answer to %q?", grounding, query),
	}
}

func truncateLabel(content string) string {
	const max = 80
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	return content[:max-3] + "..."
}
