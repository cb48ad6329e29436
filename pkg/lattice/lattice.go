// Package lattice implements the ephemeral knowledge graph used for
// explainable retrieval. The graph is rebuilt each session: it has no
// persistence of its own, only an optional external archiver.
package lattice

import (
	"strings"
	"sync"
	"unicode"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// Lattice is a directed labeled graph of concept/entity/memory nodes.
// Cycles are allowed. Dangling edges are tolerated and skipped during
// traversal.
type Lattice struct {
	config  *config.LatticeConfig
	logger  interfaces.Logger
	metrics interfaces.Metrics

	nodes     map[string]*types.LatticeNode
	nodeOrder []string            // insertion order, for deterministic traversal
	edges     []*types.LatticeEdge // insertion order
	mu        sync.RWMutex
}

// NewLattice creates an empty lattice
func NewLattice(cfg *config.LatticeConfig, logger interfaces.Logger, metrics interfaces.Metrics) *Lattice {
	if cfg == nil {
		cfg = config.NewLatticeConfig()
	}
	return &Lattice{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		nodes:   make(map[string]*types.LatticeNode),
	}
}

// AddNode inserts a node; an existing id is overwritten in place
// (last write wins) without losing its traversal position
func (l *Lattice) AddNode(node *types.LatticeNode) {
	if node == nil || node.ID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.nodes[node.ID]; !exists {
		l.nodeOrder = append(l.nodeOrder, node.ID)
	}
	l.nodes[node.ID] = node
}

// AddEdge inserts an edge. Endpoints are not validated; a dangling edge
// stays in the edge list and is excluded from traversal results once
// discovered missing.
func (l *Lattice) AddEdge(edge *types.LatticeEdge) {
	if edge == nil || edge.SourceID == "" || edge.TargetID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.edges = append(l.edges, edge)
}

// GetNode retrieves a node by id
func (l *Lattice) GetNode(id string) (*types.LatticeNode, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	node, ok := l.nodes[id]
	return node, ok
}

// HasEdgeBetween reports whether any edge connects a and b in either
// direction
func (l *Lattice) HasEdgeBetween(a, b string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.edges {
		if (e.SourceID == a && e.TargetID == b) || (e.SourceID == b && e.TargetID == a) {
			return true
		}
	}
	return false
}

// Nodes returns every node in insertion order
func (l *Lattice) Nodes() []*types.LatticeNode {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*types.LatticeNode, 0, len(l.nodeOrder))
	for _, id := range l.nodeOrder {
		out = append(out, l.nodes[id])
	}
	return out
}

// NodeCount returns the number of nodes
func (l *Lattice) NodeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.nodes)
}

// EdgeCount returns the number of edges, dangling ones included
func (l *Lattice) EdgeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.edges)
}

// Snapshot returns a copy of the full graph for rendering
func (l *Lattice) Snapshot() *types.Subgraph {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sub := &types.Subgraph{
		Nodes: make([]*types.LatticeNode, 0, len(l.nodeOrder)),
		Edges: make([]*types.LatticeEdge, 0, len(l.edges)),
	}
	for _, id := range l.nodeOrder {
		sub.Nodes = append(sub.Nodes, l.nodes[id])
	}
	sub.Edges = append(sub.Edges, l.edges...)
	return sub
}

// GetActivatedSubgraph returns all nodes whose label contains any query
// token (case-insensitive substring match) plus all edges with both
// endpoints activated. Deterministic given identical graph state and
// tokens.
func (l *Lattice) GetActivatedSubgraph(queryTokens []string) *types.Subgraph {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lowered := make([]string, 0, len(queryTokens))
	for _, tok := range queryTokens {
		if tok != "" {
			lowered = append(lowered, strings.ToLower(tok))
		}
	}

	activated := make(map[string]bool, len(l.nodes))
	sub := &types.Subgraph{
		Nodes: []*types.LatticeNode{},
		Edges: []*types.LatticeEdge{},
	}

	for _, id := range l.nodeOrder {
		node := l.nodes[id]
		label := strings.ToLower(node.Label)
		for _, tok := range lowered {
			if strings.Contains(label, tok) {
				activated[id] = true
				sub.Nodes = append(sub.Nodes, node)
				break
			}
		}
	}

	for _, edge := range l.edges {
		if activated[edge.SourceID] && activated[edge.TargetID] {
			sub.Edges = append(sub.Edges, edge)
		}
	}

	if l.metrics != nil {
		l.metrics.Counter("lattice_activations", 1, nil)
	}
	return sub
}

// FindActivationPath searches breadth-first from the first node whose
// label contains startLabel to the first node whose label contains
// endLabel, following outgoing edges in insertion order. Path
// confidence is the start node's confidence multiplied by
// edge.Weight*target.Confidence for every traversed edge. The first
// path found wins, which is not necessarily the highest-confidence one.
// Returns nil when either endpoint is unresolvable or no path exists.
func (l *Lattice) FindActivationPath(startLabel, endLabel string) *types.ActivationPath {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := l.findByLabelLocked(startLabel)
	end := l.findByLabelLocked(endLabel)
	if start == nil || end == nil {
		return nil
	}

	type searchState struct {
		nodeID     string
		path       []string
		confidence float64
	}

	visited := map[string]bool{start.ID: true}
	queue := []searchState{{
		nodeID:     start.ID,
		path:       []string{start.ID},
		confidence: start.Confidence,
	}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.nodeID == end.ID {
			labels := make([]string, len(current.path))
			for i, id := range current.path {
				labels[i] = l.nodes[id].Label
			}
			return &types.ActivationPath{
				NodeIDs:    current.path,
				Labels:     labels,
				Confidence: current.confidence,
			}
		}

		for _, edge := range l.edges {
			if edge.SourceID != current.nodeID {
				continue
			}
			target, ok := l.nodes[edge.TargetID]
			if !ok || visited[edge.TargetID] {
				continue
			}
			visited[edge.TargetID] = true
			path := append(append([]string(nil), current.path...), edge.TargetID)
			queue = append(queue, searchState{
				nodeID:     edge.TargetID,
				path:       path,
				confidence: current.confidence * edge.Weight * target.Confidence,
			})
		}
	}

	return nil
}

// findByLabelLocked returns the first node (insertion order) whose label
// contains the query, case-insensitively; must be called with mu held
func (l *Lattice) findByLabelLocked(label string) *types.LatticeNode {
	needle := strings.ToLower(label)
	for _, id := range l.nodeOrder {
		if strings.Contains(strings.ToLower(l.nodes[id].Label), needle) {
			return l.nodes[id]
		}
	}
	return nil
}

// IngestSemanticTags folds a batch of extracted tags into the graph.
// Existing concepts are reinforced; new ones are created at the
// configured base confidence, linked pairwise as co-occurring, and
// linked to sourceID when it resolves to an existing node.
func (l *Lattice) IngestSemanticTags(tags []string, sourceID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var created []string
	for _, tag := range tags {
		id := Slugify(tag)
		if id == "" {
			continue
		}

		if node, exists := l.nodes[id]; exists {
			node.Confidence += l.config.ReinforceStep
			if node.Confidence > 1.0 {
				node.Confidence = 1.0
			}
			continue
		}

		l.nodes[id] = &types.LatticeNode{
			ID:         id,
			Label:      tag,
			Type:       types.LatticeNodeConcept,
			Confidence: l.config.NewTagConfidence,
			SymbolicTags: map[string]string{
				"origin": "semantic_ingest",
			},
		}
		l.nodeOrder = append(l.nodeOrder, id)
		created = append(created, id)
	}

	// One directed edge per unordered pair of newly created tags
	for i := 0; i < len(created); i++ {
		for j := i + 1; j < len(created); j++ {
			l.edges = append(l.edges, &types.LatticeEdge{
				SourceID:     created[i],
				TargetID:     created[j],
				RelationType: "co_occurring",
				Weight:       l.config.CoOccurWeight,
			})
		}
	}

	if _, sourceExists := l.nodes[sourceID]; sourceExists && sourceID != "" {
		for _, id := range created {
			l.edges = append(l.edges, &types.LatticeEdge{
				SourceID:     id,
				TargetID:     sourceID,
				RelationType: "related_to",
				Weight:       l.config.RelatedWeight,
			})
		}
	}

	return created
}

// Clear drops every node and edge
func (l *Lattice) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes = make(map[string]*types.LatticeNode)
	l.nodeOrder = nil
	l.edges = nil
}

// Slugify normalizes a tag into a stable node id
func Slugify(tag string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			sb.WriteRune('_')
		}
	}
	return strings.Trim(sb.String(), "_")
}
