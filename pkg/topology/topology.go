// Package topology implements the durable provenance forest of memory
// nodes with ghost branches and the maintenance operations (dream
// consolidation, decay, pruning, cluster compression) that keep it
// bounded and coherent.
package topology

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// TopologicalMemory is a persisted forest of memory nodes plus their
// ghost branches. Every mutating call persists synchronously; content
// indexing into the vector store happens on a background goroutine with
// logged-but-swallowed errors.
type TopologicalMemory struct {
	config     *config.TopologyConfig
	nodesColl  interfaces.Collection
	ghostsColl interfaces.Collection
	indexer    interfaces.VectorIndexer
	logger     interfaces.Logger
	metrics    interfaces.Metrics

	nodes  map[string]*types.MemoryNode
	ghosts map[string]*types.GhostBranch
	memMu  sync.RWMutex

	indexCh    chan string
	indexWG    sync.WaitGroup
	optimizing bool
	closed     bool
}

// NewTopologicalMemory creates the forest and loads persisted state.
// indexer may be nil, in which case background indexing is disabled.
func NewTopologicalMemory(cfg *config.TopologyConfig, nodesColl, ghostsColl interfaces.Collection, indexer interfaces.VectorIndexer, logger interfaces.Logger, metrics interfaces.Metrics) (*TopologicalMemory, error) {
	if cfg == nil {
		cfg = config.NewTopologyConfig()
	}

	tm := &TopologicalMemory{
		config:     cfg,
		nodesColl:  nodesColl,
		ghostsColl: ghostsColl,
		indexer:    indexer,
		logger:     logger,
		metrics:    metrics,
		nodes:      make(map[string]*types.MemoryNode),
		ghosts:     make(map[string]*types.GhostBranch),
		indexCh:    make(chan string, cfg.IndexQueueSize),
	}

	if err := tm.load(context.Background()); err != nil {
		return nil, err
	}

	tm.indexWG.Add(1)
	go tm.indexWorker()

	return tm, nil
}

func (tm *TopologicalMemory) load(ctx context.Context) error {
	nodeRecords, err := tm.nodesColl.GetAll(ctx)
	if err != nil {
		return errors.NewStorageErrorWithCause("failed to load memory nodes", err)
	}
	for id, raw := range nodeRecords {
		var node types.MemoryNode
		if err := json.Unmarshal(raw, &node); err != nil {
			tm.logger.Warn("Skipping unreadable memory node", map[string]interface{}{
				"node_id": id,
			})
			continue
		}
		tm.nodes[node.ID] = &node
	}

	ghostRecords, err := tm.ghostsColl.GetAll(ctx)
	if err != nil {
		return errors.NewStorageErrorWithCause("failed to load ghost branches", err)
	}
	for id, raw := range ghostRecords {
		var ghost types.GhostBranch
		if err := json.Unmarshal(raw, &ghost); err != nil {
			tm.logger.Warn("Skipping unreadable ghost branch", map[string]interface{}{
				"ghost_id": id,
			})
			continue
		}
		tm.ghosts[ghost.ID] = &ghost
	}

	if len(tm.nodes) > 0 || len(tm.ghosts) > 0 {
		tm.logger.Info("Loaded topological memory", map[string]interface{}{
			"nodes":  len(tm.nodes),
			"ghosts": len(tm.ghosts),
		})
	}
	return nil
}

// indexWorker drains the background indexing queue. Indexing failures
// never reach AddMemory callers.
func (tm *TopologicalMemory) indexWorker() {
	defer tm.indexWG.Done()
	for content := range tm.indexCh {
		if tm.indexer == nil {
			continue
		}
		if _, err := tm.indexer.Add(context.Background(), content, map[string]interface{}{
			"source": "topology",
		}, ""); err != nil {
			tm.logger.Error("Background vector indexing failed", err, map[string]interface{}{
				"content_length": len(content),
			})
		}
	}
}

// AddMemory creates a node, links it under parentID when given, persists
// synchronously, and queues the content for vector indexing. Returns the
// new node's id.
func (tm *TopologicalMemory) AddMemory(ctx context.Context, content string, parentID string, confidence float64) (string, error) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	node := &types.MemoryNode{
		ID:         types.NewID(),
		Content:    content,
		Timestamp:  time.Now(),
		Confidence: confidence,
	}

	tm.memMu.Lock()
	if tm.closed {
		tm.memMu.Unlock()
		return "", errors.NewMemoryError("topological memory is closed")
	}
	if parentID != "" {
		if parent, ok := tm.nodes[parentID]; ok {
			node.ParentID = parentID
			parent.ChildrenIDs = append(parent.ChildrenIDs, node.ID)
		} else {
			tm.logger.Warn("Parent node missing, adding as root", map[string]interface{}{
				"parent_id": parentID,
			})
		}
	}
	tm.nodes[node.ID] = node
	dirty := []*types.MemoryNode{node}
	if node.ParentID != "" {
		dirty = append(dirty, tm.nodes[node.ParentID])
	}

	// Enqueue under the lock; Close only closes the channel after it
	// has flipped the closed flag under the same lock, so this send can
	// never hit a closed channel. A full queue drops the entry rather
	// than blocking the caller.
	select {
	case tm.indexCh <- content:
	default:
		tm.logger.Warn("Index queue full, skipping background indexing", nil)
	}
	tm.memMu.Unlock()

	tm.persistNodes(ctx, dirty...)
	tm.checkQuota(ctx)

	if tm.metrics != nil {
		tm.metrics.Counter("topology_add_count", 1, nil)
	}
	return node.ID, nil
}

// AddGhostBranch records a rejected alternative under a node
func (tm *TopologicalMemory) AddGhostBranch(ctx context.Context, originNodeID, content, reason string) (string, error) {
	if tm.isClosed() {
		return "", errors.NewMemoryError("topological memory is closed")
	}

	tm.memMu.Lock()
	origin, ok := tm.nodes[originNodeID]
	if !ok {
		tm.memMu.Unlock()
		return "", errors.NewMemoryNotFoundError(originNodeID)
	}

	ghost := &types.GhostBranch{
		ID:                 types.NewID(),
		OriginNodeID:       originNodeID,
		Content:            content,
		ReasonForRejection: reason,
		Timestamp:          time.Now(),
	}
	tm.ghosts[ghost.ID] = ghost
	origin.GhostBranchIDs = append(origin.GhostBranchIDs, ghost.ID)
	tm.memMu.Unlock()

	tm.persistNodes(ctx, origin)
	tm.persistGhosts(ctx, ghost)
	tm.checkQuota(ctx)

	return ghost.ID, nil
}

// GetNode retrieves a node by id
func (tm *TopologicalMemory) GetNode(id string) (*types.MemoryNode, bool) {
	tm.memMu.RLock()
	defer tm.memMu.RUnlock()
	node, ok := tm.nodes[id]
	return node, ok
}

// GetAllNodes returns every node ordered by creation time
func (tm *TopologicalMemory) GetAllNodes() []*types.MemoryNode {
	tm.memMu.RLock()
	defer tm.memMu.RUnlock()

	out := make([]*types.MemoryNode, 0, len(tm.nodes))
	for _, node := range tm.nodes {
		out = append(out, node)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// FindByKeyword returns up to limit nodes whose content contains the
// keyword, case-insensitively, oldest first
func (tm *TopologicalMemory) FindByKeyword(keyword string, limit int) []*types.MemoryNode {
	needle := strings.ToLower(keyword)
	var out []*types.MemoryNode
	for _, node := range tm.GetAllNodes() {
		if strings.Contains(strings.ToLower(node.Content), needle) {
			out = append(out, node)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// GetTrace walks parent links upward and returns the path from the root
// to nodeID inclusive. Malformed data (missing parent, cycles) stops the
// walk instead of failing.
func (tm *TopologicalMemory) GetTrace(nodeID string) []*types.MemoryNode {
	tm.memMu.RLock()
	defer tm.memMu.RUnlock()

	var reversed []*types.MemoryNode
	visited := make(map[string]bool)

	current, ok := tm.nodes[nodeID]
	for ok && !visited[current.ID] {
		visited[current.ID] = true
		reversed = append(reversed, current)
		if current.ParentID == "" {
			break
		}
		current, ok = tm.nodes[current.ParentID]
	}

	trace := make([]*types.MemoryNode, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		trace = append(trace, reversed[i])
	}
	return trace
}

// GetGhostBranchesForTrace returns the ghost branches attached to every
// node on the trace of nodeID
func (tm *TopologicalMemory) GetGhostBranchesForTrace(nodeID string) []*types.GhostBranch {
	trace := tm.GetTrace(nodeID)

	tm.memMu.RLock()
	defer tm.memMu.RUnlock()

	var out []*types.GhostBranch
	for _, node := range trace {
		for _, ghostID := range node.GhostBranchIDs {
			if ghost, ok := tm.ghosts[ghostID]; ok {
				out = append(out, ghost)
			}
		}
	}
	return out
}

// Stats returns size statistics for the forest
func (tm *TopologicalMemory) Stats(ctx context.Context) map[string]int64 {
	tm.memMu.RLock()
	nodes := int64(len(tm.nodes))
	ghosts := int64(len(tm.ghosts))
	tm.memMu.RUnlock()

	var size int64
	if s, err := tm.nodesColl.Size(ctx); err == nil {
		size += s
	}
	if s, err := tm.ghostsColl.Size(ctx); err == nil {
		size += s
	}

	return map[string]int64{
		"nodes":      nodes,
		"ghosts":     ghosts,
		"size_bytes": size,
	}
}

// Close stops the background indexer and marks the forest closed
func (tm *TopologicalMemory) Close() error {
	tm.memMu.Lock()
	if tm.closed {
		tm.memMu.Unlock()
		return nil
	}
	tm.closed = true
	tm.memMu.Unlock()

	close(tm.indexCh)
	tm.indexWG.Wait()
	return nil
}

func (tm *TopologicalMemory) isClosed() bool {
	tm.memMu.RLock()
	defer tm.memMu.RUnlock()
	return tm.closed
}

// persistNodes writes the given nodes to the node collection; failures
// are logged, not returned, per the degradation policy
func (tm *TopologicalMemory) persistNodes(ctx context.Context, nodes ...*types.MemoryNode) {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		data, err := json.Marshal(node)
		if err != nil {
			tm.logger.Error("Failed to serialize memory node", err, map[string]interface{}{
				"node_id": node.ID,
			})
			continue
		}
		if err := tm.nodesColl.Put(ctx, node.ID, data); err != nil {
			tm.logger.Error("Failed to persist memory node", err, map[string]interface{}{
				"node_id": node.ID,
			})
		}
	}
}

// persistGhosts writes the given ghost branches to the ghost collection
func (tm *TopologicalMemory) persistGhosts(ctx context.Context, ghosts ...*types.GhostBranch) {
	for _, ghost := range ghosts {
		if ghost == nil {
			continue
		}
		data, err := json.Marshal(ghost)
		if err != nil {
			tm.logger.Error("Failed to serialize ghost branch", err, map[string]interface{}{
				"ghost_id": ghost.ID,
			})
			continue
		}
		if err := tm.ghostsColl.Put(ctx, ghost.ID, data); err != nil {
			tm.logger.Error("Failed to persist ghost branch", err, map[string]interface{}{
				"ghost_id": ghost.ID,
			})
		}
	}
}

func (tm *TopologicalMemory) deleteNodeRecords(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if err := tm.nodesColl.Delete(ctx, id); err != nil {
			tm.logger.Error("Failed to delete persisted node", err, map[string]interface{}{
				"node_id": id,
			})
		}
	}
}

func (tm *TopologicalMemory) deleteGhostRecords(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if err := tm.ghostsColl.Delete(ctx, id); err != nil {
			tm.logger.Error("Failed to delete persisted ghost", err, map[string]interface{}{
				"ghost_id": id,
			})
		}
	}
}

// checkQuota runs a proactive Optimize when the persisted size crosses
// the configured quota
func (tm *TopologicalMemory) checkQuota(ctx context.Context) {
	tm.memMu.RLock()
	optimizing := tm.optimizing
	tm.memMu.RUnlock()
	if optimizing {
		return
	}

	var size int64
	if s, err := tm.nodesColl.Size(ctx); err == nil {
		size += s
	}
	if s, err := tm.ghostsColl.Size(ctx); err == nil {
		size += s
	}
	if size <= tm.config.QuotaBytes {
		return
	}

	tm.logger.Warn("Serialized size over quota, running optimize", map[string]interface{}{
		"size_bytes":  size,
		"quota_bytes": tm.config.QuotaBytes,
	})
	if _, err := tm.Optimize(ctx); err != nil {
		tm.logger.Error("Quota-triggered optimize failed", err, nil)
	}
}
