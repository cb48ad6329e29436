package topology

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/types"
)

// Optimize runs the dream-state maintenance pass: consolidates nodes
// with duplicate content into the earliest occurrence, prunes ghost
// branches past their retention window, and decays every surviving
// node's confidence toward the floor. The pass is idempotent when no
// new duplicates or stale ghosts accumulate between runs.
func (tm *TopologicalMemory) Optimize(ctx context.Context) (*types.OptimizeReport, error) {
	if tm.isClosed() {
		return nil, errors.NewMemoryError("topological memory is closed")
	}

	start := time.Now()
	report := &types.OptimizeReport{}

	tm.memMu.Lock()
	tm.optimizing = true

	// Group by normalized content, in creation order so the earliest
	// member of each group becomes the primary
	ordered := make([]*types.MemoryNode, 0, len(tm.nodes))
	for _, node := range tm.nodes {
		ordered = append(ordered, node)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	groups := make(map[string][]*types.MemoryNode)
	var groupKeys []string
	for _, node := range ordered {
		key := strings.ToLower(strings.TrimSpace(node.Content))
		if _, seen := groups[key]; !seen {
			groupKeys = append(groupKeys, key)
		}
		groups[key] = append(groups[key], node)
	}
	report.Clusters = len(groupKeys)

	var removedNodeIDs []string
	for _, key := range groupKeys {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		primary := members[0]
		for _, dup := range members[1:] {
			tm.mergeIntoLocked(primary, dup)
			removedNodeIDs = append(removedNodeIDs, dup.ID)
			report.Consolidated++
		}
		primary.Confidence += tm.config.ConsolidationBoost
		if primary.Confidence > 1.0 {
			primary.Confidence = 1.0
		}
	}

	// Ghost retention
	cutoff := time.Now().Add(-tm.config.GhostRetention)
	var removedGhostIDs []string
	for id, ghost := range tm.ghosts {
		if ghost.Timestamp.Before(cutoff) {
			removedGhostIDs = append(removedGhostIDs, id)
			if origin, ok := tm.nodes[ghost.OriginNodeID]; ok {
				origin.GhostBranchIDs = removeID(origin.GhostBranchIDs, id)
			}
			delete(tm.ghosts, id)
			report.Pruned++
		}
	}

	// Confidence decay with a floor so no node fully vanishes
	for _, node := range tm.nodes {
		node.Confidence *= tm.config.DecayFactor
		if node.Confidence < tm.config.ConfidenceFloor {
			node.Confidence = tm.config.ConfidenceFloor
		}
	}

	survivors := make([]*types.MemoryNode, 0, len(tm.nodes))
	for _, node := range tm.nodes {
		survivors = append(survivors, node)
	}
	ghosts := make([]*types.GhostBranch, 0, len(tm.ghosts))
	for _, ghost := range tm.ghosts {
		ghosts = append(ghosts, ghost)
	}
	tm.optimizing = false
	tm.memMu.Unlock()

	// Single persist at the end of the pass
	tm.persistNodes(ctx, survivors...)
	tm.persistGhosts(ctx, ghosts...)
	tm.deleteNodeRecords(ctx, removedNodeIDs...)
	tm.deleteGhostRecords(ctx, removedGhostIDs...)

	if tm.metrics != nil {
		tm.metrics.Timer("topology_optimize_duration", time.Since(start).Seconds(), nil)
	}
	tm.logger.Info("Optimize pass complete", map[string]interface{}{
		"clusters":     report.Clusters,
		"consolidated": report.Consolidated,
		"pruned":       report.Pruned,
	})
	return report, nil
}

// mergeIntoLocked folds dup into primary: children and ghost branches
// move over, then dup is detached and removed. Caller holds the lock.
func (tm *TopologicalMemory) mergeIntoLocked(primary, dup *types.MemoryNode) {
	for _, childID := range dup.ChildrenIDs {
		if child, ok := tm.nodes[childID]; ok {
			child.ParentID = primary.ID
			primary.ChildrenIDs = append(primary.ChildrenIDs, childID)
		}
	}
	for _, ghostID := range dup.GhostBranchIDs {
		if ghost, ok := tm.ghosts[ghostID]; ok {
			ghost.OriginNodeID = primary.ID
			primary.GhostBranchIDs = append(primary.GhostBranchIDs, ghostID)
		}
	}
	if dup.ParentID != "" {
		if parent, ok := tm.nodes[dup.ParentID]; ok {
			parent.ChildrenIDs = removeID(parent.ChildrenIDs, dup.ID)
		}
	}
	delete(tm.nodes, dup.ID)
}

// DeleteNode removes a node. Its children are re-parented to the
// deleted node's parent; roots' children become roots themselves. Ghost
// branches of the deleted node are removed with it.
func (tm *TopologicalMemory) DeleteNode(ctx context.Context, nodeID string) error {
	if tm.isClosed() {
		return errors.NewMemoryError("topological memory is closed")
	}

	tm.memMu.Lock()
	node, ok := tm.nodes[nodeID]
	if !ok {
		tm.memMu.Unlock()
		return errors.NewMemoryNotFoundError(nodeID)
	}

	dirty, removedGhostIDs := tm.detachNodeLocked(node)
	tm.memMu.Unlock()

	tm.persistNodes(ctx, dirty...)
	tm.deleteNodeRecords(ctx, nodeID)
	tm.deleteGhostRecords(ctx, removedGhostIDs...)
	return nil
}

// detachNodeLocked removes node from the forest and returns the nodes
// whose links changed plus the ids of ghosts removed along with it.
// Caller holds the lock.
func (tm *TopologicalMemory) detachNodeLocked(node *types.MemoryNode) ([]*types.MemoryNode, []string) {
	var dirty []*types.MemoryNode

	var grandparent *types.MemoryNode
	if node.ParentID != "" {
		if p, ok := tm.nodes[node.ParentID]; ok {
			grandparent = p
			p.ChildrenIDs = removeID(p.ChildrenIDs, node.ID)
			dirty = append(dirty, p)
		}
	}

	for _, childID := range node.ChildrenIDs {
		child, ok := tm.nodes[childID]
		if !ok {
			continue
		}
		if grandparent != nil {
			child.ParentID = grandparent.ID
			grandparent.ChildrenIDs = append(grandparent.ChildrenIDs, childID)
		} else {
			child.ParentID = ""
		}
		dirty = append(dirty, child)
	}

	removedGhostIDs := make([]string, 0, len(node.GhostBranchIDs))
	for _, ghostID := range node.GhostBranchIDs {
		if _, ok := tm.ghosts[ghostID]; ok {
			delete(tm.ghosts, ghostID)
			removedGhostIDs = append(removedGhostIDs, ghostID)
		}
	}

	delete(tm.nodes, node.ID)
	return dirty, removedGhostIDs
}

// PruneMemory deletes every node whose confidence is strictly below the
// threshold and returns how many were removed
func (tm *TopologicalMemory) PruneMemory(ctx context.Context, threshold float64) (int, error) {
	if tm.isClosed() {
		return 0, errors.NewMemoryError("topological memory is closed")
	}

	tm.memMu.Lock()
	var doomed []*types.MemoryNode
	for _, node := range tm.nodes {
		if node.Confidence < threshold {
			doomed = append(doomed, node)
		}
	}

	var dirty []*types.MemoryNode
	var removedNodeIDs, removedGhostIDs []string
	for _, node := range doomed {
		// A node already detached by an earlier iteration has left the map
		if _, ok := tm.nodes[node.ID]; !ok {
			continue
		}
		d, g := tm.detachNodeLocked(node)
		dirty = append(dirty, d...)
		removedNodeIDs = append(removedNodeIDs, node.ID)
		removedGhostIDs = append(removedGhostIDs, g...)
	}
	tm.memMu.Unlock()

	tm.persistNodes(ctx, dirty...)
	tm.deleteNodeRecords(ctx, removedNodeIDs...)
	tm.deleteGhostRecords(ctx, removedGhostIDs...)
	return len(removedNodeIDs), nil
}

// CompressCluster replaces the listed nodes with a single summary node.
// The summary takes the parent of the first listed node, adopts every
// surviving child of the compressed nodes, and inherits their ghost
// branches. The rebuild is computed fully before any state changes, so
// the forest is never left half-compressed. Returns the summary node's
// id, or empty when no listed node exists.
func (tm *TopologicalMemory) CompressCluster(ctx context.Context, nodeIDs []string, summary string) (string, error) {
	if tm.isClosed() {
		return "", errors.NewMemoryError("topological memory is closed")
	}

	tm.memMu.Lock()

	compressed := make(map[string]*types.MemoryNode)
	var members []*types.MemoryNode
	for _, id := range nodeIDs {
		if node, ok := tm.nodes[id]; ok {
			if _, dup := compressed[id]; !dup {
				compressed[id] = node
				members = append(members, node)
			}
		}
	}
	if len(members) == 0 {
		tm.memMu.Unlock()
		return "", nil
	}

	// Buffered rebuild: plan everything before touching the forest
	parentID := members[0].ParentID
	if _, gone := compressed[parentID]; gone {
		parentID = ""
	}
	if parentID != "" {
		if _, ok := tm.nodes[parentID]; !ok {
			parentID = ""
		}
	}

	var adoptedChildren []string
	var adoptedGhosts []string
	var confidenceSum float64
	for _, member := range members {
		confidenceSum += member.Confidence
		for _, childID := range member.ChildrenIDs {
			if _, gone := compressed[childID]; gone {
				continue
			}
			if _, ok := tm.nodes[childID]; ok {
				adoptedChildren = append(adoptedChildren, childID)
			}
		}
		for _, ghostID := range member.GhostBranchIDs {
			if _, ok := tm.ghosts[ghostID]; ok {
				adoptedGhosts = append(adoptedGhosts, ghostID)
			}
		}
	}

	summaryNode := &types.MemoryNode{
		ID:             types.NewID(),
		Content:        summary,
		ParentID:       parentID,
		ChildrenIDs:    adoptedChildren,
		GhostBranchIDs: adoptedGhosts,
		Timestamp:      time.Now(),
		Confidence:     confidenceSum / float64(len(members)),
	}

	// Commit
	dirty := []*types.MemoryNode{summaryNode}
	tm.nodes[summaryNode.ID] = summaryNode

	if parentID != "" {
		parent := tm.nodes[parentID]
		parent.ChildrenIDs = append(parent.ChildrenIDs, summaryNode.ID)
		dirty = append(dirty, parent)
	}
	for _, childID := range adoptedChildren {
		child := tm.nodes[childID]
		child.ParentID = summaryNode.ID
		dirty = append(dirty, child)
	}
	for _, ghostID := range adoptedGhosts {
		tm.ghosts[ghostID].OriginNodeID = summaryNode.ID
	}

	removedNodeIDs := make([]string, 0, len(members))
	for _, member := range members {
		if member.ParentID != "" {
			if p, ok := tm.nodes[member.ParentID]; ok {
				p.ChildrenIDs = removeID(p.ChildrenIDs, member.ID)
				dirty = append(dirty, p)
			}
		}
		delete(tm.nodes, member.ID)
		removedNodeIDs = append(removedNodeIDs, member.ID)
	}

	ghosts := make([]*types.GhostBranch, 0, len(adoptedGhosts))
	for _, ghostID := range adoptedGhosts {
		ghosts = append(ghosts, tm.ghosts[ghostID])
	}
	tm.memMu.Unlock()

	tm.persistNodes(ctx, dirty...)
	tm.persistGhosts(ctx, ghosts...)
	tm.deleteNodeRecords(ctx, removedNodeIDs...)

	tm.logger.Info("Compressed cluster", map[string]interface{}{
		"members": len(members),
		"summary": summaryNode.ID,
	})
	return summaryNode.ID, nil
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
