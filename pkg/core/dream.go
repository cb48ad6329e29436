package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexkit/neuromem/pkg/types"
)

// Dream speculatively links unconnected lattice nodes. Pairs sharing a
// symbolic tag value get a thematic edge; a small fraction of the rest
// get a low-weight hypothetical edge. The pass is stochastic, so only
// counts and bounds are stable across runs.
func (c *NeuroSymbolicCore) Dream(ctx context.Context) (*types.DreamReport, error) {
	start := time.Now()
	c.opMu.Lock()
	defer c.opMu.Unlock()

	report := &types.DreamReport{}
	nodes := c.lattice.Nodes()

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			if c.lattice.HasEdgeBetween(a.ID, b.ID) {
				continue
			}

			if tag, ok := sharedTagValue(a, b); ok {
				c.lattice.AddEdge(&types.LatticeEdge{
					SourceID:     a.ID,
					TargetID:     b.ID,
					RelationType: "thematically_linked",
					Weight:       thematicWeight,
				})
				report.ThematicLinks++
				report.Insights = append(report.Insights,
					fmt.Sprintf("%q and %q share the theme %q", a.Label, b.Label, tag))
				continue
			}

			if c.rng.Float64() < hypotheticalLinkChance {
				c.lattice.AddEdge(&types.LatticeEdge{
					SourceID:     a.ID,
					TargetID:     b.ID,
					RelationType: "hypothetical_link",
					Weight:       hypotheticalWeight,
				})
				report.HypotheticalLinks++
				report.Insights = append(report.Insights,
					fmt.Sprintf("hypothesis: %q may relate to %q", a.Label, b.Label))
			}
		}
	}

	c.archiveLattice(ctx)

	if c.metrics != nil {
		c.metrics.Timer("core_dream_duration", time.Since(start).Seconds(), nil)
	}
	c.logger.Info("Dream pass complete", map[string]interface{}{
		"thematic_links":     report.ThematicLinks,
		"hypothetical_links": report.HypotheticalLinks,
	})
	return report, nil
}

func sharedTagValue(a, b *types.LatticeNode) (string, bool) {
	if len(a.SymbolicTags) == 0 || len(b.SymbolicTags) == 0 {
		return "", false
	}
	values := make(map[string]bool, len(a.SymbolicTags))
	for _, v := range a.SymbolicTags {
		if v != "" {
			values[v] = true
		}
	}
	for _, v := range b.SymbolicTags {
		if values[v] {
			return v, true
		}
	}
	return "", false
}

// archiveLattice exports the current lattice to the configured graph
// archiver. Best-effort, failures only logged.
func (c *NeuroSymbolicCore) archiveLattice(ctx context.Context) {
	if c.archiver == nil {
		return
	}
	snapshot := c.lattice.Snapshot()
	for _, node := range snapshot.Nodes {
		if err := c.archiver.ArchiveNode(ctx, node); err != nil {
			c.logger.Warn("Failed to archive lattice node", map[string]interface{}{
				"node_id": node.ID,
				"error":   err.Error(),
			})
			return
		}
	}
	for _, edge := range snapshot.Edges {
		if err := c.archiver.ArchiveEdge(ctx, edge); err != nil {
			c.logger.Warn("Failed to archive lattice edge", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
	}
}
