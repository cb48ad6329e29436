package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/logger"
	"github.com/cortexkit/neuromem/pkg/metrics"
	"github.com/cortexkit/neuromem/pkg/types"
)

func newTestLattice() *Lattice {
	return NewLattice(config.NewLatticeConfig(), logger.NewTestLogger(), metrics.NewNoOpMetrics())
}

func concept(id, label string, confidence float64) *types.LatticeNode {
	return &types.LatticeNode{ID: id, Label: label, Type: types.LatticeNodeConcept, Confidence: confidence}
}

func TestLatticeAddNode(t *testing.T) {
	l := newTestLattice()

	l.AddNode(concept("x", "Cats", 0.9))
	l.AddNode(concept("y", "Dogs", 0.9))
	assert.Equal(t, 2, l.NodeCount())

	t.Run("same id overwrites in place", func(t *testing.T) {
		l.AddNode(concept("x", "Felines", 0.7))
		assert.Equal(t, 2, l.NodeCount())
		node, ok := l.GetNode("x")
		require.True(t, ok)
		assert.Equal(t, "Felines", node.Label)
	})
}

func TestLatticeActivation(t *testing.T) {
	t.Run("matching node only, no dangling edge", func(t *testing.T) {
		l := newTestLattice()
		l.AddNode(concept("x", "Cats", 0.9))
		l.AddNode(concept("y", "Dogs", 0.9))
		l.AddEdge(&types.LatticeEdge{SourceID: "x", TargetID: "y", RelationType: "related_to", Weight: 0.5})

		sub := l.GetActivatedSubgraph([]string{"cat"})
		require.Len(t, sub.Nodes, 1)
		assert.Equal(t, "x", sub.Nodes[0].ID)
		assert.Empty(t, sub.Edges)
	})

	t.Run("edge included when both endpoints activate", func(t *testing.T) {
		l := newTestLattice()
		l.AddNode(concept("x", "Cats", 0.9))
		l.AddNode(concept("y", "Catnip", 0.8))
		l.AddEdge(&types.LatticeEdge{SourceID: "x", TargetID: "y", RelationType: "enjoys", Weight: 0.7})

		sub := l.GetActivatedSubgraph([]string{"cat"})
		assert.Len(t, sub.Nodes, 2)
		require.Len(t, sub.Edges, 1)
		assert.Equal(t, "enjoys", sub.Edges[0].RelationType)
	})

	t.Run("match is case-insensitive substring", func(t *testing.T) {
		l := newTestLattice()
		l.AddNode(concept("q", "Quantum Computing", 0.9))
		sub := l.GetActivatedSubgraph([]string{"QUANTUM"})
		assert.Len(t, sub.Nodes, 1)
	})

	t.Run("deterministic across repeated calls", func(t *testing.T) {
		l := newTestLattice()
		l.AddNode(concept("a", "alpha ray", 0.9))
		l.AddNode(concept("b", "beta ray", 0.9))
		l.AddNode(concept("c", "gamma ray", 0.9))

		first := l.GetActivatedSubgraph([]string{"ray"})
		second := l.GetActivatedSubgraph([]string{"ray"})
		require.Equal(t, len(first.Nodes), len(second.Nodes))
		for i := range first.Nodes {
			assert.Equal(t, first.Nodes[i].ID, second.Nodes[i].ID)
		}
	})

	t.Run("no match yields empty subgraph", func(t *testing.T) {
		l := newTestLattice()
		l.AddNode(concept("x", "Cats", 0.9))
		sub := l.GetActivatedSubgraph([]string{"submarine"})
		assert.Empty(t, sub.Nodes)
		assert.Empty(t, sub.Edges)
	})
}

func TestFindActivationPath(t *testing.T) {
	l := newTestLattice()
	l.AddNode(concept("a", "start here", 1.0))
	l.AddNode(concept("b", "middle step", 0.5))
	l.AddNode(concept("c", "final goal", 0.8))
	l.AddEdge(&types.LatticeEdge{SourceID: "a", TargetID: "b", RelationType: "enables", Weight: 0.9})
	l.AddEdge(&types.LatticeEdge{SourceID: "b", TargetID: "c", RelationType: "enables", Weight: 0.6})

	t.Run("returns the chain with multiplied confidence", func(t *testing.T) {
		path := l.FindActivationPath("start", "goal")
		require.NotNil(t, path)
		assert.Equal(t, []string{"a", "b", "c"}, path.NodeIDs)
		assert.Equal(t, []string{"start here", "middle step", "final goal"}, path.Labels)
		// 1.0 * (0.9*0.5) * (0.6*0.8)
		assert.InDelta(t, 0.216, path.Confidence, 1e-9)
	})

	t.Run("trivial path to self", func(t *testing.T) {
		path := l.FindActivationPath("start", "start")
		require.NotNil(t, path)
		assert.Equal(t, []string{"a"}, path.NodeIDs)
		assert.InDelta(t, 1.0, path.Confidence, 1e-9)
	})

	t.Run("nil when endpoint is unknown", func(t *testing.T) {
		assert.Nil(t, l.FindActivationPath("start", "atlantis"))
		assert.Nil(t, l.FindActivationPath("atlantis", "goal"))
	})

	t.Run("nil when no path exists", func(t *testing.T) {
		l.AddNode(concept("island", "disconnected island", 0.9))
		assert.Nil(t, l.FindActivationPath("island", "goal"))
	})
}

func TestIngestSemanticTags(t *testing.T) {
	t.Run("new tags created with pairwise links", func(t *testing.T) {
		l := newTestLattice()
		created := l.IngestSemanticTags([]string{"emergence", "complexity"}, "")
		assert.Equal(t, []string{"emergence", "complexity"}, created)
		assert.Equal(t, 2, l.NodeCount())
		assert.Equal(t, 1, l.EdgeCount())

		node, ok := l.GetNode("emergence")
		require.True(t, ok)
		assert.InDelta(t, 0.8, node.Confidence, 1e-9)
		assert.Equal(t, "semantic_ingest", node.SymbolicTags["origin"])
	})

	t.Run("existing tag is reinforced, not duplicated", func(t *testing.T) {
		l := newTestLattice()
		l.IngestSemanticTags([]string{"emergence"}, "")
		created := l.IngestSemanticTags([]string{"emergence"}, "")
		assert.Empty(t, created)
		assert.Equal(t, 1, l.NodeCount())

		node, _ := l.GetNode("emergence")
		assert.InDelta(t, 0.85, node.Confidence, 1e-9)
	})

	t.Run("reinforcement caps at one", func(t *testing.T) {
		l := newTestLattice()
		l.IngestSemanticTags([]string{"certainty"}, "")
		for i := 0; i < 10; i++ {
			l.IngestSemanticTags([]string{"certainty"}, "")
		}
		node, _ := l.GetNode("certainty")
		assert.InDelta(t, 1.0, node.Confidence, 1e-9)
	})

	t.Run("created tags link back to resolving source", func(t *testing.T) {
		l := newTestLattice()
		l.AddNode(concept("memory_1", "a stored memory", 0.9))
		l.IngestSemanticTags([]string{"recall"}, "memory_1")
		assert.True(t, l.HasEdgeBetween("recall", "memory_1"))
	})

	t.Run("unresolvable source adds no edge", func(t *testing.T) {
		l := newTestLattice()
		l.IngestSemanticTags([]string{"orphaned"}, "memory_missing")
		assert.Equal(t, 0, l.EdgeCount())
	})
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Machine Learning":  "machine_learning",
		"  spaced  out  ":   "spaced__out",
		"c++-templates":     "c_templates",
		"UPPER":             "upper",
		"état d'esprit":     "état_desprit",
		"---":               "",
		"already_slugified": "already_slugified",
	}
	for input, want := range cases {
		assert.Equal(t, want, Slugify(input), "input %q", input)
	}
}

func TestLatticeClear(t *testing.T) {
	l := newTestLattice()
	l.IngestSemanticTags([]string{"one", "two"}, "")
	l.Clear()
	assert.Equal(t, 0, l.NodeCount())
	assert.Equal(t, 0, l.EdgeCount())
}
