package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/embedders"
	"github.com/cortexkit/neuromem/pkg/lattice"
	"github.com/cortexkit/neuromem/pkg/llm"
	"github.com/cortexkit/neuromem/pkg/logger"
	"github.com/cortexkit/neuromem/pkg/metrics"
	"github.com/cortexkit/neuromem/pkg/persistence"
	"github.com/cortexkit/neuromem/pkg/topology"
	"github.com/cortexkit/neuromem/pkg/types"
	"github.com/cortexkit/neuromem/pkg/vectorstore"
)

type coreFixture struct {
	core     *NeuroSymbolicCore
	lattice  *lattice.Lattice
	vectors  *vectorstore.VectorStore
	topology *topology.TopologicalMemory
	gateway  *llm.MockReasoner
}

func newCoreFixture(t *testing.T) *coreFixture {
	t.Helper()
	log := logger.NewTestLogger()
	met := metrics.NewNoOpMetrics()

	embedder := embedders.NewMockEmbedder(64)
	vectors, err := vectorstore.NewVectorStore(config.NewVectorStoreConfig(), embedder, persistence.NewMemoryCollection(), log, met)
	require.NoError(t, err)

	topo, err := topology.NewTopologicalMemory(config.NewTopologyConfig(),
		persistence.NewMemoryCollection(), persistence.NewMemoryCollection(), vectors, log, met)
	require.NoError(t, err)

	lat := lattice.NewLattice(config.NewLatticeConfig(), log, met)
	gateway := llm.NewMockReasoner()

	t.Cleanup(func() {
		topo.Close()
		vectors.Close()
	})

	return &coreFixture{
		core:     NewNeuroSymbolicCore(lat, vectors, topo, gateway, nil, log, met),
		lattice:  lat,
		vectors:  vectors,
		topology: topo,
		gateway:  gateway,
	}
}

func TestExtractKeywords(t *testing.T) {
	t.Run("short tokens excluded", func(t *testing.T) {
		assert.Equal(t, []string{"color", "ocean"}, ExtractKeywords("the color of the ocean"))
	})

	t.Run("lowercased and deduplicated", func(t *testing.T) {
		assert.Equal(t, []string{"whales"}, ExtractKeywords("Whales, WHALES, whales!"))
	})

	t.Run("punctuation split", func(t *testing.T) {
		assert.Equal(t, []string{"machine", "learning"}, ExtractKeywords("machine-learning?"))
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		assert.Empty(t, ExtractKeywords("a an of it"))
	})
}

func TestReason(t *testing.T) {
	ctx := context.Background()

	t.Run("retrieved memories inform the trace", func(t *testing.T) {
		f := newCoreFixture(t)
		_, err := f.vectors.Add(ctx, "The ocean covers most of the planet", nil, types.SentimentNeutral)
		require.NoError(t, err)

		result, err := f.core.Reason(ctx, "how much does the ocean cover")
		require.NoError(t, err)
		assert.Contains(t, result.ReasoningTrace, "The ocean covers most of the planet")
		assert.InDelta(t, 0.85, result.Confidence, 1e-9)
	})

	t.Run("graph is never empty", func(t *testing.T) {
		f := newCoreFixture(t)
		result, err := f.core.Reason(ctx, "completely novel subject")
		require.NoError(t, err)
		require.NotNil(t, result.Graph)
		assert.NotEmpty(t, result.Graph.Nodes)
	})

	t.Run("gateway failure degrades instead of erroring", func(t *testing.T) {
		f := newCoreFixture(t)
		f.gateway.Fail = true

		result, err := f.core.Reason(ctx, "a question the gateway never sees")
		require.NoError(t, err)
		assert.InDelta(t, degradedConfidence, result.Confidence, 1e-9)
		assert.Contains(t, result.ReasoningTrace, "no additional context available")
	})

	t.Run("topology facts reach the context", func(t *testing.T) {
		f := newCoreFixture(t)
		_, err := f.topology.AddMemory(ctx, "penguins cannot fly", "", 0.9)
		require.NoError(t, err)

		result, err := f.core.Reason(ctx, "tell me about penguins")
		require.NoError(t, err)
		assert.Contains(t, result.ReasoningTrace, "penguins cannot fly")
	})

	t.Run("blank query rejected", func(t *testing.T) {
		f := newCoreFixture(t)
		_, err := f.core.Reason(ctx, "   ")
		assert.ErrorContains(t, err, "query must not be empty")
	})
}

func TestRemember(t *testing.T) {
	ctx := context.Background()

	t.Run("writes through all three stores", func(t *testing.T) {
		f := newCoreFixture(t)
		id, err := f.core.Remember(ctx, "gravity bends spacetime around mass", "")
		require.NoError(t, err)

		_, ok := f.topology.GetNode(id)
		assert.True(t, ok)

		// Vector indexing is asynchronous
		assert.Eventually(t, func() bool {
			return f.vectors.Count() == 1
		}, 2*time.Second, 10*time.Millisecond)

		// Extracted concepts landed in the lattice
		_, ok = f.lattice.GetNode("gravity")
		assert.True(t, ok)
	})

	t.Run("provenance chain preserved", func(t *testing.T) {
		f := newCoreFixture(t)
		first, err := f.core.Remember(ctx, "we chose the simple design", "")
		require.NoError(t, err)
		second, err := f.core.Remember(ctx, "the simple design paid off", first)
		require.NoError(t, err)

		trace := f.topology.GetTrace(second)
		require.Len(t, trace, 2)
		assert.Equal(t, first, trace[0].ID)
	})

	t.Run("blank content rejected", func(t *testing.T) {
		f := newCoreFixture(t)
		_, err := f.core.Remember(ctx, "", "")
		assert.ErrorContains(t, err, "content must not be empty")
	})

	t.Run("tags anchor to the memory lattice node", func(t *testing.T) {
		f := newCoreFixture(t)
		id, err := f.core.Remember(ctx, "gravity bends spacetime around mass", "")
		require.NoError(t, err)

		memoryID := "memory_" + id
		_, ok := f.lattice.GetNode(memoryID)
		require.True(t, ok)
		assert.True(t, f.lattice.HasEdgeBetween("gravity", memoryID))

		anchored := 0
		for _, edge := range f.lattice.Snapshot().Edges {
			if edge.RelationType == "related_to" && edge.TargetID == memoryID {
				anchored++
			}
		}
		assert.Equal(t, 5, anchored)
	})
}

func TestDream(t *testing.T) {
	ctx := context.Background()

	t.Run("shared tag values link thematically", func(t *testing.T) {
		f := newCoreFixture(t)
		f.lattice.AddNode(&types.LatticeNode{
			ID: "a", Label: "jazz", Type: types.LatticeNodeConcept, Confidence: 0.9,
			SymbolicTags: map[string]string{"domain": "music"},
		})
		f.lattice.AddNode(&types.LatticeNode{
			ID: "b", Label: "blues", Type: types.LatticeNodeConcept, Confidence: 0.9,
			SymbolicTags: map[string]string{"field": "music"},
		})

		report, err := f.core.Dream(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ThematicLinks)
		assert.True(t, f.lattice.HasEdgeBetween("a", "b"))
		require.Len(t, report.Insights, 1)
		assert.Contains(t, report.Insights[0], "music")
	})

	t.Run("connected pairs are skipped", func(t *testing.T) {
		f := newCoreFixture(t)
		f.lattice.AddNode(&types.LatticeNode{
			ID: "a", Label: "tea", Confidence: 0.9, SymbolicTags: map[string]string{"k": "drink"},
		})
		f.lattice.AddNode(&types.LatticeNode{
			ID: "b", Label: "coffee", Confidence: 0.9, SymbolicTags: map[string]string{"k": "drink"},
		})
		f.lattice.AddEdge(&types.LatticeEdge{SourceID: "a", TargetID: "b", RelationType: "rivals", Weight: 0.5})

		report, err := f.core.Dream(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.ThematicLinks)
	})

	t.Run("hypothetical links stay within pair bounds", func(t *testing.T) {
		f := newCoreFixture(t)
		for _, id := range []string{"p", "q", "r", "s"} {
			f.lattice.AddNode(&types.LatticeNode{ID: id, Label: id, Confidence: 0.5})
		}

		report, err := f.core.Dream(ctx)
		require.NoError(t, err)
		// 4 nodes, 6 unordered pairs, links cannot exceed that
		assert.LessOrEqual(t, report.ThematicLinks+report.HypotheticalLinks, 6)
		assert.Zero(t, report.ThematicLinks)
	})
}

func TestValidateConsistency(t *testing.T) {
	f := newCoreFixture(t)
	f.lattice.AddNode(&types.LatticeNode{ID: "axiom", Label: "gravity", Confidence: 0.99})
	f.lattice.AddNode(&types.LatticeNode{ID: "weak", Label: "telepathy", Confidence: 0.4})

	t.Run("axiom negation flagged", func(t *testing.T) {
		issues := f.core.ValidateConsistency("There is no gravity in this room")
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0], "gravity")
	})

	t.Run("low-confidence nodes are not axioms", func(t *testing.T) {
		assert.Empty(t, f.core.ValidateConsistency("there is no telepathy"))
	})

	t.Run("circular reasoning flagged", func(t *testing.T) {
		issues := f.core.ValidateConsistency("it rains, therefore it rains")
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0], "circular")
	})

	t.Run("clean statement passes", func(t *testing.T) {
		assert.Empty(t, f.core.ValidateConsistency("clouds gather before a storm, therefore rain is likely"))
	})
}

func TestSimulateCounterfactuals(t *testing.T) {
	f := newCoreFixture(t)
	f.lattice.AddNode(&types.LatticeNode{ID: "anchor", Label: "thermodynamics", Confidence: 0.95})

	prompts := f.core.SimulateCounterfactuals("can entropy decrease")
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[0], "Skeptic")
	assert.Contains(t, prompts[1], "Visionary")
	assert.Contains(t, prompts[2], "Engineer")
	for _, p := range prompts {
		assert.Contains(t, p, "thermodynamics")
		assert.Contains(t, p, "can entropy decrease")
	}
}
