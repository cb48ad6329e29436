package schedulers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/core"
	"github.com/cortexkit/neuromem/pkg/embedders"
	"github.com/cortexkit/neuromem/pkg/lattice"
	"github.com/cortexkit/neuromem/pkg/llm"
	"github.com/cortexkit/neuromem/pkg/logger"
	"github.com/cortexkit/neuromem/pkg/metrics"
	"github.com/cortexkit/neuromem/pkg/persistence"
	"github.com/cortexkit/neuromem/pkg/topology"
	"github.com/cortexkit/neuromem/pkg/vectorstore"
)

func newTestScheduler(t *testing.T, interval time.Duration) (*MaintenanceScheduler, *topology.TopologicalMemory) {
	t.Helper()
	log := logger.NewTestLogger()
	met := metrics.NewNoOpMetrics()

	vectors, err := vectorstore.NewVectorStore(config.NewVectorStoreConfig(),
		embedders.NewMockEmbedder(64), persistence.NewMemoryCollection(), log, met)
	require.NoError(t, err)

	topo, err := topology.NewTopologicalMemory(config.NewTopologyConfig(),
		persistence.NewMemoryCollection(), persistence.NewMemoryCollection(), nil, log, met)
	require.NoError(t, err)

	lat := lattice.NewLattice(config.NewLatticeConfig(), log, met)
	c := core.NewNeuroSymbolicCore(lat, vectors, topo, llm.NewMockReasoner(), nil, log, met)

	t.Cleanup(func() {
		topo.Close()
		vectors.Close()
	})

	cfg := config.NewSchedulerConfig()
	cfg.Enabled = true
	cfg.DreamInterval = interval
	return NewMaintenanceScheduler(cfg, c, topo, log), topo
}

func TestSchedulerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("start and stop", func(t *testing.T) {
		s, _ := newTestScheduler(t, time.Hour)
		assert.Equal(t, "stopped", s.GetStatus())

		require.NoError(t, s.Start(ctx))
		assert.Equal(t, "running", s.GetStatus())

		require.NoError(t, s.Stop(ctx))
		assert.Equal(t, "stopped", s.GetStatus())
	})

	t.Run("double start rejected", func(t *testing.T) {
		s, _ := newTestScheduler(t, time.Hour)
		require.NoError(t, s.Start(ctx))
		assert.Error(t, s.Start(ctx))
		require.NoError(t, s.Stop(ctx))
	})

	t.Run("stop while stopped is a no-op", func(t *testing.T) {
		s, _ := newTestScheduler(t, time.Hour)
		assert.NoError(t, s.Stop(ctx))
	})
}

func TestSchedulerRunsMaintenance(t *testing.T) {
	ctx := context.Background()
	s, topo := newTestScheduler(t, 20*time.Millisecond)

	// Two duplicates for the optimize pass to consolidate
	topo.AddMemory(ctx, "a repeated observation", "", 0.5)
	topo.AddMemory(ctx, "a repeated observation", "", 0.5)

	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	assert.Eventually(t, func() bool {
		return len(topo.GetAllNodes()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
