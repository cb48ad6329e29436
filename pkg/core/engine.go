package core

import (
	"context"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/embedders"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/lattice"
	"github.com/cortexkit/neuromem/pkg/llm"
	"github.com/cortexkit/neuromem/pkg/persistence"
	"github.com/cortexkit/neuromem/pkg/topology"
	"github.com/cortexkit/neuromem/pkg/vectorstore"
)

// Engine owns the fully wired memory stack: persistence, gateways, the
// three stores and the orchestrator. Close releases everything in
// reverse dependency order.
type Engine struct {
	Config   *config.EngineConfig
	Logger   interfaces.Logger
	Metrics  interfaces.Metrics
	Core     *NeuroSymbolicCore
	Vectors  *vectorstore.VectorStore
	Topology *topology.TopologicalMemory
	Lattice  *lattice.Lattice

	store    persistence.Store
	embedder interfaces.Embedder
	gateway  interfaces.ReasoningLLM
	archiver interfaces.GraphArchiver
}

// NewEngine builds the full stack from configuration
func NewEngine(cfg *config.EngineConfig, logger interfaces.Logger, met interfaces.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := persistence.NewStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := embedders.NewEmbedder(cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, err
	}

	gateway, err := llm.NewReasoner(cfg.LLM)
	if err != nil {
		embedder.Close()
		store.Close()
		return nil, err
	}

	vectorColl, err := store.Collection("vector_documents")
	if err != nil {
		return nil, err
	}
	vectors, err := vectorstore.NewVectorStore(cfg.VectorStore, embedder, vectorColl, logger, met)
	if err != nil {
		return nil, err
	}

	nodesColl, err := store.Collection("memory_nodes")
	if err != nil {
		return nil, err
	}
	ghostsColl, err := store.Collection("ghost_branches")
	if err != nil {
		return nil, err
	}
	topo, err := topology.NewTopologicalMemory(cfg.Topology, nodesColl, ghostsColl, vectors, logger, met)
	if err != nil {
		return nil, err
	}

	lat := lattice.NewLattice(cfg.Lattice, logger, met)
	if cfg.Lattice.SeedFile != "" {
		if err := lat.SeedFromYAML(cfg.Lattice.SeedFile); err != nil {
			logger.Warn("Failed to seed lattice, starting empty", map[string]interface{}{
				"seed_file": cfg.Lattice.SeedFile,
				"error":     err.Error(),
			})
		}
	}
	lat.ReseedFromMemories(topo.GetAllNodes())

	var archiver interfaces.GraphArchiver
	if cfg.Lattice.ArchiverURI != "" {
		archiver, err = lattice.NewNeo4jArchiver(cfg.Lattice, logger)
		if err != nil {
			logger.Warn("Graph archiver unavailable, continuing without it", map[string]interface{}{
				"error": err.Error(),
			})
			archiver = nil
		}
	}

	return &Engine{
		Config:   cfg,
		Logger:   logger,
		Metrics:  met,
		Core:     NewNeuroSymbolicCore(lat, vectors, topo, gateway, archiver, logger, met),
		Vectors:  vectors,
		Topology: topo,
		Lattice:  lat,
		store:    store,
		embedder: embedder,
		gateway:  gateway,
		archiver: archiver,
	}, nil
}

// Close shuts the stack down
func (e *Engine) Close(ctx context.Context) error {
	if e.Topology != nil {
		e.Topology.Close()
	}
	if e.Vectors != nil {
		e.Vectors.Close()
	}
	if e.archiver != nil {
		e.archiver.Close()
	}
	if e.gateway != nil {
		e.gateway.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
