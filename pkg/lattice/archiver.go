package lattice

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// Neo4jArchiver exports lattice state to a Neo4j instance. The lattice
// itself stays ephemeral; archiving exists so dream-discovered structure
// can be inspected with graph tooling. Best-effort only.
type Neo4jArchiver struct {
	driver   neo4j.DriverWithContext
	database string
	logger   interfaces.Logger
}

// NewNeo4jArchiver connects to Neo4j using the lattice archiver settings
func NewNeo4jArchiver(cfg *config.LatticeConfig, logger interfaces.Logger) (*Neo4jArchiver, error) {
	if cfg == nil || cfg.ArchiverURI == "" {
		return nil, errors.NewConfigError("archiver URI is required")
	}

	auth := neo4j.BasicAuth(cfg.ArchiverUsername, cfg.ArchiverPassword, "")
	driver, err := neo4j.NewDriverWithContext(cfg.ArchiverURI, auth)
	if err != nil {
		return nil, errors.NewGraphError("failed to create Neo4j driver", err)
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, errors.NewGraphError("failed to verify Neo4j connectivity", err)
	}

	return &Neo4jArchiver{
		driver:   driver,
		database: cfg.ArchiverDatabase,
		logger:   logger,
	}, nil
}

// ArchiveNode exports one lattice node, merging on id
func (a *Neo4jArchiver) ArchiveNode(ctx context.Context, node *types.LatticeNode) error {
	_, err := neo4j.ExecuteQuery(ctx, a.driver,
		`MERGE (n:LatticeNode {id: $id})
		 SET n.label = $label, n.type = $type, n.confidence = $confidence`,
		map[string]any{
			"id":         node.ID,
			"label":      node.Label,
			"type":       string(node.Type),
			"confidence": node.Confidence,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(a.database))
	if err != nil {
		return errors.NewGraphError(fmt.Sprintf("failed to archive node %s", node.ID), err)
	}
	return nil
}

// ArchiveEdge exports one lattice edge between previously archived nodes
func (a *Neo4jArchiver) ArchiveEdge(ctx context.Context, edge *types.LatticeEdge) error {
	_, err := neo4j.ExecuteQuery(ctx, a.driver,
		`MATCH (s:LatticeNode {id: $source}), (t:LatticeNode {id: $target})
		 MERGE (s)-[r:RELATES {type: $relation}]->(t)
		 SET r.weight = $weight`,
		map[string]any{
			"source":   edge.SourceID,
			"target":   edge.TargetID,
			"relation": edge.RelationType,
			"weight":   edge.Weight,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(a.database))
	if err != nil {
		return errors.NewGraphError(
			fmt.Sprintf("failed to archive edge %s->%s", edge.SourceID, edge.TargetID), err)
	}
	return nil
}

// Close closes the driver
func (a *Neo4jArchiver) Close() error {
	return a.driver.Close(context.Background())
}

var _ interfaces.GraphArchiver = (*Neo4jArchiver)(nil)
