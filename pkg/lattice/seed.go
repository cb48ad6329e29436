package lattice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/types"
)

// seedFile is the YAML schema for seed knowledge
type seedFile struct {
	Nodes []seedNode `yaml:"nodes"`
	Edges []seedEdge `yaml:"edges"`
}

type seedNode struct {
	ID           string            `yaml:"id"`
	Label        string            `yaml:"label"`
	Type         string            `yaml:"type"`
	Confidence   float64           `yaml:"confidence"`
	SymbolicTags map[string]string `yaml:"symbolic_tags"`
}

type seedEdge struct {
	Source   string  `yaml:"source"`
	Target   string  `yaml:"target"`
	Relation string  `yaml:"relation"`
	Weight   float64 `yaml:"weight"`
}

// SeedFromYAML loads seed knowledge (axioms and starting concepts) from
// a YAML file into the lattice
func (l *Lattice) SeedFromYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewFileNotFoundError(path)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return errors.NewGraphError(fmt.Sprintf("failed to parse seed file %s", path), err)
	}

	for _, sn := range seed.Nodes {
		nodeType := types.LatticeNodeType(sn.Type)
		if nodeType == "" {
			nodeType = types.LatticeNodeConcept
		}
		confidence := sn.Confidence
		if confidence == 0 {
			confidence = 0.9
		}
		id := sn.ID
		if id == "" {
			id = Slugify(sn.Label)
		}
		l.AddNode(&types.LatticeNode{
			ID:           id,
			Label:        sn.Label,
			Type:         nodeType,
			Confidence:   confidence,
			SymbolicTags: sn.SymbolicTags,
		})
	}

	for _, se := range seed.Edges {
		weight := se.Weight
		if weight == 0 {
			weight = 0.5
		}
		l.AddEdge(&types.LatticeEdge{
			SourceID:     se.Source,
			TargetID:     se.Target,
			RelationType: se.Relation,
			Weight:       weight,
		})
	}

	l.logger.Info("Seeded lattice", map[string]interface{}{
		"nodes": len(seed.Nodes),
		"edges": len(seed.Edges),
	})
	return nil
}

// ReseedFromMemories rebuilds memory-type nodes from the topological
// forest. The lattice has no persistence of its own; this restores the
// memory layer of the graph at session start.
func (l *Lattice) ReseedFromMemories(nodes []*types.MemoryNode) int {
	added := 0
	for _, mn := range nodes {
		label := mn.Content
		if len(label) > 80 {
			label = label[:80]
		}
		id := "memory_" + mn.ID
		l.AddNode(&types.LatticeNode{
			ID:         id,
			Label:      label,
			Type:       types.LatticeNodeMemory,
			Confidence: mn.Confidence,
			SymbolicTags: map[string]string{
				"origin": "topology",
			},
		})
		added++

		if mn.ParentID != "" {
			l.AddEdge(&types.LatticeEdge{
				SourceID:     "memory_" + mn.ParentID,
				TargetID:     id,
				RelationType: "derives",
				Weight:       0.6,
			})
		}
	}
	return added
}
