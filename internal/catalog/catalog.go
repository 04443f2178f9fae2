// Package catalog loads designer-authored decay chain documents and feeds
// them into the engine's chain registry.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"emberfall/server/internal/decay"
)

// StageDocument is one authored stage. Durations are logical ticks; jitter
// widens the stage by a random amount in [0, jitter]. The action decides
// what firing does: "advance" to the next stage, "transform" into the result
// kind, or "destroy" the entity.
type StageDocument struct {
	Duration uint64 `yaml:"duration" json:"duration" jsonschema:"required,description=Baseline stage length in ticks."`
	Jitter   uint64 `yaml:"jitter,omitempty" json:"jitter,omitempty" jsonschema:"description=Random widening of the stage in ticks."`
	Action   string `yaml:"action" json:"action" jsonschema:"required,enum=advance,enum=transform,enum=destroy"`
	Result   string `yaml:"result,omitempty" json:"result,omitempty" jsonschema:"description=Replacement entity kind for transform stages."`
}

// Document is a full catalog file: chain identifiers mapped to their stages.
type Document struct {
	Chains map[string][]StageDocument `yaml:"chains" json:"chains" jsonschema:"required"`
}

// Parse decodes a catalog document from YAML.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("catalog: unmarshal: %w", err)
	}
	if len(doc.Chains) == 0 {
		return Document{}, fmt.Errorf("catalog: document defines no chains")
	}
	return doc, nil
}

// Load reads and decodes the catalog file at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("catalog: load %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return doc, nil
}

// Apply registers every chain of the document. Chains register in sorted
// identifier order so validation failures point at a stable chain.
func (d Document) Apply(registry *decay.Registry) error {
	ids := make([]string, 0, len(d.Chains))
	for id := range d.Chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		stages, err := translateStages(id, d.Chains[id])
		if err != nil {
			return err
		}
		if err := registry.Register(id, stages); err != nil {
			return err
		}
	}
	return nil
}

func translateStages(chainID string, docs []StageDocument) ([]decay.Stage, error) {
	stages := make([]decay.Stage, 0, len(docs))
	for i, doc := range docs {
		action, err := parseAction(doc.Action)
		if err != nil {
			return nil, fmt.Errorf("catalog: chain %q stage %d: %w", chainID, i, err)
		}
		if action != decay.ActionTransform && doc.Result != "" {
			return nil, fmt.Errorf("catalog: chain %q stage %d: result is only valid on transform stages", chainID, i)
		}
		stages = append(stages, decay.Stage{
			Duration: decay.Tick(doc.Duration),
			Jitter:   decay.Tick(doc.Jitter),
			Action:   action,
			Result:   doc.Result,
		})
	}
	return stages, nil
}

func parseAction(name string) (decay.Action, error) {
	switch name {
	case "advance":
		return decay.ActionAdvance, nil
	case "transform":
		return decay.ActionTransform, nil
	case "destroy":
		return decay.ActionDestroy, nil
	case "":
		return 0, fmt.Errorf("missing action")
	default:
		return 0, fmt.Errorf("unknown action %q", name)
	}
}
