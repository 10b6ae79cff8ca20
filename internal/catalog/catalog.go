// Package catalog holds the evolution forms a pet can take for each lineage
// and stage.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// #region document
type document struct {
	Lineages []lineageDoc `yaml:"lineages"`
}

type lineageDoc struct {
	Name   string     `yaml:"name"`
	Stages []stageDoc `yaml:"stages"`
}

type stageDoc struct {
	Stage int       `yaml:"stage"`
	Forms []formDoc `yaml:"forms"`
}

type formDoc struct {
	Key    string  `yaml:"key"`
	Weight float64 `yaml:"weight"`
}

// #endregion document

// #region catalog
// Catalog maps (lineage, stage) to weighted evolution keys. It is read-only
// after construction and safe for concurrent use.
type Catalog struct {
	order []evolution.Lineage
	forms map[evolution.Lineage]map[evolution.Stage][]evolution.Candidate[string]
}

// Default returns the embedded catalog validated against the default ladder.
func Default() (*Catalog, error) {
	return Parse(defaultYAML, evolution.DefaultLadder())
}

// Load reads a YAML catalog from path.
func Load(path string, ladder evolution.Ladder) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data, ladder)
}

// Parse decodes and validates a YAML catalog. Stages must lie within the
// ladder's range.
func Parse(data []byte, ladder evolution.Ladder) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Lineages) == 0 {
		return nil, fmt.Errorf("catalog has no lineages: %w", ErrInvalidCatalog)
	}

	c := &Catalog{
		forms: make(map[evolution.Lineage]map[evolution.Stage][]evolution.Candidate[string]),
	}
	for _, ld := range doc.Lineages {
		if ld.Name == "" {
			return nil, fmt.Errorf("lineage without name: %w", ErrInvalidCatalog)
		}
		lin := evolution.Lineage(ld.Name)
		if _, dup := c.forms[lin]; dup {
			return nil, fmt.Errorf("duplicate lineage %s: %w", ld.Name, ErrInvalidCatalog)
		}
		byStage := make(map[evolution.Stage][]evolution.Candidate[string])
		seen := make(map[string]bool)
		for _, sd := range ld.Stages {
			stage := evolution.Stage(sd.Stage)
			if stage < 0 || stage > ladder.MaxStage() {
				return nil, fmt.Errorf("lineage %s: stage %d outside [0, %d]: %w",
					ld.Name, sd.Stage, ladder.MaxStage(), ErrInvalidCatalog)
			}
			for _, f := range sd.Forms {
				if f.Key == "" {
					return nil, fmt.Errorf("lineage %s stage %d: form without key: %w", ld.Name, sd.Stage, ErrInvalidCatalog)
				}
				if seen[f.Key] {
					return nil, fmt.Errorf("lineage %s: duplicate form %s: %w", ld.Name, f.Key, ErrInvalidCatalog)
				}
				seen[f.Key] = true
				byStage[stage] = append(byStage[stage], evolution.Candidate[string]{Value: f.Key, Weight: f.Weight})
			}
		}
		c.forms[lin] = byStage
		c.order = append(c.order, lin)
	}
	return c, nil
}

// Lineages returns the catalog's lineages in declaration order.
func (c *Catalog) Lineages() []evolution.Lineage {
	out := make([]evolution.Lineage, len(c.order))
	copy(out, c.order)
	return out
}

// Candidates returns a copy of the forms for lineage at stage. Unknown
// lineages or stages yield an empty slice.
func (c *Catalog) Candidates(lineage evolution.Lineage, stage evolution.Stage) []evolution.Candidate[string] {
	src := c.forms[lineage][stage]
	out := make([]evolution.Candidate[string], len(src))
	copy(out, src)
	return out
}

// #endregion catalog
