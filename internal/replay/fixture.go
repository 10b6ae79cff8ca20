package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a growth replay fixture.
type Fixture struct {
	Description string `json:"description"`
	// Draws, when set, replaces the seeded source with a fixed draw sequence.
	Draws           []float64               `json:"draws,omitempty"`
	Seed            uint64                  `json:"seed"`
	Ladder          []int                   `json:"ladder,omitempty"`
	Lineages        []string                `json:"lineages,omitempty"`
	Events          []FixtureEvent          `json:"events"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureEvent is one card registration: the owner's cumulative card count
// after the event.
type FixtureEvent struct {
	Owner string `json:"owner"`
	Cards int    `json:"cards"`
}

// FixtureExpectedResult captures the expected pet after each event. Empty
// Lineage, EvolutionKey and Decision are not checked.
type FixtureExpectedResult struct {
	Owner           string `json:"owner"`
	Stage           int    `json:"stage"`
	NextEvolutionAt *int   `json:"next_evolution_at"`
	Decision        string `json:"decision,omitempty"`
	Lineage         string `json:"lineage,omitempty"`
	EvolutionKey    string `json:"evolution_key,omitempty"`
	Error           bool   `json:"error,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToGrowthConfig converts the fixture's ladder and lineages, falling back to
// the defaults when absent.
func (f *Fixture) ToGrowthConfig() (growth.Config, error) {
	cfg := growth.DefaultConfig()
	if len(f.Ladder) > 0 {
		l, err := evolution.NewLadder(f.Ladder...)
		if err != nil {
			return growth.Config{}, fmt.Errorf("fixture ladder: %w", err)
		}
		cfg.Ladder = l
	}
	if len(f.Lineages) > 0 {
		cfg.Lineages = make([]evolution.Lineage, len(f.Lineages))
		for i, l := range f.Lineages {
			cfg.Lineages[i] = evolution.Lineage(l)
		}
	}
	return cfg, nil
}

// RandomSource returns the fixture's draw sequence or its seeded source.
func (f *Fixture) RandomSource() evolution.RandomSource {
	if len(f.Draws) > 0 {
		return evolution.FixedSource(f.Draws...)
	}
	return evolution.SeededSource(f.Seed)
}

// ToEvents converts fixture events to domain events.
func (f *Fixture) ToEvents() []Event {
	events := make([]Event, len(f.Events))
	for i, e := range f.Events {
		events[i] = Event{Owner: e.Owner, Cards: e.Cards}
	}
	return events
}

// #endregion fixture-loader
