package growth

import (
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region decisions
const (
	DecisionLineage = "lineage" // first qualifying event, lineage assigned
	DecisionEvolve  = "evolve"  // stage increased
	DecisionHold    = "hold"    // count moved, stage did not
)

// #endregion decisions

// #region config
// Config holds the progression ladder and the lineage pool.
type Config struct {
	Ladder   evolution.Ladder
	Lineages []evolution.Lineage
}

// DefaultConfig returns the 3/10/25 ladder with the five built-in lineages.
func DefaultConfig() Config {
	return Config{
		Ladder:   evolution.DefaultLadder(),
		Lineages: evolution.DefaultLineages(),
	}
}

// #endregion config

// #region outcome
// Outcome describes what a single Advance call changed.
type Outcome struct {
	Decision        string
	Reason          string
	LineageAssigned bool
	Evolved         bool
	FromStage       evolution.Stage
	ToStage         evolution.Stage
}

// #endregion outcome

// #region status
// PetStatus is the pet as reported to its owner.
type PetStatus struct {
	store.PetStats
	// NextEvolutionAt is the card count for the next stage; HasNext is false
	// at the terminal stage.
	NextEvolutionAt int
	HasNext         bool
}

// #endregion status
