package logging

import (
	"time"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
)

// #region growth-entry
// GrowthEntry is a single row in the growth_log table.
type GrowthEntry struct {
	ID           int64             `json:"id"`
	OwnerID      string            `json:"owner_id"`
	CardID       string            `json:"card_id,omitempty"`
	FromStage    evolution.Stage   `json:"from_stage"`
	ToStage      evolution.Stage   `json:"to_stage"`
	Lineage      evolution.Lineage `json:"lineage,omitempty"`
	EvolutionKey string            `json:"evolution_key,omitempty"`
	CardCount    int               `json:"card_count"`
	Decision     string            `json:"decision"` // "lineage" | "evolve" | "hold"
	Reason       string            `json:"reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// #endregion growth-entry
