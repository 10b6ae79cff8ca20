// Package growth turns card registrations into pet progress: it assigns the
// lineage, recomputes the stage and draws a new evolution form when the stage
// rises.
package growth

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/cardpet/internal/catalog"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/metrics"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region grower
// Grower advances pets. It is safe for concurrent use; draws from the random
// source are serialized.
type Grower struct {
	config  Config
	catalog *catalog.Catalog
	logger  *zap.Logger
	metrics *metrics.Recorder

	mu  sync.Mutex
	rnd evolution.RandomSource
}

// NewGrower creates a grower. An empty lineage pool falls back to the
// catalog's lineages. logger and rec may be nil.
func NewGrower(config Config, cat *catalog.Catalog, rnd evolution.RandomSource, logger *zap.Logger, rec *metrics.Recorder) (*Grower, error) {
	if cat == nil {
		return nil, errors.New("growth: catalog is required")
	}
	if rnd == nil {
		return nil, errors.New("growth: random source is required")
	}
	if len(config.Lineages) == 0 {
		config.Lineages = cat.Lineages()
	}
	if len(config.Lineages) == 0 {
		return nil, fmt.Errorf("growth: no lineages: %w", evolution.ErrInvalidInput)
	}
	if config.Ladder.MaxStage() == 0 {
		config.Ladder = evolution.DefaultLadder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grower{
		config:  config,
		catalog: cat,
		logger:  logger,
		metrics: rec,
		rnd:     rnd,
	}, nil
}

// #endregion grower

// #region advance
// Advance computes the pet state after the owner's card count reached
// cardCount. The lineage is assigned once and never changed; the stage never
// decreases. Only failures are counted here; callers report a committed
// outcome with Record.
func (g *Grower) Advance(prev store.PetStats, cardCount int) (store.PetStats, Outcome, error) {
	computed, err := g.config.Ladder.ComputeStage(cardCount)
	if err != nil {
		g.metrics.GrowthFailed()
		return store.PetStats{}, Outcome{}, fmt.Errorf("advance %s: %w", prev.OwnerID, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	next := prev
	next.CardCount = cardCount
	out := Outcome{Decision: DecisionHold, FromStage: prev.Stage, ToStage: prev.Stage}

	if next.Lineage == "" && cardCount > 0 {
		lineage, err := evolution.PickLineage(g.config.Lineages, g.rnd)
		if err != nil {
			g.metrics.GrowthFailed()
			return store.PetStats{}, Outcome{}, fmt.Errorf("advance %s: %w", prev.OwnerID, err)
		}
		next.Lineage = lineage
		out.LineageAssigned = true
		out.Decision = DecisionLineage
	}

	if computed > next.Stage {
		next.Stage = computed
		out.Evolved = true
		out.Decision = DecisionEvolve
		out.ToStage = computed
	}

	if out.LineageAssigned || out.Evolved {
		if form, ok := evolution.PickWeighted(g.catalog.Candidates(next.Lineage, next.Stage), g.rnd); ok {
			next.EvolutionKey = form.Value
		}
	}

	out.Reason = g.reason(out, cardCount)
	g.logger.Debug("Growth computed",
		zap.String("owner", next.OwnerID),
		zap.String("decision", out.Decision),
		zap.Int("stage", int(next.Stage)),
		zap.Int("card_count", cardCount),
	)
	return next, out, nil
}

// GrowFunc adapts Advance to store.RegisterCard. The outcome of the last
// successful call is written to *out when out is non-nil.
func (g *Grower) GrowFunc(out *Outcome) store.GrowFunc {
	return func(prev store.PetStats, cardCount int) (store.PetStats, error) {
		next, o, err := g.Advance(prev, cardCount)
		if err != nil {
			return store.PetStats{}, err
		}
		if out != nil {
			*out = o
		}
		return next, nil
	}
}

func (g *Grower) reason(out Outcome, cardCount int) string {
	switch {
	case out.Evolved:
		return fmt.Sprintf("stage %d -> %d at %d cards", out.FromStage, out.ToStage, cardCount)
	case out.LineageAssigned:
		return fmt.Sprintf("lineage assigned at %d cards", cardCount)
	}
	if next, ok := g.config.Ladder.NextThreshold(out.ToStage); ok {
		return fmt.Sprintf("%d of %d cards for next stage", cardCount, next)
	}
	return "terminal stage"
}

// #endregion advance

// #region record
// Record logs and counts a committed Advance outcome.
func (g *Grower) Record(pet store.PetStats, out Outcome) {
	if out.LineageAssigned {
		g.metrics.LineageAssigned(string(pet.Lineage))
	}
	if out.Evolved {
		g.metrics.Evolved(string(pet.Lineage), int(out.ToStage))
	}
	if !out.LineageAssigned && !out.Evolved {
		return
	}
	g.logger.Info("Pet advanced",
		zap.String("owner", pet.OwnerID),
		zap.String("lineage", string(pet.Lineage)),
		zap.Int("stage", int(pet.Stage)),
		zap.String("evolution_key", pet.EvolutionKey),
		zap.Int("card_count", pet.CardCount),
		zap.String("decision", out.Decision),
	)
}

// #endregion record

// #region status
// Status reports the pet with its next evolution threshold.
func (g *Grower) Status(stats store.PetStats) PetStatus {
	next, ok := g.config.Ladder.NextThreshold(stats.Stage)
	return PetStatus{PetStats: stats, NextEvolutionAt: next, HasNext: ok}
}

// Ladder returns the grower's threshold ladder.
func (g *Grower) Ladder() evolution.Ladder {
	return g.config.Ladder
}

// #endregion status
