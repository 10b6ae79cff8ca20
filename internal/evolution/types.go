package evolution

import (
	"errors"
	"fmt"
)

// #region errors
// ErrInvalidInput is returned for negative counts, empty lineage sets and
// malformed ladders.
var ErrInvalidInput = errors.New("invalid input")

// #endregion errors

// #region stage
// Stage is a discrete growth level. Stage 0 is the initial stage.
type Stage int

// Default ladder thresholds.
const (
	StageOneAt   = 3
	StageTwoAt   = 10
	StageThreeAt = 25
)

// #endregion stage

// #region ladder
// Ladder maps stages to the minimum cumulative count that reaches them.
// thresholds[i] is the count for stage i+1. A Ladder is immutable once built.
type Ladder struct {
	thresholds []int
}

var defaultLadder = Ladder{thresholds: []int{StageOneAt, StageTwoAt, StageThreeAt}}

// DefaultLadder returns the 3/10/25 ladder.
func DefaultLadder() Ladder {
	return defaultLadder
}

// NewLadder builds a ladder from strictly increasing positive thresholds.
func NewLadder(thresholds ...int) (Ladder, error) {
	if len(thresholds) == 0 {
		return Ladder{}, fmt.Errorf("ladder needs at least one threshold: %w", ErrInvalidInput)
	}
	prev := 0
	for i, t := range thresholds {
		if t <= prev {
			return Ladder{}, fmt.Errorf("threshold %d for stage %d must exceed %d: %w", t, i+1, prev, ErrInvalidInput)
		}
		prev = t
	}
	own := make([]int, len(thresholds))
	copy(own, thresholds)
	return Ladder{thresholds: own}, nil
}

// Thresholds returns a copy of the ladder's thresholds, lowest stage first.
func (l Ladder) Thresholds() []int {
	out := make([]int, len(l.thresholds))
	copy(out, l.thresholds)
	return out
}

// MaxStage returns the terminal stage.
func (l Ladder) MaxStage() Stage {
	return Stage(len(l.thresholds))
}

// Terminal reports whether s is at or beyond the last stage of l.
func (s Stage) Terminal(l Ladder) bool {
	return s >= l.MaxStage()
}

// #endregion ladder

// #region lineage
// Lineage is the categorical tag a pet receives on its first qualifying event.
type Lineage string

const (
	LineageAnimal    Lineage = "ANIMAL"
	LineageAncient   Lineage = "ANCIENT"
	LineageSpirit    Lineage = "SPIRIT"
	LineageArchetype Lineage = "ARCHETYPE"
	LineageData      Lineage = "DATA"
)

// DefaultLineages returns a fresh copy of the built-in lineage set.
func DefaultLineages() []Lineage {
	return []Lineage{LineageAnimal, LineageAncient, LineageSpirit, LineageArchetype, LineageData}
}

// #endregion lineage

// #region candidate
// Candidate is a value with a selection weight. Weights below 1 (including
// zero, negative and NaN) count as 1.
type Candidate[T any] struct {
	Value  T
	Weight float64
}

// EffectiveWeight returns the weight used for selection.
func (c Candidate[T]) EffectiveWeight() float64 {
	if c.Weight >= 1 {
		return c.Weight
	}
	return 1
}

// #endregion candidate

// #region random-source
// RandomSource returns a uniform sample in [0,1).
type RandomSource func() float64

// #endregion random-source
