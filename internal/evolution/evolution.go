// Package evolution computes pet growth stages from cumulative counts and
// makes reproducible random picks. Everything here is pure: the caller owns
// the state and supplies the randomness.
package evolution

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// #region compute-stage
// ComputeStage returns the highest stage whose threshold is <= count.
func (l Ladder) ComputeStage(count int) (Stage, error) {
	if count < 0 {
		return 0, fmt.Errorf("compute stage for count %d: %w", count, ErrInvalidInput)
	}
	// number of thresholds satisfied by count
	n := sort.Search(len(l.thresholds), func(i int) bool {
		return l.thresholds[i] > count
	})
	return Stage(n), nil
}

// ComputeStage evaluates count against the default ladder.
func ComputeStage(count int) (Stage, error) {
	return defaultLadder.ComputeStage(count)
}

// #endregion compute-stage

// #region next-threshold
// NextThreshold returns the count needed to reach stage+1. Non-positive stages
// report the first threshold. ok is false at or beyond the terminal stage.
func (l Ladder) NextThreshold(stage Stage) (threshold int, ok bool) {
	if len(l.thresholds) == 0 {
		return 0, false
	}
	if stage <= 0 {
		return l.thresholds[0], true
	}
	if stage >= l.MaxStage() {
		return 0, false
	}
	return l.thresholds[stage], true
}

// NextThreshold evaluates stage against the default ladder.
func NextThreshold(stage Stage) (int, bool) {
	return defaultLadder.NextThreshold(stage)
}

// #endregion next-threshold

// #region pick-weighted
// PickWeighted draws one candidate with probability proportional to its
// effective weight. It returns false only for an empty candidate list.
func PickWeighted[T any](candidates []Candidate[T], rnd RandomSource) (Candidate[T], bool) {
	if len(candidates) == 0 {
		var zero Candidate[T]
		return zero, false
	}

	var total float64
	for _, c := range candidates {
		total += c.EffectiveWeight()
	}

	cursor := rnd() * total
	for _, c := range candidates {
		cursor -= c.EffectiveWeight()
		if cursor <= 0 {
			return c, true
		}
	}
	// float rounding can leave a sliver of cursor after the last weight
	return candidates[len(candidates)-1], true
}

// #endregion pick-weighted

// #region pick-lineage
// PickLineage selects one element uniformly. A draw of exactly 1.0 maps to the
// last element.
func PickLineage[T any](lineages []T, rnd RandomSource) (T, error) {
	if len(lineages) == 0 {
		var zero T
		return zero, fmt.Errorf("pick lineage from empty set: %w", ErrInvalidInput)
	}
	idx := int(rnd() * float64(len(lineages)))
	if idx >= len(lineages) {
		idx = len(lineages) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return lineages[idx], nil
}

// #endregion pick-lineage

// #region sources
// PlatformSource draws from the process-wide math/rand/v2 generator. It is safe
// for concurrent use.
func PlatformSource() RandomSource {
	return rand.Float64
}

// SeededSource returns a reproducible source. The returned function is not
// safe for concurrent use.
func SeededSource(seed uint64) RandomSource {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return r.Float64
}

// FixedSource replays draws in order and then repeats the last one.
func FixedSource(draws ...float64) RandomSource {
	i := 0
	return func() float64 {
		if len(draws) == 0 {
			return 0
		}
		d := draws[min(i, len(draws)-1)]
		i++
		return d
	}
}

// #endregion sources
