// Package replay runs recorded card registrations through the growth pipeline
// in memory and checks the results against expectations or a growth log.
package replay

import (
	"fmt"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region types
// Event is one card registration.
type Event struct {
	Owner string
	Cards int
}

// Result captures the pet after replaying one event.
type Result struct {
	Event
	Pet     growth.PetStatus
	Outcome growth.Outcome
	Err     error
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalEvents int
	Lineages    int
	Evolutions  int
	Holds       int
	Errors      int
	FinalPets   map[string]store.PetStats
}

// Mismatch describes one event whose result differed from expectation.
type Mismatch struct {
	Index  int
	Owner  string
	Field  string
	Want   string
	Got    string
	Reason string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("event %d (%s): %s want %s, got %s", m.Index, m.Owner, m.Field, m.Want, m.Got)
}

// #endregion types

// #region replay
// Replay feeds events through g in order, keeping one pet per owner in memory.
func Replay(g *growth.Grower, events []Event) ([]Result, Summary) {
	pets := make(map[string]store.PetStats)
	results := make([]Result, 0, len(events))
	sum := Summary{TotalEvents: len(events), FinalPets: pets}

	for _, ev := range events {
		prev, ok := pets[ev.Owner]
		if !ok {
			prev = store.PetStats{OwnerID: ev.Owner}
		}

		next, out, err := g.Advance(prev, ev.Cards)
		if err != nil {
			sum.Errors++
			results = append(results, Result{Event: ev, Pet: g.Status(prev), Err: err})
			continue
		}
		pets[ev.Owner] = next

		switch out.Decision {
		case growth.DecisionLineage:
			sum.Lineages++
		case growth.DecisionEvolve:
			sum.Evolutions++
		default:
			sum.Holds++
		}
		results = append(results, Result{Event: ev, Pet: g.Status(next), Outcome: out})
	}
	return results, sum
}

// #endregion replay

// #region compare
// Compare checks results against fixture expectations.
func Compare(results []Result, expected []FixtureExpectedResult) []Mismatch {
	var out []Mismatch
	if len(results) != len(expected) {
		return []Mismatch{{
			Index: -1,
			Field: "count",
			Want:  fmt.Sprint(len(expected)),
			Got:   fmt.Sprint(len(results)),
		}}
	}

	for i, want := range expected {
		got := results[i]
		add := func(field, w, g string) {
			if w != g {
				out = append(out, Mismatch{Index: i, Owner: got.Owner, Field: field, Want: w, Got: g, Reason: got.Outcome.Reason})
			}
		}
		add("error", fmt.Sprint(want.Error), fmt.Sprint(got.Err != nil))
		if got.Err != nil {
			continue
		}
		add("stage", fmt.Sprint(want.Stage), fmt.Sprint(int(got.Pet.Stage)))
		add("next_evolution_at", formatNext(want.NextEvolutionAt), formatNext(nextPtr(got.Pet)))
		if want.Decision != "" {
			add("decision", want.Decision, got.Outcome.Decision)
		}
		if want.Lineage != "" {
			add("lineage", want.Lineage, string(got.Pet.Lineage))
		}
		if want.EvolutionKey != "" {
			add("evolution_key", want.EvolutionKey, got.Pet.EvolutionKey)
		}
	}
	return out
}

func nextPtr(p growth.PetStatus) *int {
	if !p.HasNext {
		return nil
	}
	n := p.NextEvolutionAt
	return &n
}

func formatNext(n *int) string {
	if n == nil {
		return "none"
	}
	return fmt.Sprint(*n)
}

// #endregion compare

// #region check-log
// CheckLog recomputes the stage of every logged growth decision with ladder
// and reports entries whose recorded stage disagrees. Entries must be in
// commit order, which growth_log ids follow when rows are written inside the
// registration transaction. The pet's stage never decreases, so the expected
// stage is the running maximum per owner.
func CheckLog(entries []logging.GrowthEntry, ladder evolution.Ladder) []Mismatch {
	var out []Mismatch
	best := make(map[string]evolution.Stage)
	for i, e := range entries {
		computed, err := ladder.ComputeStage(e.CardCount)
		if err != nil {
			out = append(out, Mismatch{Index: i, Owner: e.OwnerID, Field: "card_count", Want: ">= 0", Got: fmt.Sprint(e.CardCount)})
			continue
		}
		want := max(best[e.OwnerID], computed)
		best[e.OwnerID] = want
		if e.ToStage != want {
			out = append(out, Mismatch{
				Index:  i,
				Owner:  e.OwnerID,
				Field:  "stage",
				Want:   fmt.Sprint(int(want)),
				Got:    fmt.Sprint(int(e.ToStage)),
				Reason: e.Reason,
			})
		}
	}
	return out
}

// #endregion check-log
