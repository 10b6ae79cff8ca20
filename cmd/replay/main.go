package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/cardpet/internal/catalog"
	"github.com/danielpatrickdp/cardpet/internal/config"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/replay"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cardpet.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	owner := flag.String("owner", "", "restrict DB mode to one owner")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/cardpet.db [--owner id]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *owner)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// maxLogEntries bounds how much of growth_log DB mode reads.
const maxLogEntries = 1 << 20

// runDBMode recomputes every logged stage with the configured ladder
// (CARDPET_THRESHOLDS) and reports drift.
func runDBMode(dbPath, owner string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	ladder, err := cfg.Ladder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ladder: %v\n", err)
		return 2
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	entries, err := logging.ListGrowth(context.Background(), st.DB(), owner, maxLogEntries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list growth: %v\n", err)
		return 2
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no entries found in growth_log")
		return 2
	}
	// ListGrowth is newest first.
	slices.Reverse(entries)

	mismatches := replay.CheckLog(entries, ladder)
	drift := make(map[int]replay.Mismatch, len(mismatches))
	for _, m := range mismatches {
		drift[m.Index] = m
	}

	fmt.Printf("%-12s| %-6s| %-9s| %-9s| %s\n", "Owner", "Cards", "Logged", "Replayed", "Match")
	fmt.Printf("%-12s+%-7s+%-10s+%-10s+%s\n",
		"------------", "-------", "----------", "----------", "------")
	for i, e := range entries {
		replayed, match := fmt.Sprint(int(e.ToStage)), "OK"
		if m, ok := drift[i]; ok {
			replayed, match = m.Want, "DIFF"
		}
		fmt.Printf("%-12s| %-6d| %-9d| %-9s| %s\n", shortID(e.OwnerID), e.CardCount, int(e.ToStage), replayed, match)
	}

	return printSummary(len(entries), len(mismatches))
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	cfg, err := f.ToGrowthConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixture config: %v\n", err)
		return 2
	}
	cat, err := catalog.Default()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
		return 2
	}
	g, err := growth.NewGrower(cfg, cat, f.RandomSource(), zap.NewNop(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grower: %v\n", err)
		return 2
	}

	results, sum := replay.Replay(g, f.ToEvents())
	mismatches := replay.Compare(results, f.ExpectedResults)
	diffs := make(map[int]bool, len(mismatches))
	for _, m := range mismatches {
		diffs[m.Index] = true
	}

	fmt.Printf("%-12s| %-6s| %-8s| %-6s| %-22s| %s\n", "Owner", "Cards", "Decision", "Stage", "Form", "Match")
	fmt.Printf("%-12s+%-7s+%-9s+%-7s+%-23s+%s\n",
		"------------", "-------", "---------", "-------", "-----------------------", "------")
	for i, r := range results {
		match := "OK"
		if diffs[i] {
			match = "DIFF"
		}
		decision := r.Outcome.Decision
		if r.Err != nil {
			decision = "error"
		}
		fmt.Printf("%-12s| %-6d| %-8s| %-6d| %-22s| %s\n",
			shortID(r.Owner), r.Cards, decision, int(r.Pet.Stage), r.Pet.EvolutionKey, match)
	}
	for _, m := range mismatches {
		fmt.Println("  " + m.String())
	}
	fmt.Printf("\nEvents: %d lineage, %d evolve, %d hold, %d error\n", sum.Lineages, sum.Evolutions, sum.Holds, sum.Errors)

	return printSummary(len(results), len(diffs))
}

// #endregion fixture-mode

// #region output

// printSummary prints totals and returns the exit code.
func printSummary(total, diverge int) int {
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", total, total-diverge, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
