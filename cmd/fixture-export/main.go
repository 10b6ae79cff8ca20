package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/danielpatrickdp/cardpet/internal/config"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/replay"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cardpet.db")
	owner := flag.String("owner", "", "export only this owner's history")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/cardpet.db --out path/to/fixture.json [--owner id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *owner, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

// maxLogEntries bounds how much of growth_log is exported.
const maxLogEntries = 1 << 20

func run(dbPath, owner, outPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ladder, err := cfg.Ladder()
	if err != nil {
		return fmt.Errorf("ladder: %w", err)
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	entries, err := logging.ListGrowth(context.Background(), st.DB(), owner, maxLogEntries)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no growth_log entries found")
	}
	slices.Reverse(entries)

	f := buildFixture(entries, ladder)
	if owner != "" {
		f.Description = fmt.Sprintf("growth history of %s exported from %s", owner, dbPath)
	} else {
		f.Description = fmt.Sprintf("growth history exported from %s", dbPath)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	fmt.Printf("Exported %d events to %s\n", len(f.Events), outPath)
	return nil
}

// #endregion extract

// #region build

// buildFixture turns chronological growth entries into a replay fixture.
// Lineage and form depend on the draws the server made, so only the
// deterministic fields are expected.
func buildFixture(entries []logging.GrowthEntry, ladder evolution.Ladder) replay.Fixture {
	f := replay.Fixture{
		Ladder:          ladder.Thresholds(),
		Events:          make([]replay.FixtureEvent, len(entries)),
		ExpectedResults: make([]replay.FixtureExpectedResult, len(entries)),
	}
	for i, e := range entries {
		f.Events[i] = replay.FixtureEvent{Owner: e.OwnerID, Cards: e.CardCount}
		exp := replay.FixtureExpectedResult{
			Owner:    e.OwnerID,
			Stage:    int(e.ToStage),
			Decision: e.Decision,
		}
		if next, ok := ladder.NextThreshold(e.ToStage); ok {
			exp.NextEvolutionAt = &next
		}
		f.ExpectedResults[i] = exp
	}
	return f
}

// #endregion build
