package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/cardpet/internal/config"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cardpet.db")
	last := flag.Int("last", 20, "show N most recent pets or growth entries")
	owner := flag.String("owner", "", "show one owner's pet, cards and growth log")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/cardpet.db [--last N] [--owner id] [--json]")
		os.Exit(2)
	}

	// CARDPET_THRESHOLDS applies here as in the server.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ladder, err := cfg.Ladder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ladder: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if *owner != "" {
		err = runOwnerMode(ctx, st, ladder, *owner, *last, *jsonOut)
	} else {
		err = runListMode(ctx, st, ladder, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type petRow struct {
	OwnerID         string `json:"owner_id"`
	Lineage         string `json:"lineage"`
	Stage           int    `json:"stage"`
	EvolutionKey    string `json:"evolution_key"`
	CardCount       int    `json:"card_count"`
	NextEvolutionAt *int   `json:"next_evolution_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toPetRow(p store.PetStats, ladder evolution.Ladder) petRow {
	row := petRow{
		OwnerID:      p.OwnerID,
		Lineage:      string(p.Lineage),
		Stage:        int(p.Stage),
		EvolutionKey: p.EvolutionKey,
		CardCount:    p.CardCount,
	}
	if next, ok := ladder.NextThreshold(p.Stage); ok {
		row.NextEvolutionAt = &next
	}
	if !p.UpdatedAt.IsZero() {
		row.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return row
}

func runListMode(ctx context.Context, st *store.Store, ladder evolution.Ladder, last int, jsonOut bool) error {
	pets, err := st.ListPets(ctx, last)
	if err != nil {
		return err
	}
	if len(pets) == 0 {
		fmt.Fprintln(os.Stderr, "no pets found")
		return nil
	}

	rows := make([]petRow, len(pets))
	for i, p := range pets {
		rows[i] = toPetRow(p, ladder)
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-10s  %5s  %-20s  %5s  %5s  %s\n",
		"Owner", "Lineage", "Stage", "Form", "Cards", "Next", "Updated")
	fmt.Printf("%-12s+-%-10s+-%5s+-%-20s+-%5s+-%5s+-%s\n",
		"------------", "----------", "-----", "--------------------", "-----", "-----", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-10s  %5d  %-20s  %5d  %5s  %s\n",
			shortID(r.OwnerID), orDash(r.Lineage), r.Stage, orDash(r.EvolutionKey), r.CardCount, formatNext(r.NextEvolutionAt), r.UpdatedAt)
	}
	return nil
}

// #endregion list-mode

// #region owner-mode

type ownerOutput struct {
	Pet    petRow                `json:"pet"`
	Cards  []store.Card          `json:"cards"`
	Growth []logging.GrowthEntry `json:"growth"`
}

func runOwnerMode(ctx context.Context, st *store.Store, ladder evolution.Ladder, owner string, last int, jsonOut bool) error {
	pet, _, err := st.GetPet(ctx, owner)
	if err != nil {
		return err
	}
	cards, err := st.ListCards(ctx, owner, store.CardQuery{Limit: last})
	if err != nil {
		return err
	}
	growth, err := logging.ListGrowth(ctx, st.DB(), owner, last)
	if err != nil {
		return err
	}

	out := ownerOutput{Pet: toPetRow(pet, ladder), Cards: cards, Growth: growth}
	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Owner:      %s\n", out.Pet.OwnerID)
	fmt.Printf("Lineage:    %s\n", orDash(out.Pet.Lineage))
	fmt.Printf("Stage:      %d\n", out.Pet.Stage)
	fmt.Printf("Form:       %s\n", orDash(out.Pet.EvolutionKey))
	fmt.Printf("Cards:      %d\n", out.Pet.CardCount)
	fmt.Printf("Next:       %s\n", formatNext(out.Pet.NextEvolutionAt))

	fmt.Printf("\nCards (newest first):\n")
	for _, c := range cards {
		fmt.Printf("  %-8s  %-24s  %-20s  %s\n", shortID(c.ID), c.Name, orDash(c.Company), c.CreatedAt.Format(time.RFC3339))
	}

	fmt.Printf("\nGrowth log (newest first):\n")
	for _, e := range growth {
		fmt.Printf("  %-8s  %5d  %d -> %d  %s\n", e.Decision, e.CardCount, int(e.FromStage), int(e.ToStage), e.Reason)
	}
	return nil
}

// #endregion owner-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatNext(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
