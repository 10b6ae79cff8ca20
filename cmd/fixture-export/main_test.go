package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/cardpet/internal/catalog"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/replay"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// Exported history replays cleanly under a different random source.
func TestExportedHistoryReplays(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "export.db")
	st, err := store.NewStore(dbPath)
	require.NoError(t, err)
	defer st.Close()

	cat, err := catalog.Default()
	require.NoError(t, err)
	g, err := growth.NewGrower(growth.DefaultConfig(), cat, evolution.SeededSource(3), zap.NewNop(), nil)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		owner := "even"
		if i%3 == 0 {
			owner = "third"
		}
		var out growth.Outcome
		logEntry := func(ctx context.Context, tx *sql.Tx, card store.Card, pet store.PetStats) error {
			return logging.LogGrowth(ctx, tx, logging.GrowthEntry{
				OwnerID:      owner,
				CardID:       card.ID,
				FromStage:    out.FromStage,
				ToStage:      out.ToStage,
				Lineage:      pet.Lineage,
				EvolutionKey: pet.EvolutionKey,
				CardCount:    pet.CardCount,
				Decision:     out.Decision,
				Reason:       out.Reason,
			})
		}
		_, _, err := st.RegisterCard(ctx, owner, store.CardInput{Name: "card"}, g.GrowFunc(&out), logEntry)
		require.NoError(t, err)
	}

	outPath := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, run(dbPath, "", outPath))

	f, err := replay.LoadFixture(outPath)
	require.NoError(t, err)
	require.Len(t, f.Events, 12)

	cfg, err := f.ToGrowthConfig()
	require.NoError(t, err)
	rg, err := growth.NewGrower(cfg, cat, evolution.FixedSource(0.5), zap.NewNop(), nil)
	require.NoError(t, err)
	results, sum := replay.Replay(rg, f.ToEvents())
	require.Empty(t, replay.Compare(results, f.ExpectedResults))
	require.Equal(t, 2, sum.Lineages)
}
