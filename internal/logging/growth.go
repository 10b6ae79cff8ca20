package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region log-growth
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LogGrowth writes a growth decision to the growth_log table. Pass the
// registration's *sql.Tx so log order follows commit order.
func LogGrowth(ctx context.Context, db Execer, entry GrowthEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO growth_log (owner_user_id, card_id, from_stage, to_stage, lineage, evolution_key, card_count, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OwnerID,
		nullIfEmpty(entry.CardID),
		int(entry.FromStage),
		int(entry.ToStage),
		nullIfEmpty(string(entry.Lineage)),
		nullIfEmpty(entry.EvolutionKey),
		entry.CardCount,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(store.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("log growth: %w", err)
	}
	return nil
}

// #endregion log-growth

// #region list-growth
// ListGrowth returns the most recent growth decisions, newest first. An empty
// owner lists all owners.
func ListGrowth(ctx context.Context, db *sql.DB, owner string, limit int) ([]GrowthEntry, error) {
	query := `SELECT id, owner_user_id, card_id, from_stage, to_stage, lineage, evolution_key, card_count, decision, reason, created_at
		FROM growth_log`
	var args []any
	if owner != "" {
		query += ` WHERE owner_user_id = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list growth: %w", err)
	}
	defer rows.Close()

	var entries []GrowthEntry
	for rows.Next() {
		var e GrowthEntry
		var cardID, lineage, key, reason sql.NullString
		var from, to int
		var createdStr string
		if err := rows.Scan(&e.ID, &e.OwnerID, &cardID, &from, &to, &lineage, &key, &e.CardCount, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan growth: %w", err)
		}
		e.CardID = cardID.String
		e.FromStage = evolution.Stage(from)
		e.ToStage = evolution.Stage(to)
		e.Lineage = evolution.Lineage(lineage.String)
		e.EvolutionKey = key.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(store.TimeLayout, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-growth

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
