package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS business_cards (
	id             TEXT PRIMARY KEY,
	owner_user_id  TEXT NOT NULL,
	name           TEXT NOT NULL,
	company        TEXT,
	email          TEXT,
	phone          TEXT,
	title          TEXT,
	memo           TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS business_cards_owner ON business_cards(owner_user_id, created_at);

CREATE TABLE IF NOT EXISTS pet_stats (
	owner_user_id  TEXT PRIMARY KEY,
	lineage        TEXT,
	stage          INTEGER NOT NULL DEFAULT 0,
	evolution_key  TEXT,
	card_count     INTEGER NOT NULL DEFAULT 0,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS growth_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_user_id  TEXT NOT NULL,
	card_id        TEXT,
	from_stage     INTEGER NOT NULL,
	to_stage       INTEGER NOT NULL,
	lineage        TEXT,
	evolution_key  TEXT,
	card_count     INTEGER NOT NULL,
	decision       TEXT NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (card_id) REFERENCES business_cards(id)
);
`

// TimeLayout is fixed-width so text ordering matches time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const cardColumns = `id, owner_user_id, name, company, email, phone, title, memo, created_at, updated_at`

// #endregion schema

// #region store-struct
// Store persists business cards and pet growth in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// pragmas in the DSN apply to every pooled connection
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region register-card
// RegisterCard inserts a card and advances the owner's pet in one transaction,
// then runs each record func in that same transaction. If grow or a record
// func fails nothing is written.
func (s *Store) RegisterCard(ctx context.Context, owner string, in CardInput, grow GrowFunc, record ...RecordFunc) (Card, PetStats, error) {
	if owner == "" {
		return Card{}, PetStats{}, fmt.Errorf("owner is required: %w", ErrInvalidCard)
	}
	name := normalizeText(in.Name)
	if name == "" {
		return Card{}, PetStats{}, fmt.Errorf("name is required: %w", ErrInvalidCard)
	}

	now := s.now()
	card := Card{
		ID:          uuid.New().String(),
		OwnerUserID: owner,
		Name:        name,
		Company:     normalizeText(in.Company),
		Email:       normalizeText(in.Email),
		Phone:       normalizeText(in.Phone),
		Title:       normalizeText(in.Title),
		Memo:        normalizeText(in.Memo),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Card{}, PetStats{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO business_cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.OwnerUserID, card.Name,
		nullIfEmpty(card.Company), nullIfEmpty(card.Email), nullIfEmpty(card.Phone),
		nullIfEmpty(card.Title), nullIfEmpty(card.Memo),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return Card{}, PetStats{}, fmt.Errorf("insert card: %w", err)
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM business_cards WHERE owner_user_id = ?`, owner,
	).Scan(&count)
	if err != nil {
		return Card{}, PetStats{}, fmt.Errorf("count cards: %w", err)
	}

	prev, _, err := getPet(ctx, tx, owner)
	if err != nil {
		return Card{}, PetStats{}, err
	}

	next, err := grow(prev, count)
	if err != nil {
		return Card{}, PetStats{}, fmt.Errorf("grow pet: %w", err)
	}
	next.OwnerID = owner
	next.CardCount = count
	next.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pet_stats (owner_user_id, lineage, stage, evolution_key, card_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_user_id) DO UPDATE SET
			lineage = excluded.lineage,
			stage = excluded.stage,
			evolution_key = excluded.evolution_key,
			card_count = excluded.card_count,
			updated_at = excluded.updated_at`,
		owner, nullIfEmpty(string(next.Lineage)), int(next.Stage), nullIfEmpty(next.EvolutionKey),
		next.CardCount, formatTime(now),
	)
	if err != nil {
		return Card{}, PetStats{}, fmt.Errorf("upsert pet: %w", err)
	}

	for _, fn := range record {
		if err := fn(ctx, tx, card, next); err != nil {
			return Card{}, PetStats{}, fmt.Errorf("record registration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Card{}, PetStats{}, fmt.Errorf("commit: %w", err)
	}
	return card, next, nil
}

// #endregion register-card

// #region update-card
// UpdateCard applies patch to the owner's card and returns the updated row.
func (s *Store) UpdateCard(ctx context.Context, owner, id string, patch CardPatch) (Card, error) {
	var sets []string
	var args []any

	if patch.Name != nil {
		name := normalizeText(*patch.Name)
		if name == "" {
			return Card{}, fmt.Errorf("name cannot be empty when provided: %w", ErrInvalidCard)
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	optional := []struct {
		column string
		value  *string
	}{
		{"company", patch.Company},
		{"email", patch.Email},
		{"phone", patch.Phone},
		{"title", patch.Title},
		{"memo", patch.Memo},
	}
	for _, f := range optional {
		if f.value == nil {
			continue
		}
		sets = append(sets, f.column+" = ?")
		args = append(args, nullIfEmpty(normalizeText(*f.value)))
	}
	if len(sets) == 0 {
		return Card{}, ErrNoUpdates
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(s.now()), id, owner)

	res, err := s.db.ExecContext(ctx,
		`UPDATE business_cards SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner_user_id = ?`,
		args...,
	)
	if err != nil {
		return Card{}, fmt.Errorf("update card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Card{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	return s.GetCard(ctx, owner, id)
}

// #endregion update-card

// #region get-card
// GetCard reads one of the owner's cards.
func (s *Store) GetCard(ctx context.Context, owner, id string) (Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM business_cards WHERE id = ? AND owner_user_id = ?`, id, owner,
	)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Card{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return card, nil
}

// #endregion get-card

// #region list-cards
// ListCards returns the owner's cards, newest first, filtered by q. Matching
// is a case-insensitive substring test under Unicode case folding, done in Go
// because SQLite's LIKE only folds ASCII.
func (s *Store) ListCards(ctx context.Context, owner string, q CardQuery) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM business_cards WHERE owner_user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	text := strings.ToLower(strings.TrimSpace(q.Query))
	limit := ClampLimit(q.Limit)
	cards := []Card{}
	for rows.Next() && len(cards) < limit {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if text == "" || matchCard(card, q.Field, text) {
			cards = append(cards, card)
		}
	}
	return cards, rows.Err()
}

// matchCard reports whether the searched field(s) of c contain text, which
// must already be lower-cased.
func matchCard(c Card, field SearchField, text string) bool {
	contains := func(v string) bool {
		return strings.Contains(strings.ToLower(v), text)
	}
	switch field {
	case FieldName:
		return contains(c.Name)
	case FieldCompany:
		return contains(c.Company)
	case FieldEmail:
		return contains(c.Email)
	}
	return contains(c.Name) || contains(c.Company) || contains(c.Email)
}

// ClampLimit maps a requested page size into [1, MaxListLimit]. Zero means
// DefaultListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// #endregion list-cards

// #region pets
// GetPet reads the owner's pet. ok is false when the owner has none yet; the
// returned stats are then the zero pet for that owner.
func (s *Store) GetPet(ctx context.Context, owner string) (PetStats, bool, error) {
	return getPet(ctx, s.db, owner)
}

// ListPets returns the most recently updated pets.
func (s *Store) ListPets(ctx context.Context, limit int) ([]PetStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_user_id, lineage, stage, evolution_key, card_count, updated_at
		 FROM pet_stats ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	var pets []PetStats
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		pets = append(pets, p)
	}
	return pets, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPet(ctx context.Context, q queryRower, owner string) (PetStats, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT owner_user_id, lineage, stage, evolution_key, card_count, updated_at
		 FROM pet_stats WHERE owner_user_id = ?`, owner,
	)
	p, err := scanPet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PetStats{OwnerID: owner}, false, nil
	}
	if err != nil {
		return PetStats{}, false, fmt.Errorf("get pet %s: %w", owner, err)
	}
	return p, true, nil
}

// #endregion pets

// #region scanning
type scanner interface {
	Scan(dest ...any) error
}

func scanCard(sc scanner) (Card, error) {
	var c Card
	var company, email, phone, title, memo sql.NullString
	var createdStr, updatedStr string
	if err := sc.Scan(&c.ID, &c.OwnerUserID, &c.Name, &company, &email, &phone, &title, &memo, &createdStr, &updatedStr); err != nil {
		return Card{}, err
	}
	c.Company = company.String
	c.Email = email.String
	c.Phone = phone.String
	c.Title = title.String
	c.Memo = memo.String
	c.CreatedAt, _ = time.Parse(TimeLayout, createdStr)
	c.UpdatedAt, _ = time.Parse(TimeLayout, updatedStr)
	return c, nil
}

func scanPet(sc scanner) (PetStats, error) {
	var p PetStats
	var lineage, key sql.NullString
	var stage int
	var updatedStr string
	if err := sc.Scan(&p.OwnerID, &lineage, &stage, &key, &p.CardCount, &updatedStr); err != nil {
		return PetStats{}, err
	}
	p.Lineage = evolution.Lineage(lineage.String)
	p.Stage = evolution.Stage(stage)
	p.EvolutionKey = key.String
	p.UpdatedAt, _ = time.Parse(TimeLayout, updatedStr)
	return p, nil
}

// #endregion scanning

// #region helpers
func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func normalizeText(s string) string {
	return strings.TrimSpace(s)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
