package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
)

// #region errors
var (
	// ErrNotFound is returned when a card does not exist for the owner.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCard is returned when card input fails validation.
	ErrInvalidCard = errors.New("invalid card")
	// ErrNoUpdates is returned when a patch carries no fields.
	ErrNoUpdates = errors.New("no updates provided")
)

// #endregion errors

// #region card
// Card is a registered business card. Empty optional fields are stored as NULL.
type Card struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	Company     string    `json:"company,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Title       string    `json:"title,omitempty"`
	Memo        string    `json:"memo,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CardInput is the payload for registering a card. Name is required.
type CardInput struct {
	Name    string
	Company string
	Email   string
	Phone   string
	Title   string
	Memo    string
}

// CardPatch updates a card. Nil fields are left untouched; a pointer to an
// empty or blank string clears the field. Name cannot be cleared.
type CardPatch struct {
	Name    *string
	Company *string
	Email   *string
	Phone   *string
	Title   *string
	Memo    *string
}

// #endregion card

// #region card-query
// SearchField restricts ListCards matching to one column.
type SearchField string

const (
	FieldAll     SearchField = "all"
	FieldName    SearchField = "name"
	FieldCompany SearchField = "company"
	FieldEmail   SearchField = "email"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// CardQuery filters ListCards. Zero Limit means DefaultListLimit.
type CardQuery struct {
	Query string
	Field SearchField
	Limit int
}

// #endregion card-query

// #region pet-stats
// PetStats is the persisted growth state of one owner's pet.
type PetStats struct {
	OwnerID      string
	Lineage      evolution.Lineage
	Stage        evolution.Stage
	EvolutionKey string
	CardCount    int
	UpdatedAt    time.Time
}

// GrowFunc computes the next pet state after a card registration. cardCount
// includes the card just inserted.
type GrowFunc func(prev PetStats, cardCount int) (PetStats, error)

// RecordFunc runs inside the registration transaction after the pet is
// written. An error rolls the whole registration back.
type RecordFunc func(ctx context.Context, tx *sql.Tx, card Card, pet PetStats) error

// #endregion pet-stats
