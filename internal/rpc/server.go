package rpc

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/metrics"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region server
// Server implements PetServer on top of the store and the grower.
type Server struct {
	store   *store.Store
	grower  *growth.Grower
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewServer creates a PetService implementation. logger and rec may be nil.
func NewServer(st *store.Store, g *growth.Grower, logger *zap.Logger, rec *metrics.Recorder) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: st, grower: g, logger: logger, metrics: rec}
}

// NewGRPCServer builds a grpc.Server with PetService, the health service and
// the logging/metrics interceptors registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		loggingInterceptor(srv.logger),
		metricsInterceptor(srv.metrics),
	))
	gs := grpc.NewServer(opts...)
	RegisterPetServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// #endregion server

// #region create-contact
// CreateContact registers a card and advances the caller's pet.
func (s *Server) CreateContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}

	in := store.CardInput{
		Name:    stringField(req, "name"),
		Company: stringField(req, "company"),
		Email:   stringField(req, "email"),
		Phone:   stringField(req, "phone"),
		Title:   stringField(req, "title"),
		Memo:    stringField(req, "memo"),
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
			CreatedAt:    pet.UpdatedAt,
		})
	}
	card, pet, err := s.store.RegisterCard(ctx, owner, in, s.grower.GrowFunc(&out), logEntry)
	if err != nil {
		return nil, toStatus(err)
	}
	s.metrics.CardRegistered()
	s.grower.Record(pet, out)

	return newStruct(map[string]any{
		"contact": contactMap(card),
		"pet":     petMap(s.grower.Status(pet)),
	})
}

// #endregion create-contact

// #region update-contact
// UpdateContact patches one of the caller's cards. Absent keys are left
// untouched, null or blank values clear the field.
func (s *Server) UpdateContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	patch := store.CardPatch{
		Name:    optionalField(req, "name"),
		Company: optionalField(req, "company"),
		Email:   optionalField(req, "email"),
		Phone:   optionalField(req, "phone"),
		Title:   optionalField(req, "title"),
		Memo:    optionalField(req, "memo"),
	}
	card, err := s.store.UpdateCard(ctx, owner, id, patch)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"contact": contactMap(card)})
}

// #endregion update-contact

// #region list-contacts
// ListContacts searches the caller's cards.
func (s *Server) ListContacts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	q := store.CardQuery{
		Query: stringField(req, "query"),
		Field: store.SearchField(stringField(req, "field")),
		Limit: limitField(req),
	}
	cards, err := s.store.ListCards(ctx, owner, q)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, len(cards))
	for i, c := range cards {
		list[i] = contactMap(c)
	}
	return newStruct(map[string]any{"contacts": list})
}

// #endregion list-contacts

// #region get-pet
// GetPet reports the caller's pet. Owners without cards get the unhatched pet.
func (s *Server) GetPet(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	pet, _, err := s.store.GetPet(ctx, owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(petMap(s.grower.Status(pet)))
}

// #endregion get-pet

// #region helpers
func ownerFrom(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing owner")
	}
	vals := md.Get(OwnerMetadataKey)
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Error(codes.Unauthenticated, "missing owner")
	}
	return vals[0], nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func optionalField(req *structpb.Struct, key string) *string {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

// limitField clamps the requested page size to [1, MaxListLimit] before
// converting it; an absent limit is 0, which the store reads as the default.
func limitField(req *structpb.Struct) int {
	v, ok := req.GetFields()["limit"]
	if !ok {
		return 0
	}
	n := v.GetNumberValue()
	if math.IsNaN(n) {
		return 1
	}
	return int(math.Max(1, math.Min(n, store.MaxListLimit)))
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidCard),
		errors.Is(err, store.ErrNoUpdates),
		errors.Is(err, evolution.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func contactMap(c store.Card) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"owner_user_id": c.OwnerUserID,
		"name":          c.Name,
		"company":       nullable(c.Company),
		"email":         nullable(c.Email),
		"phone":         nullable(c.Phone),
		"title":         nullable(c.Title),
		"memo":          nullable(c.Memo),
		"created_at":    c.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":    c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func petMap(p growth.PetStatus) map[string]any {
	var next any
	if p.HasNext {
		next = p.NextEvolutionAt
	}
	return map[string]any{
		"lineage":           nullable(string(p.Lineage)),
		"stage":             int(p.Stage),
		"evolution_key":     nullable(p.EvolutionKey),
		"card_count":        p.CardCount,
		"next_evolution_at": next,
	}
}

// #endregion helpers
