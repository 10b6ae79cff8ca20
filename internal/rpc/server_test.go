package rpc

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/cardpet/internal/catalog"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/metrics"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("google.golang.org/grpc/internal/grpcsync.(*CallbackSerializer).run"),
	)
}

// #region harness
type harness struct {
	store *store.Store
	conn  *grpc.ClientConn
	reg   *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "rpc.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	g, err := growth.NewGrower(growth.DefaultConfig(), cat, evolution.FixedSource(0), zap.NewNop(), rec)
	if err != nil {
		t.Fatalf("NewGrower: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(st, g, zap.NewNop(), rec))
	go gs.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		gs.Stop()
		st.Close()
	})
	return &harness{store: st, conn: conn, reg: reg}
}

func (h *harness) client(owner string) *PetClient {
	return NewPetClientWithConn(h.conn, owner)
}

func str(s string) *string { return &s }

// #endregion harness

// #region create-tests
func TestCreateContactGrowsPet(t *testing.T) {
	h := newHarness(t)
	c := h.client("owner-1")
	ctx := context.Background()

	contact, pet, err := c.CreateContact(ctx, store.CardInput{Name: " Ada ", Company: "AE"})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if contact.Name != "Ada" || contact.Company == nil || *contact.Company != "AE" || contact.Email != nil {
		t.Fatalf("unexpected contact %+v", contact)
	}
	if pet.Lineage == nil || *pet.Lineage != "ANIMAL" {
		t.Fatalf("expected ANIMAL lineage, got %+v", pet)
	}
	if pet.CardCount != 1 || pet.Stage != 0 || pet.NextEvolutionAt == nil || *pet.NextEvolutionAt != 3 {
		t.Fatalf("unexpected pet %+v", pet)
	}

	for i := 0; i < 2; i++ {
		_, pet, err = c.CreateContact(ctx, store.CardInput{Name: "more"})
		if err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
	}
	if pet.Stage != 1 || pet.EvolutionKey == nil || *pet.EvolutionKey != "animal_pup" {
		t.Fatalf("expected stage 1 animal_pup, got %+v", pet)
	}

	entries, err := logging.ListGrowth(ctx, h.store.DB(), "owner-1", 10)
	if err != nil {
		t.Fatalf("ListGrowth: %v", err)
	}
	if len(entries) != 3 || entries[0].Decision != growth.DecisionEvolve || entries[2].Decision != growth.DecisionLineage {
		t.Fatalf("unexpected growth log %+v", entries)
	}
	if got := h.counterValue(t, "cardpet_cards_registered_total"); got != 3 {
		t.Fatalf("cards registered = %v, want 3", got)
	}
	if got := h.counterValue(t, "cardpet_lineage_assigned_total"); got != 1 {
		t.Fatalf("lineage assigned = %v, want 1", got)
	}
}

func (h *harness) counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := h.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func incomingOwner(ctx context.Context, owner string) context.Context {
	return metadata.NewIncomingContext(ctx, metadata.Pairs(OwnerMetadataKey, owner))
}

func TestCreateContactRequiresName(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.client("o").CreateContact(context.Background(), store.CardInput{Name: "  "})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestMissingOwnerIsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	_, err := h.client("").GetPet(context.Background())
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

// #endregion create-tests

// #region update-list-tests
func TestUpdateContact(t *testing.T) {
	h := newHarness(t)
	c := h.client("o")
	ctx := context.Background()

	created, _, err := c.CreateContact(ctx, store.CardInput{Name: "Ada", Memo: "note"})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	updated, err := c.UpdateContact(ctx, created.ID, store.CardPatch{Title: str("Countess"), Memo: str("")})
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if updated.Title == nil || *updated.Title != "Countess" || updated.Memo != nil {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := c.UpdateContact(ctx, created.ID, store.CardPatch{}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for empty patch, got %v", err)
	}
	if _, err := c.UpdateContact(ctx, "missing", store.CardPatch{Name: str("x")}); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := h.client("intruder").UpdateContact(ctx, created.ID, store.CardPatch{Name: str("x")}); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for other owner, got %v", err)
	}
	if _, err := c.UpdateContact(ctx, "", store.CardPatch{Name: str("x")}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for missing id, got %v", err)
	}
}

func TestUpdateContactNullClearsField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, _, err := h.client("o").CreateContact(ctx, store.CardInput{Name: "Ada", Phone: "555"})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	req, _ := structpb.NewStruct(map[string]any{"id": created.ID, "phone": nil})
	srv := NewServer(h.store, nil, nil, nil)
	resp, err := srv.UpdateContact(incomingOwner(ctx, "o"), req)
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	contact := resp.GetFields()["contact"].GetStructValue()
	if _, isNull := contact.GetFields()["phone"].GetKind().(*structpb.Value_NullValue); !isNull {
		t.Fatalf("expected phone cleared, got %v", contact.GetFields()["phone"])
	}
}

func TestListContacts(t *testing.T) {
	h := newHarness(t)
	c := h.client("o")
	ctx := context.Background()

	for _, name := range []string{"Ada", "Grace", "Alan"} {
		if _, _, err := c.CreateContact(ctx, store.CardInput{Name: name}); err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
	}

	all, err := c.ListContacts(ctx, store.CardQuery{})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Alan" {
		t.Fatalf("unexpected list %+v", all)
	}

	some, err := c.ListContacts(ctx, store.CardQuery{Query: "a", Field: store.FieldName, Limit: 1})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(some) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(some))
	}

	none, err := h.client("stranger").ListContacts(ctx, store.CardQuery{})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no contacts for stranger, got %d", len(none))
	}
}

func TestListContactsLimitClamping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, name := range []string{"Ada", "Grace", "Alan"} {
		if _, _, err := h.client("o").CreateContact(ctx, store.CardInput{Name: name}); err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
	}

	srv := NewServer(h.store, nil, nil, nil)
	cases := []struct {
		limit any
		want  int
	}{
		{0, 1},
		{-3, 1},
		{1e20, 3},
		{2.5, 2},
		{nil, 3},
	}
	for _, tc := range cases {
		fields := map[string]any{}
		if tc.limit != nil {
			fields["limit"] = tc.limit
		}
		req, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatalf("NewStruct: %v", err)
		}
		resp, err := srv.ListContacts(incomingOwner(ctx, "o"), req)
		if err != nil {
			t.Fatalf("ListContacts(limit=%v): %v", tc.limit, err)
		}
		if got := len(resp.GetFields()["contacts"].GetListValue().GetValues()); got != tc.want {
			t.Fatalf("ListContacts(limit=%v) = %d contacts, want %d", tc.limit, got, tc.want)
		}
	}
}

func TestListContactsFoldsNonASCIICase(t *testing.T) {
	h := newHarness(t)
	c := h.client("o")
	ctx := context.Background()
	if _, _, err := c.CreateContact(ctx, store.CardInput{Name: "Émile Zola"}); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	got, err := c.ListContacts(ctx, store.CardQuery{Query: "émile"})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(got))
	}
}

// #endregion update-list-tests

// #region concurrency-tests
func TestConcurrentCreateLogsInCommitOrder(t *testing.T) {
	h := newHarness(t)
	c := h.client("busy")
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := c.CreateContact(ctx, store.CardInput{Name: fmt.Sprintf("card-%d", i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("CreateContact: %v", err)
	}

	entries, err := logging.ListGrowth(ctx, h.store.DB(), "busy", n+1)
	if err != nil {
		t.Fatalf("ListGrowth: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d log entries, got %d", n, len(entries))
	}
	// newest first: card counts and stages must follow commit order
	for i, e := range entries {
		if e.CardCount != n-i {
			t.Fatalf("entry %d has card_count %d, want %d", i, e.CardCount, n-i)
		}
		if i > 0 && e.ToStage > entries[i-1].ToStage {
			t.Fatalf("stage regressed between entries %d and %d", i, i-1)
		}
	}
}

// #endregion concurrency-tests

// #region pet-tests
func TestGetPetWithoutCards(t *testing.T) {
	h := newHarness(t)
	pet, err := h.client("new-owner").GetPet(context.Background())
	if err != nil {
		t.Fatalf("GetPet: %v", err)
	}
	if pet.Lineage != nil || pet.EvolutionKey != nil || pet.Stage != 0 || pet.CardCount != 0 {
		t.Fatalf("expected unhatched pet, got %+v", pet)
	}
	if pet.NextEvolutionAt == nil || *pet.NextEvolutionAt != 3 {
		t.Fatalf("expected next evolution at 3, got %v", pet.NextEvolutionAt)
	}
}

func TestGetPetTerminal(t *testing.T) {
	h := newHarness(t)
	c := h.client("collector")
	ctx := context.Background()
	for i := 0; i < evolution.StageThreeAt; i++ {
		if _, _, err := c.CreateContact(ctx, store.CardInput{Name: "card"}); err != nil {
			t.Fatalf("CreateContact %d: %v", i, err)
		}
	}

	pet, err := c.GetPet(ctx)
	if err != nil {
		t.Fatalf("GetPet: %v", err)
	}
	if pet.Stage != 3 || pet.NextEvolutionAt != nil || pet.CardCount != 25 {
		t.Fatalf("expected terminal pet, got %+v", pet)
	}
}

func TestHealthService(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

// #endregion pet-tests
