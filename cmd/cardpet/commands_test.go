package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/cardpet/internal/catalog"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/rpc"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

func startServer(t *testing.T) dialFunc {
	t.Helper()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	cat, err := catalog.Default()
	require.NoError(t, err)
	g, err := growth.NewGrower(growth.DefaultConfig(), cat, evolution.FixedSource(0), zap.NewNop(), nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	gs := rpc.NewGRPCServer(rpc.NewServer(st, g, zap.NewNop(), nil))
	go gs.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		gs.Stop()
		st.Close()
	})
	return func(_, owner string) (*rpc.PetClient, error) {
		return rpc.NewPetClientWithConn(conn, owner), nil
	}
}

func execute(t *testing.T, dial dialFunc, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, dial)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddAndPet(t *testing.T) {
	dial := startServer(t)

	out, err := execute(t, dial, "--owner", "ada", "add", "Grace Hopper", "--company", "Navy")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered Grace Hopper")
	assert.Contains(t, out, "Pet: ANIMAL stage 0 (animal_egg), 1 cards")
	assert.Contains(t, out, "Next evolution at 3 cards")

	out, err = execute(t, dial, "--owner", "ada", "--json", "pet")
	require.NoError(t, err)
	var pet rpc.Pet
	require.NoError(t, json.Unmarshal([]byte(out), &pet))
	require.NotNil(t, pet.Lineage)
	assert.Equal(t, "ANIMAL", *pet.Lineage)
	assert.Equal(t, 1, pet.CardCount)
}

func TestPetUnhatched(t *testing.T) {
	out, err := execute(t, startServer(t), "--owner", "nobody", "pet")
	require.NoError(t, err)
	assert.Contains(t, out, "Pet: unhatched, 0 cards")
}

func TestUpdateOnlyChangedFlags(t *testing.T) {
	dial := startServer(t)

	out, err := execute(t, dial, "--owner", "ada", "--json", "add", "Ada", "--email", "ada@example.com", "--memo", "first")
	require.NoError(t, err)
	var created struct {
		Contact rpc.Contact `json:"contact"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	out, err = execute(t, dial, "--owner", "ada", "--json", "update", created.Contact.ID, "--title", "Countess", "--memo", "")
	require.NoError(t, err)
	var updated rpc.Contact
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	require.NotNil(t, updated.Title)
	assert.Equal(t, "Countess", *updated.Title)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "ada@example.com", *updated.Email)
	assert.Nil(t, updated.Memo)
}

func TestList(t *testing.T) {
	dial := startServer(t)
	for _, name := range []string{"Ada", "Grace", "Alan"} {
		_, err := execute(t, dial, "--owner", "o", "add", name)
		require.NoError(t, err)
	}

	out, err := execute(t, dial, "--owner", "o", "--json", "list", "-q", "gr", "--field", "name")
	require.NoError(t, err)
	var contacts []rpc.Contact
	require.NoError(t, json.Unmarshal([]byte(out), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "Grace", contacts[0].Name)
}

func TestOwnerRequired(t *testing.T) {
	_, err := execute(t, startServer(t), "pet")
	assert.Error(t, err)
}

func TestServerErrorSurfaces(t *testing.T) {
	_, err := execute(t, startServer(t), "--owner", "o", "update", "missing", "--name", "x")
	assert.Error(t, err)
}
