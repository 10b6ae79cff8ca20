package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region types
// Contact is a card as returned by the service. Absent optional fields are nil.
type Contact struct {
	ID          string  `json:"id"`
	OwnerUserID string  `json:"owner_user_id"`
	Name        string  `json:"name"`
	Company     *string `json:"company"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Title       *string `json:"title"`
	Memo        *string `json:"memo"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Pet is the pet status as returned by the service. NextEvolutionAt is nil at
// the terminal stage; Lineage and EvolutionKey are nil before the first card.
type Pet struct {
	Lineage         *string `json:"lineage"`
	Stage           int     `json:"stage"`
	EvolutionKey    *string `json:"evolution_key"`
	CardCount       int     `json:"card_count"`
	NextEvolutionAt *int    `json:"next_evolution_at"`
}

// #endregion types

// #region client-struct
// PetClient calls PetService on behalf of one owner.
type PetClient struct {
	conn  *grpc.ClientConn
	cc    grpc.ClientConnInterface
	owner string
}

// NewPetClient connects to the PetService at addr.
func NewPetClient(addr, owner string, opts ...grpc.DialOption) (*PetClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &PetClient{conn: conn, cc: conn, owner: owner}, nil
}

// NewPetClientWithConn creates a PetClient over an existing connection.
// Close does not close cc.
func NewPetClientWithConn(cc grpc.ClientConnInterface, owner string) *PetClient {
	return &PetClient{cc: cc, owner: owner}
}

// Close shuts down the gRPC connection if the client owns it.
func (c *PetClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion client-struct

// #region calls
// CreateContact registers a card and returns it with the updated pet.
func (c *PetClient) CreateContact(ctx context.Context, in store.CardInput) (Contact, Pet, error) {
	req := map[string]any{"name": in.Name}
	for k, v := range map[string]string{
		"company": in.Company, "email": in.Email, "phone": in.Phone,
		"title": in.Title, "memo": in.Memo,
	} {
		if v != "" {
			req[k] = v
		}
	}
	var resp struct {
		Contact Contact `json:"contact"`
		Pet     Pet     `json:"pet"`
	}
	if err := c.invoke(ctx, "CreateContact", req, &resp); err != nil {
		return Contact{}, Pet{}, err
	}
	return resp.Contact, resp.Pet, nil
}

// UpdateContact patches a card. Nil patch fields are not sent.
func (c *PetClient) UpdateContact(ctx context.Context, id string, patch store.CardPatch) (Contact, error) {
	req := map[string]any{"id": id}
	for k, v := range map[string]*string{
		"name": patch.Name, "company": patch.Company, "email": patch.Email,
		"phone": patch.Phone, "title": patch.Title, "memo": patch.Memo,
	} {
		if v != nil {
			req[k] = *v
		}
	}
	var resp struct {
		Contact Contact `json:"contact"`
	}
	if err := c.invoke(ctx, "UpdateContact", req, &resp); err != nil {
		return Contact{}, err
	}
	return resp.Contact, nil
}

// ListContacts searches the owner's cards.
func (c *PetClient) ListContacts(ctx context.Context, q store.CardQuery) ([]Contact, error) {
	req := map[string]any{"query": q.Query, "field": string(q.Field)}
	if q.Limit != 0 {
		req["limit"] = q.Limit
	}
	var resp struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.invoke(ctx, "ListContacts", req, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// GetPet returns the owner's pet.
func (c *PetClient) GetPet(ctx context.Context) (Pet, error) {
	var pet Pet
	if err := c.invoke(ctx, "GetPet", map[string]any{}, &pet); err != nil {
		return Pet{}, err
	}
	return pet, nil
}

func (c *PetClient) invoke(ctx context.Context, method string, req map[string]any, out any) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, OwnerMetadataKey, c.owner)

	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, resp); err != nil {
		return fmt.Errorf("%s rpc: %w", method, err)
	}

	raw, err := protojson.Marshal(resp)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// #endregion calls
