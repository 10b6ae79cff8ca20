package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/cardpet/internal/rpc"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// dialFunc opens a client for owner against addr.
type dialFunc func(addr, owner string) (*rpc.PetClient, error)

func dialPetService(addr, owner string) (*rpc.PetClient, error) {
	return rpc.NewPetClient(addr, owner)
}

// #region root
type cli struct {
	out     io.Writer
	dial    dialFunc
	addr    string
	owner   string
	timeout time.Duration
	jsonOut bool
}

func newRootCmd(out io.Writer, dial dialFunc) *cobra.Command {
	c := &cli{out: out, dial: dial}

	root := &cobra.Command{
		Use:          "cardpet",
		Short:        "Register business cards and watch your pet grow",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.addr, "addr", "localhost:50061", "cardpet gRPC address")
	root.PersistentFlags().StringVar(&c.owner, "owner", "", "owner id sent with every call")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "per-call timeout")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "output as JSON")
	_ = root.MarkPersistentFlagRequired("owner")

	root.AddCommand(c.addCmd(), c.updateCmd(), c.listCmd(), c.petCmd())
	return root
}

// call runs fn with a connected client and a bounded context.
func (c *cli) call(cmd *cobra.Command, fn func(context.Context, *rpc.PetClient) error) error {
	client, err := c.dial(c.addr, c.owner)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()
	return fn(ctx, client)
}

// #endregion root

// #region add
func (c *cli) addCmd() *cobra.Command {
	var in store.CardInput
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a business card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return c.call(cmd, func(ctx context.Context, client *rpc.PetClient) error {
				contact, pet, err := client.CreateContact(ctx, in)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"contact": contact, "pet": pet})
				}
				fmt.Fprintf(c.out, "Registered %s (%s)\n", contact.Name, contact.ID)
				c.printPet(pet)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Company, "company", "", "company name")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.Title, "title", "", "job title")
	f.StringVar(&in.Memo, "memo", "", "free-form note")
	return cmd
}

// #endregion add

// #region update
func (c *cli) updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a business card; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := store.CardPatch{}
			targets := map[string]**string{
				"name": &patch.Name, "company": &patch.Company, "email": &patch.Email,
				"phone": &patch.Phone, "title": &patch.Title, "memo": &patch.Memo,
			}
			for name, target := range targets {
				if cmd.Flags().Changed(name) {
					v, _ := cmd.Flags().GetString(name)
					*target = &v
				}
			}
			return c.call(cmd, func(ctx context.Context, client *rpc.PetClient) error {
				contact, err := client.UpdateContact(ctx, args[0], patch)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(contact)
				}
				c.printContacts([]rpc.Contact{contact})
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.String("name", "", "new name")
	f.String("company", "", "new company; empty clears")
	f.String("email", "", "new email; empty clears")
	f.String("phone", "", "new phone; empty clears")
	f.String("title", "", "new title; empty clears")
	f.String("memo", "", "new memo; empty clears")
	return cmd
}

// #endregion update

// #region list
func (c *cli) listCmd() *cobra.Command {
	var q store.CardQuery
	var field string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered cards, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Field = store.SearchField(field)
			return c.call(cmd, func(ctx context.Context, client *rpc.PetClient) error {
				contacts, err := client.ListContacts(ctx, q)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(contacts)
				}
				c.printContacts(contacts)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.Query, "query", "q", "", "search text")
	f.StringVar(&field, "field", string(store.FieldAll), "search field: all, name, company or email")
	f.IntVar(&q.Limit, "limit", store.DefaultListLimit, "maximum cards to return")
	return cmd
}

// #endregion list

// #region pet
func (c *cli) petCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pet",
		Short: "Show the pet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.call(cmd, func(ctx context.Context, client *rpc.PetClient) error {
				pet, err := client.GetPet(ctx)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(pet)
				}
				c.printPet(pet)
				return nil
			})
		},
	}
}

// #endregion pet

// #region output
func (c *cli) printPet(p rpc.Pet) {
	if p.Lineage == nil {
		fmt.Fprintf(c.out, "Pet: unhatched, %d cards\n", p.CardCount)
	} else {
		fmt.Fprintf(c.out, "Pet: %s stage %d (%s), %d cards\n", *p.Lineage, p.Stage, deref(p.EvolutionKey), p.CardCount)
	}
	if p.NextEvolutionAt != nil {
		fmt.Fprintf(c.out, "Next evolution at %d cards\n", *p.NextEvolutionAt)
	} else {
		fmt.Fprintln(c.out, "Fully evolved")
	}
}

func (c *cli) printContacts(contacts []rpc.Contact) {
	for _, ct := range contacts {
		fmt.Fprintf(c.out, "%-36s  %-24s  %-20s  %s\n", ct.ID, ct.Name, deref(ct.Company), deref(ct.Email))
	}
}

func (c *cli) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(c.out, string(data))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// #endregion output
