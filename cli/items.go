package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stevemurr/item-store/store"
)

// newItemsCommand groups offline operations on the data directory. They take
// the same file lock as the server, so they fail while a server owns the data.
func newItemsCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and edit stored items without the server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print all items",
			Args:  cobra.NoArgs,
			RunE: g.withStore(func(cmd *cobra.Command, s *store.ItemStore, _ []string) error {
				return printJSON(cmd, s.List())
			}),
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Print one item",
			Args:  cobra.ExactArgs(1),
			RunE: g.withStore(func(cmd *cobra.Command, s *store.ItemStore, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				it, err := s.Get(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, it)
			}),
		},
		&cobra.Command{
			Use:   "create <json>",
			Short: "Create an item from a JSON object",
			Args:  cobra.ExactArgs(1),
			RunE: g.withStore(func(cmd *cobra.Command, s *store.ItemStore, args []string) error {
				fields, err := parseObject(args[0])
				if err != nil {
					return err
				}
				it, err := s.Create(fields)
				if err != nil {
					return err
				}
				return printJSON(cmd, it)
			}),
		},
		&cobra.Command{
			Use:   "update <id> <json>",
			Short: "Merge a JSON object into an item",
			Args:  cobra.ExactArgs(2),
			RunE: g.withStore(func(cmd *cobra.Command, s *store.ItemStore, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				patch, err := parseObject(args[1])
				if err != nil {
					return err
				}
				it, err := s.Update(id, patch)
				if err != nil {
					return err
				}
				return printJSON(cmd, it)
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one item",
			Args:  cobra.ExactArgs(1),
			RunE: g.withStore(func(cmd *cobra.Command, s *store.ItemStore, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return s.Delete(id)
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every item",
			Args:  cobra.NoArgs,
			RunE: g.withStore(func(cmd *cobra.Command, s *store.ItemStore, _ []string) error {
				return s.DeleteAll()
			}),
		},
	)
	return cmd
}

type storeRunFunc func(cmd *cobra.Command, s *store.ItemStore, args []string) error

// withStore opens the configured store around fn and closes it afterwards.
func (g *globalFlags) withStore(fn storeRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := g.load(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		s, err := openStore(cfg, newLogger(cmd, cfg))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, s, args)
	}
}

// parseID rejects anything that is not a base-10 integer.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, store.ErrNotFound)
	}
	return id, nil
}

func parseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("argument must be a JSON object: %q", s)
	}
	return obj, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
