// Package cli defines the itemstore command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stevemurr/item-store/config"
	"github.com/stevemurr/item-store/logging"
	"github.com/stevemurr/item-store/store"
)

// globalFlags are shared by every subcommand and override the config file
// and environment when set.
type globalFlags struct {
	configPath string
	dataDir    string
	backend    string
	logLevel   string
	logFormat  string
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Command output goes to out, logs
// to logOut.
func NewRootCommand(version string, out, logOut io.Writer) *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "itemstore",
		Short:         "Schema-less JSON item store with a CRUD HTTP API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(logOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&g.dataDir, "data-dir", "", "directory holding the item data")
	pf.StringVar(&g.backend, "backend", "", "store backend: json, sqlite or memory")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: console or json")

	rootCmd.AddCommand(newServeCommand(g))
	rootCmd.AddCommand(newItemsCommand(g))
	return rootCmd
}

// load resolves the configuration: defaults, file, environment, then flags.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Store.DataDir = g.dataDir
	}
	if flags.Changed("backend") {
		cfg.Store.Backend = g.backend
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	return logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
}

// openStore opens the configured backend and loads the collection.
func openStore(cfg config.Config, log zerolog.Logger, opts ...store.Option) (*store.ItemStore, error) {
	b, err := store.NewBackend(cfg.Store.Backend, cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store (backend=%s): %w", cfg.Store.Backend, err)
	}
	opts = append([]store.Option{store.WithLogger(log)}, opts...)
	s, err := store.Open(b, opts...)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}
