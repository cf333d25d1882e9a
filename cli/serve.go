package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/stevemurr/item-store/config"
	"github.com/stevemurr/item-store/handler"
	"github.com/stevemurr/item-store/metrics"
	"github.com/stevemurr/item-store/schema"
	"github.com/stevemurr/item-store/store"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cmd, cfg, ln)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port")
	return cmd
}

// serve runs the server on ln until ctx is cancelled, then drains in-flight
// requests and closes the store.
func serve(ctx context.Context, cmd *cobra.Command, cfg config.Config, ln net.Listener) error {
	log := newLogger(cmd, cfg)

	var sch *schema.Validator
	if cfg.Server.SchemaFile != "" {
		var err error
		if sch, err = schema.Load(cfg.Server.SchemaFile); err != nil {
			ln.Close()
			return err
		}
		log.Info().Str("schema", cfg.Server.SchemaFile).Msg("validating item bodies")
	}

	var storeOpts []store.Option
	handlerOpts := []handler.Option{
		handler.WithLogger(log),
		handler.WithSchema(sch),
		handler.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		handler.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	}
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.Metrics.Namespace)
		storeOpts = append(storeOpts, store.WithObserver(m))
		handlerOpts = append(handlerOpts, handler.WithMetrics(m))
	}

	s, err := openStore(cfg, log, storeOpts...)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	srv := &http.Server{Handler: handler.New(s, handlerOpts...)}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("store", cfg.Store.Backend).
		Str("data", cfg.Store.DataDir).
		Int("items", s.Len()).
		Msg("Item Store starting")

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
