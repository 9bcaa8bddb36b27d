package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/metasino/cmd/metasino/shared"
	"github.com/lox/metasino/internal/auth"
	"github.com/lox/metasino/internal/config"
	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/server"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd runs the WebSocket table server
type ServeCmd struct {
	Config   string `short:"c" default:"metasino.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Backend  string `help:"Store backend: memory, file or sqlite (overrides config)"`
	Path     string `help:"Store path (overrides config)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Backend != "" {
		cfg.Store.Backend = c.Backend
	}
	if c.Path != "" {
		cfg.Store.Path = c.Path
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	var opts []server.Option
	if cfg.Server.AuthURL != "" {
		opts = append(opts, server.WithAuthValidator(auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret)))
		logger.Info("Checking client tokens", "url", cfg.Server.AuthURL)
	}

	h := host.New(st, logger)
	srv, err := server.NewServer(h, logger, opts...)
	if err != nil {
		return err
	}

	ctx, stop := shared.SignalContext(context.Background(), logger)
	defer stop()
	if err := seedTables(ctx, h, cfg.Tables, logger); err != nil {
		return err
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	logger.Info("Starting metasino server",
		"addr", l.Addr().String(),
		"store", cfg.Store.Backend,
		"path", cfg.Store.Path,
		"seedTables", len(cfg.Tables))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(l)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// seedTables opens the configured tables on an empty store. A store that
// already holds tables is left alone so restarts do not duplicate them.
func seedTables(ctx context.Context, h *host.Host, tables []config.TableConfig, logger *log.Logger) error {
	if len(tables) == 0 {
		return nil
	}

	existing, err := h.List(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("Store already holds tables, skipping seed tables", "tables", len(existing))
		return nil
	}

	for _, tc := range tables {
		snap, err := h.Open(ctx, table.AccountID(tc.Initiator), table.Balance(tc.RequiredStartBet))
		if err != nil {
			return fmt.Errorf("opening table %s: %w", tc.Name, err)
		}
		logger.Info("Opened seed table", "name", tc.Name, "id", snap.ID, "initiator", tc.Initiator, "bet", tc.RequiredStartBet)
	}
	return nil
}
