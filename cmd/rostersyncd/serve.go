package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/momentics/rostersync/internal/logging"
	"github.com/momentics/rostersync/server"
)

func serveCmd() *cobra.Command {
	var (
		cfg      = server.DefaultConfig()
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(os.Stderr, logLevel)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "TCP address to serve the sync protocol on")
	cmd.Flags().StringVar(&cfg.AdminAddr, "admin", cfg.AdminAddr, "HTTP address for /healthz, /clients, /metrics, /debug and /sync (empty disables)")
	cmd.Flags().IntVarP(&cfg.RecordSize, "size", "s", cfg.RecordSize, "Record size in bytes, client id included")
	cmd.Flags().IntVarP(&cfg.MaxClients, "connections", "c", cfg.MaxClients, "Client id bound; at most connections-1 clients are served")
	cmd.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Drop clients silent for this long (0 disables)")
	cmd.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Grace period for open connections on exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

func runServe(parent context.Context, cfg *server.Config, log *slog.Logger) error {
	srv, err := server.New(cfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe(ctx) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}
