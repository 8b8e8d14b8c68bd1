package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrVeink/svr/internal/config"
	"github.com/MrVeink/svr/internal/core"
	"github.com/MrVeink/svr/internal/web"
)

func newServeCmd(cfg *config.Config, flags *sourceFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poller and the web scoreboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := flags.resolve(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, d)
		},
	}
}

// runServe blocks until ctx is cancelled or the listener fails.
func runServe(ctx context.Context, cfg *config.Config, d core.SourceDescriptor) error {
	logger := slog.Default()
	poller := newPoller(cfg, logger)
	server := web.NewServer(poller, cfg.Server, web.Options{
		Theme:   cfg.Display.Theme,
		Version: Version,
	})

	if !d.IsZero() {
		poller.SetSource(ctx, d)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		drain(poller, cfg, logger)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
