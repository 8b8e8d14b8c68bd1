package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrVeink/svr/internal/config"
	"github.com/MrVeink/svr/internal/logging"
	"github.com/MrVeink/svr/internal/tui"
)

func newWatchCmd(cfg *config.Config, flags *sourceFlags) *cobra.Command {
	var theme string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the poller and the terminal scoreboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := flags.resolve(cmd, cfg)
			if err != nil {
				return err
			}
			if theme == "" {
				theme = cfg.Display.Theme
			}
			if theme != "dark" && theme != "light" {
				return fmt.Errorf("unknown theme %q (want dark or light)", theme)
			}

			// The viewer owns the terminal, so logs go to LOG_FILE or nowhere.
			w, closeLog, err := logging.OpenFile(cfg.Logging.File)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer closeLog()
			logger := logging.SetupWriter(w, cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			poller := newPoller(cfg, logger)
			if !d.IsZero() {
				poller.SetSource(ctx, d)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				poller.Run(gctx)
				return nil
			})
			g.Go(func() error {
				// Quitting the viewer stops the poller too.
				defer cancel()
				return tui.Run(gctx, poller, theme, Version)
			})

			err = g.Wait()
			drain(poller, cfg, logger)
			return err
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "", "dark or light (overrides DISPLAY_THEME)")
	return cmd
}
