// Package cli provides the svr command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrVeink/svr/internal/config"
	"github.com/MrVeink/svr/internal/core"
	"github.com/MrVeink/svr/internal/sheets"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/MrVeink/svr/internal/cli.Version=1.2.0"
var Version = "0.1.0"

// sourceFlags are the persistent source selection flags.
type sourceFlags struct {
	path  string
	url   string
	sheet string
}

// NewRootCmd creates the root command around a loaded configuration.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	flags := &sourceFlags{}

	rootCmd := &cobra.Command{
		Use:   "svr",
		Short: "Score viewer for CSV files and Google Sheets",
		Long: `svr shows a results table from a local CSV/XLSX file or a Google Sheet
and keeps it fresh: local files are re-read when they change, sheets are
refetched on a fixed cadence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.path, "path", "", "local CSV or XLSX file (overrides SOURCE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flags.url, "url", "", "Google Sheets URL (overrides SOURCE_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.sheet, "sheet", "", "sheet name for --url (default Sheet1)")

	rootCmd.AddCommand(newServeCmd(cfg, flags))
	rootCmd.AddCommand(newWatchCmd(cfg, flags))
	rootCmd.AddCommand(newShowCmd(cfg, flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context, cfg *config.Config) error {
	rootCmd := NewRootCmd(cfg)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// resolve picks the source: --path or --url replace the configured source
// entirely, --sheet alone only replaces the configured sheet.
func (f *sourceFlags) resolve(cmd *cobra.Command, cfg *config.Config) (core.SourceDescriptor, error) {
	if cmd.Flags().Changed("path") || cmd.Flags().Changed("url") {
		return core.DescriptorFrom(f.path, f.url, f.sheet)
	}

	sheet := cfg.Source.Sheet
	if cmd.Flags().Changed("sheet") {
		sheet = f.sheet
	}
	return core.DescriptorFrom(cfg.Source.Path, cfg.Source.URL, sheet)
}

// newIngestor wires both readers from configuration.
func newIngestor(cfg *config.Config, logger *slog.Logger) *core.Ingestor {
	client := sheets.New(sheets.Options{
		CredentialsFile: cfg.Remote.CredentialsFile,
		Timeout:         cfg.Remote.Timeout,
		Logger:          logger,
	})

	return &core.Ingestor{
		Local: core.NewLocalReader(core.LocalOptions{
			Encoding: cfg.Local.Encoding,
			Sheet:    cfg.Local.XLSXSheet,
			Logger:   logger,
		}),
		Remote: core.NewRemoteFetcher(client, logger),
		Logger: logger,
	}
}

func newPoller(cfg *config.Config, logger *slog.Logger) *core.Poller {
	return core.NewPoller(core.PollerOptions{
		Ingestor:  newIngestor(cfg, logger),
		Pool:      core.NewPool(cfg.Ingest.MaxConcurrent, cfg.Ingest.MaxWait, logger),
		Tick:      cfg.Poll.Tick,
		GateTicks: cfg.Poll.GateTicks,
		Logger:    logger,
	})
}

// drain waits up to the shutdown timeout for in-flight ingestions.
func drain(poller *core.Poller, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := poller.Drain(ctx); err != nil {
		logger.Warn("ingestions did not complete in time", "error", err)
	}
}
