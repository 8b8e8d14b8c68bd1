package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/MrVeink/svr/internal/config"
	"github.com/MrVeink/svr/internal/core"
	"github.com/MrVeink/svr/internal/logging"
)

var errNoSource = errors.New("no source selected: pass --path or --url, or set SOURCE_PATH or SOURCE_URL")

func newShowCmd(cfg *config.Config, flags *sourceFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Ingest the source once and print the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !validFormat(format) {
				return fmt.Errorf("unknown format %q (want table, csv, markdown or html)", format)
			}
			d, err := flags.resolve(cmd, cfg)
			if err != nil {
				return err
			}
			if d.IsZero() {
				return errNoSource
			}

			// stdout carries the table; logs go to stderr.
			logger := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			t, err := newIngestor(cfg, logger).Ingest(cmd.Context(), d)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), core.FormatUserError(err))
				return err
			}
			return renderTable(cmd.OutOrStdout(), t, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|csv|markdown|html)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "csv", "markdown", "html"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func validFormat(format string) bool {
	switch format {
	case "table", "csv", "markdown", "md", "html":
		return true
	}
	return false
}

// renderTable writes t in the given format. In the table format the result
// column is bold.
func renderTable(w io.Writer, t core.Table, format string) error {
	if t.IsEmpty() {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	tw := table.NewWriter()

	header := make(table.Row, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, r := range t.Rows {
		row := make(table.Row, len(t.Headers))
		for i := range row {
			if i < len(r) {
				row[i] = r[i]
			} else {
				row[i] = ""
			}
		}
		tw.AppendRow(row)
	}

	var out string
	switch format {
	case "csv":
		out = tw.RenderCSV()
	case "markdown", "md":
		out = tw.RenderMarkdown()
	case "html":
		out = tw.RenderHTML()
	default:
		tw.SetStyle(table.StyleLight)
		tw.Style().Format.Header = text.FormatDefault
		if col, ok := t.ResultColumn(); ok {
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: col + 1, Colors: text.Colors{text.Bold}},
			})
		}
		out = tw.Render() + fmt.Sprintf("\n(%d rows)", len(t.Rows))
	}

	_, err := fmt.Fprintln(w, out)
	return err
}
