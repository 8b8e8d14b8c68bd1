// Package sheets reads cell values from Google Sheets with a service-account
// credential file. It implements core.ValuesClient.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/MrVeink/svr/internal/core"
)

// DefaultCredentialsFile is the service-account key looked up in the working
// directory when none is configured.
const DefaultCredentialsFile = "credentials.json"

// Options configures a Client.
type Options struct {
	CredentialsFile string
	Timeout         time.Duration

	// Endpoint overrides the API base URL and disables authentication. It is
	// meant for emulators and tests.
	Endpoint string

	Logger *slog.Logger
}

// Client fetches ranges through the Sheets v4 API.
//
// The credential file is read on every request, so a rotated key is picked
// up without a restart. Requests run on the ingest pool, never on the
// poller's control loop.
type Client struct {
	opts Options
}

var _ core.ValuesClient = (*Client)(nil)

// New creates a client.
func New(opts Options) *Client {
	if opts.CredentialsFile == "" {
		opts.CredentialsFile = DefaultCredentialsFile
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{opts: opts}
}

// GetValues returns the values of cellRange as strings. Missing and nil
// cells become "".
func (c *Client) GetValues(ctx context.Context, spreadsheetID, cellRange string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	clientOpts, err := c.clientOptions()
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	start := time.Now()
	resp, err := srv.Spreadsheets.Values.Get(spreadsheetID, cellRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}

	c.opts.Logger.Debug("sheets values fetched",
		"spreadsheet_id", spreadsheetID,
		"range", resp.Range,
		"rows", len(resp.Values),
		"fetch_id", core.FetchIDFromContext(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return toStrings(resp.Values), nil
}

func (c *Client) clientOptions() ([]option.ClientOption, error) {
	if c.opts.Endpoint != "" {
		endpoint := c.opts.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		return []option.ClientOption{
			option.WithEndpoint(endpoint),
			option.WithoutAuthentication(),
		}, nil
	}

	if _, err := os.Stat(c.opts.CredentialsFile); err != nil {
		return nil, fmt.Errorf("credentials file: %w", err)
	}
	return []option.ClientOption{
		option.WithCredentialsFile(c.opts.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	}, nil
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellString(v)
		}
		out[i] = cells
	}
	return out
}

func cellString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
