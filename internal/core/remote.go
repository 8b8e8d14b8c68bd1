package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultSheet is used when no sheet name is given for a remote source.
const DefaultSheet = "Sheet1"

// categoryMarker is the first cell of the real header row in remote sheets.
const categoryMarker = "category"

// ValuesClient fetches the raw cell values of a spreadsheet range. It is the
// boundary to the authenticated remote service; implementations own
// credentials and transport.
type ValuesClient interface {
	GetValues(ctx context.Context, spreadsheetID, cellRange string) ([][]string, error)
}

// RemoteFetcher reads tables from remote spreadsheets.
type RemoteFetcher struct {
	client ValuesClient
	logger *slog.Logger
}

// NewRemoteFetcher creates a fetcher backed by client.
func NewRemoteFetcher(client ValuesClient, logger *slog.Logger) *RemoteFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteFetcher{client: client, logger: logger}
}

// Fetch returns the normalized table of a sheet. Unlike the local reader it
// reports failures; callers that need a table regardless fall back to
// EmptyTable.
func (f *RemoteFetcher) Fetch(ctx context.Context, url, sheet string) (Table, error) {
	return tableFrom(ctx, cloudSource{fetcher: f, url: url, sheet: sheet})
}

// FetchRows fetches "<sheet>!A:Z" and returns the resolved header row plus
// the rows after it.
func (f *RemoteFetcher) FetchRows(ctx context.Context, url, sheet string) ([]string, [][]string, error) {
	id, err := ExtractSpreadsheetID(url)
	if err != nil {
		return nil, nil, err
	}

	cellRange := SheetRange(sheet)
	values, err := f.client.GetValues(ctx, id, cellRange)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetching %s: %w", ErrSourceUnreachable, cellRange, err)
	}

	f.logger.Debug("fetched sheet values", "spreadsheet_id", id, "range", cellRange, "rows", len(values))

	header, rows := ResolveHeaderRow(values)
	return header, rows, nil
}

// ExtractSpreadsheetID returns the path segment following a segment equal to
// "d", as in https://docs.google.com/spreadsheets/d/<id>/edit.
func ExtractSpreadsheetID(url string) (string, error) {
	parts := strings.Split(url, "/")
	for i, part := range parts {
		if part == "d" && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: %q has no /d/<id> segment", ErrInvalidReference, url)
}

// SheetRange returns the fixed full-width range fetched for a sheet.
func SheetRange(sheet string) string {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return sheet + "!A:Z"
}

// ResolveHeaderRow finds the first row whose first cell equals "category"
// (case-insensitive) and returns it with the rows after it. Rows above it are
// discarded. Without such a row the first row is the header. A nil header
// means there was nothing to read.
func ResolveHeaderRow(values [][]string) ([]string, [][]string) {
	if len(values) == 0 {
		return nil, nil
	}

	start := 0
	for i, row := range values {
		if len(row) > 0 && strings.EqualFold(row[0], categoryMarker) {
			start = i
			break
		}
	}

	relevant := values[start:]
	if len(relevant) == 0 {
		return nil, nil
	}
	return relevant[0], relevant[1:]
}
