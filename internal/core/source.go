package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SourceKind tags the variant held by a SourceDescriptor.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceLocal
	SourceCloud
)

// String returns the string representation of SourceKind
func (k SourceKind) String() string {
	switch k {
	case SourceLocal:
		return "local"
	case SourceCloud:
		return "cloud"
	default:
		return "none"
	}
}

// MarshalText encodes the kind by name.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unknown names are an error.
func (k *SourceKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "local":
		*k = SourceLocal
	case "cloud":
		*k = SourceCloud
	case "none", "":
		*k = SourceNone
	default:
		return fmt.Errorf("unknown source kind %q", text)
	}
	return nil
}

// SourceDescriptor identifies where table data comes from: a local file or a
// remote spreadsheet plus sheet name. It is a value type and never changes
// once selected; selecting another source means building a new descriptor.
type SourceDescriptor struct {
	Kind  SourceKind `json:"kind"`
	Path  string     `json:"path,omitempty"`
	URL   string     `json:"url,omitempty"`
	Sheet string     `json:"sheet,omitempty"`
}

// Local returns a descriptor for a file on disk.
func Local(path string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceLocal, Path: path}
}

// Cloud returns a descriptor for a remote spreadsheet. An empty sheet name
// selects the default sheet at fetch time.
func Cloud(url, sheet string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceCloud, URL: url, Sheet: sheet}
}

// IsZero reports whether no source has been selected.
func (d SourceDescriptor) IsZero() bool {
	return d.Kind == SourceNone
}

// String returns a short human-readable form for logs and status lines.
func (d SourceDescriptor) String() string {
	switch d.Kind {
	case SourceLocal:
		return "local:" + d.Path
	case SourceCloud:
		if d.Sheet == "" {
			return "cloud:" + d.URL
		}
		return fmt.Sprintf("cloud:%s#%s", d.URL, d.Sheet)
	default:
		return "none"
	}
}

// DescriptorFrom builds a descriptor from the usual path/url/sheet inputs
// (flags, env vars, request bodies). Exactly one of path and url must be set;
// both empty yields the zero descriptor and no error.
func DescriptorFrom(path, url, sheet string) (SourceDescriptor, error) {
	path = strings.TrimSpace(path)
	url = strings.TrimSpace(url)

	switch {
	case path != "" && url != "":
		return SourceDescriptor{}, fmt.Errorf("choose either a local path or a spreadsheet url, not both")
	case path != "":
		return Local(path), nil
	case url != "":
		return Cloud(url, strings.TrimSpace(sheet)), nil
	default:
		return SourceDescriptor{}, nil
	}
}

// RowSource is the capability every source variant implements: produce the
// raw header row and the raw data rows that follow it.
type RowSource interface {
	FetchRows(ctx context.Context) (header []string, rows [][]string, err error)
}

// Ingestor binds descriptors to the readers that serve them.
type Ingestor struct {
	Local  *LocalReader
	Remote *RemoteFetcher
	Logger *slog.Logger
}

// Source returns the RowSource for a descriptor.
func (in *Ingestor) Source(d SourceDescriptor) RowSource {
	switch d.Kind {
	case SourceLocal:
		reader := in.Local
		if reader == nil {
			reader = NewLocalReader(LocalOptions{})
		}
		return localSource{reader: reader, path: d.Path}
	case SourceCloud:
		if in.Remote == nil {
			return failedSource{err: fmt.Errorf("%w: remote spreadsheets are not configured", ErrSourceUnreachable)}
		}
		return cloudSource{fetcher: in.Remote, url: d.URL, sheet: d.Sheet}
	default:
		return noSource{}
	}
}

// Ingest reads the descriptor's source and normalizes it. Failures are logged
// and degrade to an empty table; the returned error is informational only.
func (in *Ingestor) Ingest(ctx context.Context, d SourceDescriptor) (Table, error) {
	t, err := tableFrom(ctx, in.Source(d))
	if err != nil {
		in.logger().Warn("ingestion degraded to empty table",
			"source", d.String(),
			"error", err,
			"code", MapError(err).Code,
		)
	}
	return t, err
}

// tableFrom fetches src and normalizes the rows. A failed fetch yields
// EmptyTable along with the error, as does a source with no header row
// (without an error).
func tableFrom(ctx context.Context, src RowSource) (Table, error) {
	header, rows, err := src.FetchRows(ctx)
	if err != nil {
		return EmptyTable(), err
	}
	if header == nil {
		return EmptyTable(), nil
	}
	return Normalize(header, rows), nil
}

func (in *Ingestor) logger() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return slog.Default()
}

type localSource struct {
	reader *LocalReader
	path   string
}

func (s localSource) FetchRows(ctx context.Context) ([]string, [][]string, error) {
	return s.reader.FetchRows(ctx, s.path)
}

type cloudSource struct {
	fetcher *RemoteFetcher
	url     string
	sheet   string
}

func (s cloudSource) FetchRows(ctx context.Context) ([]string, [][]string, error) {
	return s.fetcher.FetchRows(ctx, s.url, s.sheet)
}

type failedSource struct {
	err error
}

func (s failedSource) FetchRows(context.Context) ([]string, [][]string, error) {
	return nil, nil, s.err
}

type noSource struct{}

func (noSource) FetchRows(context.Context) ([]string, [][]string, error) {
	return nil, nil, nil
}
