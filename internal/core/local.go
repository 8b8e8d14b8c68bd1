package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ContextCheckInterval is how often (in rows) parsing checks for cancellation.
var ContextCheckInterval = 100

// LocalOptions configures a LocalReader. The zero value reads UTF-8 text and
// the first sheet of workbooks.
type LocalOptions struct {
	// Encoding of delimited text files: "utf-8" (default), "latin1" or
	// "windows-1252".
	Encoding string

	// Sheet is the workbook sheet read for .xlsx files. Empty selects the
	// first sheet.
	Sheet string

	Logger *slog.Logger
}

// LocalReader reads tables from files on disk.
type LocalReader struct {
	encoding string
	sheet    string
	logger   *slog.Logger
}

// NewLocalReader creates a reader. Unknown encodings fall back to UTF-8.
func NewLocalReader(opts LocalOptions) *LocalReader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalReader{
		encoding: opts.Encoding,
		sheet:    opts.Sheet,
		logger:   logger,
	}
}

// decoderFor returns the text decoder for a configured encoding. A leading
// UTF-8 BOM always wins over the configured encoding and is stripped; invalid
// UTF-8 is replaced with U+FFFD.
func decoderFor(name string) transform.Transformer {
	var fallback *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "latin1", "latin-1", "iso-8859-1":
		fallback = charmap.ISO8859_1.NewDecoder()
	case "windows-1252", "cp1252":
		fallback = charmap.Windows1252.NewDecoder()
	default:
		fallback = unicode.UTF8.NewDecoder()
	}
	return unicode.BOMOverride(fallback)
}

// Read returns the normalized table stored at path. It never fails: any error
// is logged and yields an empty table.
func (r *LocalReader) Read(ctx context.Context, path string) Table {
	t, err := tableFrom(ctx, localSource{reader: r, path: path})
	if err != nil {
		r.logger.Warn("local read failed", "path", path, "error", err)
	}
	return t
}

// FetchRows returns the raw header row and data rows of the file at path.
// The first row of the file is always the header.
func (r *LocalReader) FetchRows(ctx context.Context, path string) ([]string, [][]string, error) {
	if isWorkbook(path) {
		return r.fetchWorkbookRows(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
	}
	defer f.Close()

	// Transformers keep state, so every read gets a fresh one.
	data, err := io.ReadAll(transform.NewReader(f, decoderFor(r.encoding)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decoding %s: %w", ErrSourceUnreachable, filepath.Base(path), err)
	}

	return r.parseDelimited(ctx, data, DetectDelimiter(data))
}

// DetectDelimiter inspects the first line of data: a semicolon anywhere in it
// selects ';', otherwise ',' is used.
func DetectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.IndexByte(line, ';') >= 0 {
		return ';'
	}
	return ','
}

// parseDelimited parses ragged delimited text. Stray quotes inside fields are
// kept as text. Rows that still fail to parse are skipped; a header that
// fails to parse makes the whole source unreadable.
func (r *LocalReader) parseDelimited(ctx context.Context, data []byte, delim rune) ([]string, [][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	// Allow variable number of fields per record
	cr.FieldsPerRecord = -1
	// Hand-typed names like Jane "JJ" Doe are common
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: header row: %w", ErrSourceUnreachable, err)
	}

	var rows [][]string
	for i := 0; ; i++ {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, fmt.Errorf("read cancelled at row %d: %w", i, err)
			}
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				r.logger.Debug("skipping row", "error", fmt.Errorf("%w: %w", ErrMalformedRow, err))
				continue
			}
			return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
		}
		rows = append(rows, rec)
	}

	return header, rows, nil
}

// isWorkbook reports whether path names an Excel workbook.
func isWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// fetchWorkbookRows reads the configured (or first) sheet of an .xlsx file.
func (r *LocalReader) fetchWorkbookRows(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sheet %q: %w", ErrSourceUnreachable, sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}
