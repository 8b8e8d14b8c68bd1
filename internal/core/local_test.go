package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MrVeink/svr/internal/testutil"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestReader(t *testing.T, opts LocalOptions) *LocalReader {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	return NewLocalReader(opts)
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"semicolon", "a;b;c\n1;2;3\n", ';'},
		{"semicolon wins over comma", "a,b;c\n", ';'},
		{"only first line counts", "a,b\n1;2\n", ','},
		{"single line without newline", "a;b", ';'},
		{"empty", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter([]byte(tt.data)))
		})
	}
}

func TestLocalReader_Read(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantHeaders []string
		wantRows    [][]string
	}{
		{
			name:        "comma separated",
			content:     "category,first_name,last_name,sport_id,result\nU10,Jane,Doe,5,12.3\n",
			wantHeaders: []string{"Series", "Name", "Surname", "Result"},
			wantRows:    [][]string{{"U10", "Jane", "Doe", "12.3"}},
		},
		{
			name:        "semicolon separated",
			content:     "category;first_name;result\nU12;Ola;9,5\n",
			wantHeaders: []string{"Series", "Name", "Result"},
			wantRows:    [][]string{{"U12", "Ola", "9,5"}},
		},
		{
			name:        "ragged rows",
			content:     "first_name,part-1,part-2\nAnn,10\nBo,9,8,extra\n",
			wantHeaders: []string{"Name", "S1", "S2"},
			wantRows:    [][]string{{"Ann", "10"}, {"Bo", "9", "8"}},
		},
		{
			name:        "blank rows dropped",
			content:     "first_name,result\n,\nAnn,1\n , \n",
			wantHeaders: []string{"Name", "Result"},
			wantRows:    [][]string{{"Ann", "1"}},
		},
		{
			name:        "first row is always the header",
			content:     "title,,\ncategory,first_name,result\nU10,Jane,1\n",
			wantHeaders: []string{"title", "", ""},
			wantRows:    [][]string{{"category", "first_name", "result"}, {"U10", "Jane", "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "results.csv", []byte(tt.content))

			got := newTestReader(t, LocalOptions{}).Read(context.Background(), path)

			assert.Equal(t, tt.wantHeaders, got.Headers)
			assert.Equal(t, tt.wantRows, got.Rows)
		})
	}
}

func TestLocalReader_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Bib;result\n7;1\n")...)
	path := writeFile(t, "bom.csv", data)

	got := newTestReader(t, LocalOptions{}).Read(context.Background(), path)

	assert.Equal(t, []string{"Bib", "Result"}, got.Headers)
	assert.Equal(t, [][]string{{"7", "1"}}, got.Rows)
}

func TestLocalReader_Encoding(t *testing.T) {
	data := []byte("first_name,result\nJos\xe9,1\n")
	path := writeFile(t, "latin1.csv", data)

	t.Run("latin1 decoded", func(t *testing.T) {
		got := newTestReader(t, LocalOptions{Encoding: "latin1"}).Read(context.Background(), path)
		require.Len(t, got.Rows, 1)
		assert.Equal(t, "José", got.Rows[0][0])
	})

	t.Run("invalid utf-8 replaced", func(t *testing.T) {
		got := newTestReader(t, LocalOptions{}).Read(context.Background(), path)
		require.Len(t, got.Rows, 1)
		assert.Equal(t, "Jos\uFFFD", got.Rows[0][0])
	})
}

func TestLocalReader_MissingFile(t *testing.T) {
	reader := newTestReader(t, LocalOptions{})
	path := filepath.Join(t.TempDir(), "missing.csv")

	_, _, err := reader.FetchRows(context.Background(), path)
	assert.True(t, errors.Is(err, ErrSourceUnreachable))

	got := reader.Read(context.Background(), path)
	assert.True(t, got.IsEmpty())
	assert.NotNil(t, got.Headers)
	assert.NotNil(t, got.Rows)
}

func TestLocalReader_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", nil)
	reader := newTestReader(t, LocalOptions{})

	header, rows, err := reader.FetchRows(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, rows)

	assert.True(t, reader.Read(context.Background(), path).IsEmpty())
}

func TestLocalReader_KeepsStrayQuotes(t *testing.T) {
	path := writeFile(t, "quotes.csv", []byte("first_name,result\nJane \"JJ\" Doe,12.3\nAnn,9\n"))

	got := newTestReader(t, LocalOptions{}).Read(context.Background(), path)

	assert.Equal(t, []string{"Name", "Result"}, got.Headers)
	assert.Equal(t, [][]string{{`Jane "JJ" Doe`, "12.3"}, {"Ann", "9"}}, got.Rows)
}

func TestLocalReader_StrayQuoteInHeader(t *testing.T) {
	path := writeFile(t, "header.csv", []byte("first_name,result 5\"\nAnn,9\n"))

	header, rows, err := newTestReader(t, LocalOptions{}).FetchRows(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{"first_name", `result 5"`}, header)
	assert.Equal(t, [][]string{{"Ann", "9"}}, rows)
}

func TestLocalReader_UnreadableHeaderIsSourceError(t *testing.T) {
	reader := newTestReader(t, LocalOptions{})

	// A quote delimiter is rejected by encoding/csv on the first read.
	_, _, err := reader.parseDelimited(context.Background(), []byte("a,b\n1,2\n"), '"')

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnreachable)
	assert.NotErrorIs(t, err, ErrMalformedRow)
	assert.Equal(t, "SRC001", MapError(err).Code)
}

func TestLocalReader_Cancelled(t *testing.T) {
	path := writeFile(t, "results.csv", []byte("a,b\n1,2\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestReader(t, LocalOptions{}).FetchRows(ctx, path)

	assert.ErrorIs(t, err, context.Canceled)
}

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLocalReader_Workbook(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"category", "first_name", "team_name", "result"},
		{"U10", "Jane", "Blue", "12.3"},
		{"", "", "", ""},
		{"U12", "Ola", "Red", "9"},
	})

	got := newTestReader(t, LocalOptions{}).Read(context.Background(), path)

	assert.Equal(t, []string{"Series", "Name", "Result"}, got.Headers)
	assert.Equal(t, [][]string{{"U10", "Jane", "12.3"}, {"U12", "Ola", "9"}}, got.Rows)
}

func TestLocalReader_WorkbookSheet(t *testing.T) {
	path := writeWorkbook(t, "Finals", [][]interface{}{
		{"first_name", "result"},
		{"Ann", "1"},
	})

	t.Run("configured sheet", func(t *testing.T) {
		got := newTestReader(t, LocalOptions{Sheet: "Finals"}).Read(context.Background(), path)
		assert.Equal(t, []string{"Name", "Result"}, got.Headers)
		assert.Equal(t, [][]string{{"Ann", "1"}}, got.Rows)
	})

	t.Run("unknown sheet", func(t *testing.T) {
		_, _, err := newTestReader(t, LocalOptions{Sheet: "Nope"}).FetchRows(context.Background(), path)
		assert.ErrorIs(t, err, ErrSourceUnreachable)
	})
}
