package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrVeink/svr/internal/core"
	"github.com/MrVeink/svr/internal/testutil"
)

func TestClient_GetValues(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"range": "Finals!A1:Z3",
			"majorDimension": "ROWS",
			"values": [["category", "result"], ["U10", 12.5], [], ["U12", null]]
		}`))
	}))
	defer srv.Close()

	client := New(Options{Endpoint: srv.URL, Timeout: time.Second, Logger: testutil.NewTestLogger(t)})

	values, err := client.GetValues(context.Background(), "abc123", "Finals!A:Z")
	require.NoError(t, err)

	assert.Equal(t, "/v4/spreadsheets/abc123/values/Finals!A:Z", <-paths)
	assert.Equal(t, [][]string{
		{"category", "result"},
		{"U10", "12.5"},
		{},
		{"U12", ""},
	}, values)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"The caller does not have permission"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(Options{Endpoint: srv.URL, Logger: testutil.NewTestLogger(t)})

	_, err := client.GetValues(context.Background(), "abc123", "Sheet1!A:Z")
	assert.Error(t, err)
}

func TestClient_MissingCredentials(t *testing.T) {
	client := New(Options{
		CredentialsFile: filepath.Join(t.TempDir(), "credentials.json"),
		Logger:          testutil.NewTestLogger(t),
	})

	_, err := client.GetValues(context.Background(), "abc123", "Sheet1!A:Z")
	assert.ErrorContains(t, err, "credentials file")
}

func TestClient_ThroughRemoteFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": [["Spring cup"], ["Category", "first_name", "sport_id"], ["U10", "Jane", "7"]]}`))
	}))
	defer srv.Close()

	logger := testutil.NewTestLogger(t)
	fetcher := core.NewRemoteFetcher(New(Options{Endpoint: srv.URL, Logger: logger}), logger)

	table, err := fetcher.Fetch(context.Background(), "https://docs.google.com/spreadsheets/d/abc123/edit", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Series", "Name"}, table.Headers)
	assert.Equal(t, [][]string{{"U10", "Jane"}}, table.Rows)
}

func TestDefaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultCredentialsFile, c.opts.CredentialsFile)
	assert.Equal(t, 30*time.Second, c.opts.Timeout)
}
