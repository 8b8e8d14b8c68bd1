package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrVeink/svr/internal/core"
	"github.com/MrVeink/svr/internal/logging"
)

// maxSourceBody bounds the POST /api/source payload.
const maxSourceBody = 64 * 1024

var errNoSource = errors.New("no source selected: set either path or url")

// tableResponse is the JSON form of a Snapshot.
type tableResponse struct {
	Headers      []string              `json:"headers"`
	Rows         [][]string            `json:"rows"`
	ResultColumn *int                  `json:"result_column"`
	Source       core.SourceDescriptor `json:"source"`
	FetchID      string                `json:"fetch_id"`
	UpdatedAt    *time.Time            `json:"updated_at"`
	Error        *core.UserMessage     `json:"error,omitempty"`
}

func newTableResponse(snap core.Snapshot) tableResponse {
	resp := tableResponse{
		Headers: snap.Table.Headers,
		Rows:    snap.Table.Rows,
		Source:  snap.Source,
		FetchID: snap.FetchID,
	}
	if resp.Headers == nil {
		resp.Headers = []string{}
	}
	if resp.Rows == nil {
		resp.Rows = [][]string{}
	}
	if col, ok := snap.ResultColumn(); ok {
		resp.ResultColumn = &col
	}
	if !snap.UpdatedAt.IsZero() {
		updated := snap.UpdatedAt
		resp.UpdatedAt = &updated
	}
	if snap.Err != nil {
		msg := core.MapError(snap.Err)
		resp.Error = &msg
	}
	return resp
}

// sourceRequest selects a source. Exactly one of Path or URL must be set,
// unless Kind is "none", which clears the selection. The body GET
// /api/source returns is a valid request.
type sourceRequest struct {
	Kind  *core.SourceKind `json:"kind,omitempty"`
	Path  string           `json:"path"`
	URL   string           `json:"url"`
	Sheet string           `json:"sheet"`
}

// handleScoreboard renders the scoreboard page. ?theme= overrides the
// configured theme for this request.
func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	name := s.opts.Theme
	if q := r.URL.Query().Get("theme"); q != "" {
		name = q
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := scoreboardPage(pageData{
		Snapshot: s.source.Snapshot(),
		Theme:    themeFor(name),
		Version:  s.opts.Version,
	})
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render scoreboard", "error", err)
	}
}

// healthResponse reports liveness and the ingest pool's load.
type healthResponse struct {
	Status string          `json:"status"`
	Pool   core.PoolStatus `json:"pool"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Pool: s.source.PoolStatus()})
}

// handleTable returns the latest published snapshot.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTableResponse(s.source.Snapshot()))
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Source())
}

// handleSetSource replaces the active source. The ingestion runs in the
// background; clients pick up the result from /api/table or /api/events.
func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSourceBody)

	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	d, err := core.DescriptorFrom(req.Path, req.URL, req.Sheet)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Kind != nil && *req.Kind != d.Kind {
		s.respondError(w, r, fmt.Errorf("source kind %s does not match the given path or url", *req.Kind), http.StatusBadRequest)
		return
	}
	if d.IsZero() && req.Kind == nil {
		s.respondError(w, r, errNoSource, http.StatusBadRequest)
		return
	}
	if d.Kind == core.SourceCloud {
		if _, err := core.ExtractSpreadsheetID(d.URL); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	// The request context ends with the response; the ingestion must not.
	s.source.SetSource(context.WithoutCancel(r.Context()), d)

	writeJSON(w, http.StatusAccepted, d)
}

// handleEvents streams one "update" event per published snapshot.
// The current snapshot, if any, is sent immediately on connect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	logger := logging.WithFields(r.Context(), "stream", "events")
	updates, unsubscribe := s.source.Subscribe()
	defer unsubscribe()
	logger.Debug("event stream opened")
	defer logger.Debug("event stream closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(s.opts.KeepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.streams.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(newTableResponse(snap))
			if err != nil {
				logger.Error("encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: update\ndata: %s\n\n", snap.FetchID, data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
