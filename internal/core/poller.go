package core

// poller.go keeps the active source fresh.
//
// A single control loop counts ticks and, on every gate-th tick, decides
// whether the source may have changed. Local files are re-read only when
// their modification time moves forward; remote sheets are always refetched.
// The actual work is handed to the Pool, so the loop never waits on I/O.
//
// Overlapping fetches are not queued or ordered. Whichever completes last
// replaces the published Snapshot. Results for a source that has since been
// replaced are dropped.

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default poll cadence.
const (
	DefaultPollTick  = time.Second
	DefaultGateTicks = 5
)

// Snapshot is the published result of one ingestion.
type Snapshot struct {
	Table     Table            `json:"table"`
	Source    SourceDescriptor `json:"source"`
	FetchID   string           `json:"fetch_id"`
	UpdatedAt time.Time        `json:"updated_at"`

	// Err is the error the ingestion degraded from, if any. The Table is
	// still usable (empty) when Err is set.
	Err error `json:"-"`
}

// ResultColumn returns the result column of the snapshot's table.
func (s Snapshot) ResultColumn() (int, bool) {
	return s.Table.ResultColumn()
}

// PollState is the poller's bookkeeping for one selected source. It is
// created when the source is selected and discarded when it is replaced.
type PollState struct {
	Source SourceDescriptor

	// Marker is the last observed modification time of a local source.
	// Remote sources never set it.
	Marker    time.Time
	HasMarker bool

	LastTick time.Time
	Last     Snapshot
}

// PollerOptions configures a Poller. Ingestor and Pool are required.
type PollerOptions struct {
	Ingestor  *Ingestor
	Pool      *Pool
	Tick      time.Duration
	GateTicks int
	Logger    *slog.Logger

	// Now and Stat default to time.Now and the file's os.Stat ModTime. Tests
	// replace them.
	Now  func() time.Time
	Stat func(path string) (time.Time, error)
}

// Poller owns the active source and publishes Snapshots to subscribers.
type Poller struct {
	ingestor *Ingestor
	pool     *Pool
	tick     time.Duration
	gate     int
	logger   *slog.Logger
	now      func() time.Time
	stat     func(string) (time.Time, error)

	mu      sync.Mutex
	state   *PollState
	ticks   int
	subs    map[int]chan Snapshot
	nextSub int
}

// NewPoller creates a poller with no source selected.
func NewPoller(opts PollerOptions) *Poller {
	p := &Poller{
		ingestor: opts.Ingestor,
		pool:     opts.Pool,
		tick:     opts.Tick,
		gate:     opts.GateTicks,
		logger:   opts.Logger,
		now:      opts.Now,
		stat:     opts.Stat,
		subs:     make(map[int]chan Snapshot),
	}
	if p.tick <= 0 {
		p.tick = DefaultPollTick
	}
	if p.gate <= 0 {
		p.gate = DefaultGateTicks
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.stat == nil {
		p.stat = modTime
	}
	if p.ingestor == nil {
		p.ingestor = &Ingestor{Logger: p.logger}
	}
	if p.pool == nil {
		p.pool = NewPool(0, 0, p.logger)
	}
	p.state = &PollState{Last: Snapshot{Table: EmptyTable()}}
	return p
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// SetSource replaces the active source. Staleness tracking starts over, the
// local modification marker is recorded and an ingestion is dispatched
// immediately. The zero descriptor clears the source and publishes an empty
// table.
func (p *Poller) SetSource(ctx context.Context, d SourceDescriptor) {
	state := &PollState{
		Source: d,
		Last:   Snapshot{Table: EmptyTable(), Source: d},
	}

	if d.Kind == SourceLocal {
		if mtime, err := p.stat(d.Path); err == nil {
			state.Marker = mtime
			state.HasMarker = true
		}
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()

	p.logger.Info("source selected", "source", d.String())

	if d.IsZero() {
		p.complete(state, uuid.NewString(), EmptyTable(), nil, time.Time{})
		return
	}
	p.dispatch(ctx, state, time.Time{})
}

// Source returns the active descriptor.
func (p *Poller) Source() SourceDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Source
}

// Snapshot returns the last published snapshot of the active source.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Last
}

// State returns a copy of the active source's poll state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.state
}

// Run drives Tick from a ticker until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "tick", p.tick, "gate_ticks", p.gate)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick advances the tick counter. Only every gate-th tick checks the source.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	p.ticks++
	eligible := p.ticks%p.gate == 0
	state := p.state
	state.LastTick = p.now()
	p.mu.Unlock()

	if !eligible {
		return
	}

	switch state.Source.Kind {
	case SourceLocal:
		p.checkLocal(ctx, state)
	case SourceCloud:
		p.dispatch(ctx, state, time.Time{})
	}
}

// checkLocal dispatches a re-read when the file's modification time is
// strictly newer than the last one observed. The first observation only
// records the marker.
func (p *Poller) checkLocal(ctx context.Context, state *PollState) {
	mtime, err := p.stat(state.Source.Path)
	if err != nil {
		p.logger.Debug("stat failed", "path", state.Source.Path, "error", err)
		return
	}

	p.mu.Lock()
	if p.state != state {
		p.mu.Unlock()
		return
	}
	if !state.HasMarker {
		state.Marker = mtime
		state.HasMarker = true
		p.mu.Unlock()
		return
	}
	changed := mtime.After(state.Marker)
	p.mu.Unlock()

	if changed {
		p.dispatch(ctx, state, mtime)
	}
}

// dispatch runs one ingestion of state's source on the pool. mtime is the
// modification time observed for a local source, zero otherwise.
func (p *Poller) dispatch(ctx context.Context, state *PollState, mtime time.Time) {
	id := uuid.NewString()
	d := state.Source

	p.logger.Debug("ingestion dispatched", "fetch_id", id, "source", d.String())

	p.pool.Go(ctx, "ingest "+d.String(), func(jobCtx context.Context) {
		jobCtx = ContextWithFetchID(jobCtx, id)
		table, err := p.ingestor.Ingest(jobCtx, d)
		p.complete(state, id, table, err, mtime)
	})
}

// complete stores a finished ingestion and publishes it, unless its source
// was replaced in the meantime.
func (p *Poller) complete(state *PollState, id string, table Table, err error, mtime time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != state {
		p.logger.Debug("dropping result for replaced source", "fetch_id", id, "source", state.Source.String())
		return
	}

	if !mtime.IsZero() {
		state.Marker = mtime
		state.HasMarker = true
	}

	snap := Snapshot{
		Table:     table,
		Source:    state.Source,
		FetchID:   id,
		UpdatedAt: p.now(),
		Err:       err,
	}
	state.Last = snap

	p.logger.Debug("ingestion completed",
		"fetch_id", id,
		"source", state.Source.String(),
		"columns", len(table.Headers),
		"rows", len(table.Rows),
	)

	p.publish(snap)
}

// publish hands snap to every subscriber. Each channel holds at most one
// pending snapshot; an undelivered older one is replaced. Caller holds p.mu.
func (p *Poller) publish(snap Snapshot) {
	for _, ch := range p.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe returns a channel receiving every published snapshot (latest
// only for slow readers) and a function that ends the subscription. If an
// ingestion has already completed, its snapshot is delivered right away.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	if p.state.Last.FetchID != "" {
		ch <- p.state.Last
	}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// Drain waits for in-flight ingestions to finish.
func (p *Poller) Drain(ctx context.Context) error {
	return p.pool.WaitForDrain(ctx)
}

// PoolStatus reports the ingest pool's slots and counters.
func (p *Poller) PoolStatus() PoolStatus {
	return p.pool.Status()
}
