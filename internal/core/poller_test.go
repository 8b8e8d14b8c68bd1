package core

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrVeink/svr/internal/testutil"
)

func (c *fakeValuesClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeValuesClient) set(values [][]string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = values
	c.err = err
}

// gatedClient blocks every request until the test releases it, so the order
// in which overlapping fetches complete can be chosen.
type gatedClient struct {
	arrived chan *gatedCall
}

type gatedCall struct {
	values  [][]string
	release chan struct{}
}

func newGatedClient() *gatedClient {
	return &gatedClient{arrived: make(chan *gatedCall, 8)}
}

func (c *gatedClient) GetValues(ctx context.Context, _, _ string) ([][]string, error) {
	call := &gatedCall{release: make(chan struct{})}
	c.arrived <- call
	<-call.release
	return call.values, nil
}

func (c *gatedClient) next(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case call := <-c.arrived:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch arrived")
		return nil
	}
}

func newTestPoller(t *testing.T, client ValuesClient, opts PollerOptions) *Poller {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	if opts.Logger == nil {
		opts.Logger = logger
	}
	if opts.Ingestor == nil {
		opts.Ingestor = &Ingestor{
			Local:  NewLocalReader(LocalOptions{Logger: logger}),
			Remote: NewRemoteFetcher(client, logger),
			Logger: logger,
		}
	}
	if opts.Pool == nil {
		opts.Pool = NewPool(4, time.Second, logger)
	}
	p := NewPoller(opts)
	t.Cleanup(func() { drain(t, p) })
	return p
}

func drain(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
}

func tickN(p *Poller, n int) {
	for i := 0; i < n; i++ {
		p.Tick(context.Background())
	}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
		return Snapshot{}
	}
}

func TestPoller_CloudGatedTicks(t *testing.T) {
	client := &fakeValuesClient{values: [][]string{{"category"}, {"U10"}}}
	p := newTestPoller(t, client, PollerOptions{GateTicks: 5})
	ctx := context.Background()

	p.SetSource(ctx, Cloud(sheetURL, ""))
	drain(t, p)
	assert.Equal(t, 1, client.callCount(), "selecting a source fetches immediately")

	tickN(p, 4)
	drain(t, p)
	assert.Equal(t, 1, client.callCount(), "ineligible ticks do nothing")

	tickN(p, 1)
	drain(t, p)
	assert.Equal(t, 2, client.callCount(), "every fifth tick refetches")

	tickN(p, 5)
	drain(t, p)
	assert.Equal(t, 3, client.callCount(), "cloud sources refetch unconditionally")
}

func TestPoller_LocalModificationTime(t *testing.T) {
	path := writeFile(t, "results.csv", []byte("first_name,result\nAnn,1\n"))
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, base, base))

	p := newTestPoller(t, nil, PollerOptions{})
	ctx := context.Background()

	p.SetSource(ctx, Local(path))
	drain(t, p)

	first := p.Snapshot()
	assert.NotEmpty(t, first.FetchID)
	assert.Equal(t, Local(path), first.Source)
	assert.Equal(t, [][]string{{"Ann", "1"}}, first.Table.Rows)

	state := p.State()
	require.True(t, state.HasMarker)
	assert.True(t, state.Marker.Equal(base))

	// Content changes without a newer modification time go unnoticed.
	require.NoError(t, os.WriteFile(path, []byte("first_name,result\nBo,2\n"), 0o644))
	require.NoError(t, os.Chtimes(path, base, base))
	tickN(p, 5)
	drain(t, p)
	assert.Equal(t, first.FetchID, p.Snapshot().FetchID)

	// An older modification time is not newer either.
	require.NoError(t, os.Chtimes(path, base.Add(-time.Minute), base.Add(-time.Minute)))
	tickN(p, 5)
	drain(t, p)
	assert.Equal(t, first.FetchID, p.Snapshot().FetchID)

	newer := base.Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, newer, newer))
	tickN(p, 4)
	drain(t, p)
	assert.Equal(t, first.FetchID, p.Snapshot().FetchID, "only gated ticks check the file")

	tickN(p, 1)
	drain(t, p)
	second := p.Snapshot()
	assert.NotEqual(t, first.FetchID, second.FetchID)
	assert.Equal(t, [][]string{{"Bo", "2"}}, second.Table.Rows)
	assert.True(t, p.State().Marker.Equal(newer))
}

func TestPoller_LocalFirstObservationOnlyRecords(t *testing.T) {
	path := writeFile(t, "later.csv", nil)
	require.NoError(t, os.Remove(path))

	p := newTestPoller(t, nil, PollerOptions{})
	ctx := context.Background()

	p.SetSource(ctx, Local(path))
	drain(t, p)
	initial := p.Snapshot()
	assert.True(t, initial.Table.IsEmpty())
	assert.ErrorIs(t, initial.Err, ErrSourceUnreachable)
	assert.False(t, p.State().HasMarker)

	require.NoError(t, os.WriteFile(path, []byte("first_name\nAnn\n"), 0o644))
	tickN(p, 5)
	drain(t, p)
	assert.True(t, p.State().HasMarker)
	assert.Equal(t, initial.FetchID, p.Snapshot().FetchID)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	tickN(p, 5)
	drain(t, p)
	assert.Equal(t, [][]string{{"Ann"}}, p.Snapshot().Table.Rows)
}

func TestPoller_CloudErrorEmptiesTable(t *testing.T) {
	client := &fakeValuesClient{values: [][]string{{"first_name"}, {"Ann"}}}
	p := newTestPoller(t, client, PollerOptions{GateTicks: 1})
	ctx := context.Background()

	p.SetSource(ctx, Cloud(sheetURL, ""))
	drain(t, p)
	require.False(t, p.Snapshot().Table.IsEmpty())

	client.set(nil, errors.New("googleapi: Error 503: backend unavailable"))
	tickN(p, 1)
	drain(t, p)

	snap := p.Snapshot()
	assert.True(t, snap.Table.IsEmpty())
	assert.ErrorIs(t, snap.Err, ErrSourceUnreachable)
	assert.Equal(t, "SRC001", MapError(snap.Err).Code)

	client.set([][]string{{"first_name"}, {"Bo"}}, nil)
	tickN(p, 1)
	drain(t, p)
	assert.Equal(t, [][]string{{"Bo"}}, p.Snapshot().Table.Rows)
	assert.NoError(t, p.Snapshot().Err)
}

func TestPoller_InvalidReference(t *testing.T) {
	client := &fakeValuesClient{}
	p := newTestPoller(t, client, PollerOptions{})

	p.SetSource(context.Background(), Cloud("https://example.com/sheet", ""))
	drain(t, p)

	snap := p.Snapshot()
	assert.True(t, snap.Table.IsEmpty())
	assert.ErrorIs(t, snap.Err, ErrInvalidReference)
	assert.Zero(t, client.callCount())
}

func TestPoller_LastCompletedFetchWins(t *testing.T) {
	tableA := [][]string{{"first_name"}, {"from A"}}
	tableB := [][]string{{"first_name"}, {"from B"}}

	tests := []struct {
		name       string
		firstDone  string
		wantWinner string
	}{
		{name: "B completes first, A last", firstDone: "B", wantWinner: "from A"},
		{name: "A completes first, B last", firstDone: "A", wantWinner: "from B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newGatedClient()
			p := newTestPoller(t, client, PollerOptions{GateTicks: 1})
			updates, unsubscribe := p.Subscribe()
			defer unsubscribe()
			ctx := context.Background()

			p.SetSource(ctx, Cloud(sheetURL, ""))
			a := client.next(t)
			tickN(p, 1)
			b := client.next(t)

			a.values = tableA
			b.values = tableB

			first, last := a, b
			if tt.firstDone == "B" {
				first, last = b, a
			}

			close(first.release)
			receive(t, updates)
			close(last.release)
			final := receive(t, updates)
			drain(t, p)

			assert.Equal(t, [][]string{{tt.wantWinner}}, final.Table.Rows)
			assert.Equal(t, final, p.Snapshot())
		})
	}
}

func TestPoller_ReplacedSourceDropsResults(t *testing.T) {
	client := newGatedClient()
	p := newTestPoller(t, client, PollerOptions{})
	ctx := context.Background()

	p.SetSource(ctx, Cloud(sheetURL, ""))
	stale := client.next(t)

	path := writeFile(t, "results.csv", []byte("first_name\nAnn\n"))
	p.SetSource(ctx, Local(path))
	require.Eventually(t, func() bool {
		return p.Snapshot().FetchID != ""
	}, 2*time.Second, 5*time.Millisecond)

	stale.values = [][]string{{"category"}, {"U10"}}
	close(stale.release)
	drain(t, p)

	snap := p.Snapshot()
	assert.Equal(t, Local(path), snap.Source)
	assert.Equal(t, Local(path), p.Source())
	assert.Equal(t, []string{"Name"}, snap.Table.Headers)
}

func TestPoller_SetSourceResetsState(t *testing.T) {
	path := writeFile(t, "results.csv", []byte("first_name\nAnn\n"))
	client := &fakeValuesClient{values: [][]string{{"first_name"}, {"Bo"}}}
	p := newTestPoller(t, client, PollerOptions{})
	ctx := context.Background()

	p.SetSource(ctx, Local(path))
	drain(t, p)
	require.True(t, p.State().HasMarker)

	p.SetSource(ctx, Cloud(sheetURL, "Finals"))
	state := p.State()
	assert.False(t, state.HasMarker, "remote sources never track staleness")
	assert.Equal(t, Cloud(sheetURL, "Finals"), state.Source)

	drain(t, p)
	assert.Equal(t, [][]string{{"Bo"}}, p.Snapshot().Table.Rows)
}

func TestPoller_ClearSource(t *testing.T) {
	client := &fakeValuesClient{values: [][]string{{"first_name"}, {"Bo"}}}
	p := newTestPoller(t, client, PollerOptions{GateTicks: 1})
	ctx := context.Background()

	p.SetSource(ctx, Cloud(sheetURL, ""))
	drain(t, p)

	p.SetSource(ctx, SourceDescriptor{})
	snap := p.Snapshot()
	assert.True(t, snap.Source.IsZero())
	assert.True(t, snap.Table.IsEmpty())

	tickN(p, 3)
	drain(t, p)
	assert.Equal(t, 1, client.callCount())
}

func TestPoller_SubscribeLatestOnly(t *testing.T) {
	p := newTestPoller(t, nil, PollerOptions{})
	ctx := context.Background()

	updates, unsubscribe := p.Subscribe()

	// Clearing the source publishes synchronously.
	p.SetSource(ctx, SourceDescriptor{})
	p.SetSource(ctx, SourceDescriptor{})
	p.SetSource(ctx, SourceDescriptor{})

	got := receive(t, updates)
	assert.Equal(t, p.Snapshot().FetchID, got.FetchID)

	select {
	case extra := <-updates:
		t.Fatalf("unexpected queued snapshot %s", extra.FetchID)
	default:
	}

	unsubscribe()
	unsubscribe()
	_, open := <-updates
	assert.False(t, open)
}

func TestPoller_SubscribeReceivesCurrent(t *testing.T) {
	path := writeFile(t, "results.csv", []byte("first_name\nAnn\n"))
	p := newTestPoller(t, nil, PollerOptions{})

	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()
	select {
	case <-updates:
		t.Fatal("nothing has been ingested yet")
	default:
	}

	p.SetSource(context.Background(), Local(path))
	drain(t, p)

	late, unsubscribeLate := p.Subscribe()
	defer unsubscribeLate()
	assert.Equal(t, p.Snapshot(), receive(t, late))
}

func TestPoller_Timestamps(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeValuesClient{values: [][]string{{"first_name"}, {"Ann"}}}
	p := newTestPoller(t, client, PollerOptions{
		Now: func() time.Time { return fixed },
	})

	p.SetSource(context.Background(), Cloud(sheetURL, ""))
	drain(t, p)
	tickN(p, 1)

	assert.Equal(t, fixed, p.Snapshot().UpdatedAt)
	assert.Equal(t, fixed, p.State().LastTick)
}

func TestPoller_Run(t *testing.T) {
	client := &fakeValuesClient{values: [][]string{{"first_name"}, {"Ann"}}}
	p := newTestPoller(t, client, PollerOptions{Tick: 5 * time.Millisecond, GateTicks: 1})

	p.SetSource(context.Background(), Cloud(sheetURL, ""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return client.callCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
