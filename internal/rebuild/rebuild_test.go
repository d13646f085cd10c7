package rebuild

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/resync"
	"github.com/roach88/claimgraph/internal/testutil"
)

type fakeBackend struct {
	kind     graph.BackendType
	claims   int64
	claimErr error
	healthy  bool
}

func (b *fakeBackend) BackendType() graph.BackendType { return b.kind }
func (b *fakeBackend) Healthy(context.Context) bool   { return b.healthy }
func (b *fakeBackend) ClaimCount(context.Context) (int64, error) {
	if b.claimErr != nil {
		return -1, b.claimErr
	}
	return b.claims, nil
}

type fakeCounter struct {
	n     int64
	err   error
	calls atomic.Int32
}

func (c *fakeCounter) ActiveCount(context.Context) (int64, error) {
	c.calls.Add(1)
	return c.n, c.err
}

type fakeRunner struct {
	items  []resync.ItemResult
	block  chan struct{}
	err    error
	panicV any
	calls  atomic.Int32
	opts   atomic.Value
}

func (r *fakeRunner) Run(ctx context.Context, opts resync.Options, progress func(resync.ItemResult)) (resync.Summary, error) {
	r.calls.Add(1)
	r.opts.Store(opts)
	for _, it := range r.items {
		progress(it)
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return resync.Summary{Aborted: true}, ctx.Err()
		}
	}
	if r.panicV != nil {
		panic(r.panicV)
	}
	return resync.Summary{Processed: int64(len(r.items))}, r.err
}

func ok(hash string) resync.ItemResult { return resync.ItemResult{Hash: hash} }

func bad(hash string) resync.ItemResult {
	return resync.ItemResult{Hash: hash, Err: errors.New("bad record")}
}

func newTestOrchestrator(b Backend, c RecordCounter, r Runner, opts ...Option) *Orchestrator {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(testutil.NewSequentialIDs("run")),
	}, opts...)
	return New(b, c, r, opts...)
}

func sqlite() *fakeBackend { return &fakeBackend{kind: graph.BackendSQLite, healthy: true} }

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}

func TestStatus_IdleBeforeFirstTrigger(t *testing.T) {
	o := newTestOrchestrator(sqlite(), &fakeCounter{}, &fakeRunner{})

	st := o.Status()
	assert.Zero(t, st.Total)
	assert.True(t, st.Complete)
	assert.False(t, st.Running)
	assert.False(t, st.FailedRun)
	assert.Equal(t, 100, st.PercentComplete)
	assert.Nil(t, st.ErrorMessage)
	assert.NoError(t, o.Wait(context.Background()))
}

func TestTrigger_DisabledBackend(t *testing.T) {
	counter := &fakeCounter{n: 5}
	runner := &fakeRunner{}
	o := newTestOrchestrator(&fakeBackend{kind: graph.BackendNone}, counter, runner)

	started, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.Error(t, err)
	assert.True(t, graph.IsDisabled(err))
	assert.False(t, started)
	assert.False(t, o.Running())
	assert.Zero(t, counter.calls.Load())
	assert.Zero(t, runner.calls.Load())
}

func TestTrigger_InvalidOptions(t *testing.T) {
	o := newTestOrchestrator(sqlite(), &fakeCounter{}, &fakeRunner{})

	_, err := o.Trigger(context.Background(), resync.Options{ChunkCount: 1, Threads: 0, BatchSize: 1})
	assert.ErrorIs(t, err, resync.ErrInvalidOptions)
	assert.False(t, o.Running())
}

func TestTrigger_SingleFlight(t *testing.T) {
	runner := &fakeRunner{items: []resync.ItemResult{ok("a"), ok("b")}, block: make(chan struct{})}
	o := newTestOrchestrator(sqlite(), &fakeCounter{n: 4}, runner)

	started, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, started)

	again, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	assert.False(t, again)
	assert.True(t, o.Running())
	assert.True(t, o.Status().Running)

	close(runner.block)
	waitDone(t, o)

	st := o.Status()
	assert.False(t, st.Running)
	assert.True(t, st.Complete)
	assert.False(t, st.FailedRun)
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, int64(4), st.Total)
	assert.Equal(t, int64(2), st.Processed)
	assert.Equal(t, 50, st.PercentComplete)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestTrigger_PassesOptions(t *testing.T) {
	runner := &fakeRunner{}
	o := newTestOrchestrator(sqlite(), &fakeCounter{}, runner)
	want := resync.Options{ChunkCount: 3, ChunkID: 2, Threads: 8, BatchSize: 50}

	_, err := o.Trigger(context.Background(), want)
	require.NoError(t, err)
	waitDone(t, o)
	assert.Equal(t, want, runner.opts.Load())
}

func TestTrigger_StatusReplacedPerRun(t *testing.T) {
	runner := &fakeRunner{items: []resync.ItemResult{ok("a"), bad("b"), ok("c")}}
	o := newTestOrchestrator(sqlite(), &fakeCounter{n: 3}, runner)

	_, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	waitDone(t, o)

	first := o.Status()
	assert.Equal(t, int64(3), first.Processed)
	assert.Equal(t, int64(2), first.Succeeded)
	assert.Equal(t, int64(1), first.Failed)
	assert.Equal(t, 100, first.PercentComplete)

	runner.items = nil
	_, err = o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	waitDone(t, o)

	second := o.Status()
	assert.Equal(t, "run-2", second.RunID)
	assert.Zero(t, second.Processed)
}

func TestTrigger_RunnerErrorMarksFailed(t *testing.T) {
	runner := &fakeRunner{err: errors.New("fetch active hashes: disk on fire")}
	o := newTestOrchestrator(sqlite(), &fakeCounter{n: 1}, runner)

	_, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	waitDone(t, o)

	st := o.Status()
	assert.True(t, st.FailedRun)
	assert.True(t, st.Complete)
	assert.False(t, st.Running)
	require.NotNil(t, st.ErrorMessage)
	assert.Contains(t, *st.ErrorMessage, "disk on fire")
}

func TestTrigger_PanicReleasesFlag(t *testing.T) {
	runner := &fakeRunner{panicV: "boom"}
	o := newTestOrchestrator(sqlite(), &fakeCounter{n: 1}, runner)

	_, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	waitDone(t, o)

	st := o.Status()
	assert.True(t, st.FailedRun)
	require.NotNil(t, st.ErrorMessage)
	assert.Equal(t, "boom", *st.ErrorMessage)
	assert.False(t, o.Running())

	runner.panicV = nil
	started, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, started)
	waitDone(t, o)
}

func TestTrigger_CountErrorReleasesFlag(t *testing.T) {
	o := newTestOrchestrator(sqlite(), &fakeCounter{err: errors.New("records offline")}, &fakeRunner{})

	started, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.Error(t, err)
	assert.False(t, started)
	assert.False(t, o.Running())
}

func TestTrigger_OutlivesRequestContext(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	o := newTestOrchestrator(sqlite(), &fakeCounter{}, runner)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := o.Trigger(ctx, resync.DefaultOptions())
	require.NoError(t, err)
	cancel()

	assert.True(t, o.Running())
	close(runner.block)
	waitDone(t, o)
	assert.False(t, o.Status().FailedRun)
}

func TestCancel_MarksRunFailed(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	o := newTestOrchestrator(sqlite(), &fakeCounter{n: 10}, runner)

	_, err := o.Trigger(context.Background(), resync.DefaultOptions())
	require.NoError(t, err)
	o.Cancel()
	waitDone(t, o)

	st := o.Status()
	assert.True(t, st.FailedRun)
	require.NotNil(t, st.ErrorMessage)
	assert.Equal(t, context.Canceled.Error(), *st.ErrorMessage)
}

func TestStatus_PercentAndDuration(t *testing.T) {
	now := testutil.NewDeterministicClock(time.Second).Now

	st := newStatus("r", 4, now)
	assert.Equal(t, 0, st.PercentComplete())
	st.record(ok("a"))
	assert.Equal(t, 25, st.PercentComplete())
	for i := 0; i < 5; i++ {
		st.record(ok("x"))
	}
	assert.Equal(t, 100, st.PercentComplete(), "clamped")

	st.markComplete()
	frozen := st.Duration()
	assert.Equal(t, frozen, st.Duration())
	assert.Positive(t, frozen)

	empty := newStatus("e", 0, now)
	assert.Equal(t, 0, empty.PercentComplete())
	empty.markComplete()
	assert.Equal(t, 100, empty.PercentComplete())
}

func TestAssessSync(t *testing.T) {
	tests := []struct {
		claims, records int64
		want            SyncState
	}{
		{-1, 5, SyncUnknown},
		{5, -1, SyncUnknown},
		{0, 0, SyncEmpty},
		{0, 5, SyncOutOfSync},
		{5, 0, SyncOutOfSync},
		{12, 5, SyncInSync},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, assessSync(tt.claims, tt.records), "%d claims, %d records", tt.claims, tt.records)
	}
}

func TestAssess(t *testing.T) {
	o := newTestOrchestrator(&fakeBackend{kind: graph.BackendSQLite, healthy: true, claims: 10}, &fakeCounter{n: 3}, &fakeRunner{})
	st := o.Assess(context.Background())
	assert.Equal(t, GraphStatus{
		Backend: graph.BackendSQLite, Enabled: true, Healthy: true,
		ActiveRecords: 3, ClaimCount: 10, Sync: SyncInSync,
	}, st)

	o = newTestOrchestrator(&fakeBackend{kind: graph.BackendSQLite, claimErr: errors.New("down")}, &fakeCounter{n: 3}, &fakeRunner{})
	st = o.Assess(context.Background())
	assert.Equal(t, int64(-1), st.ClaimCount)
	assert.Equal(t, SyncUnknown, st.Sync)
	assert.False(t, st.Healthy)

	o = newTestOrchestrator(&fakeBackend{kind: graph.BackendNone}, &fakeCounter{n: 3}, &fakeRunner{})
	st = o.Assess(context.Background())
	assert.False(t, st.Enabled)
	assert.Equal(t, SyncDisabled, st.Sync)
}

func TestCheckOnStartup(t *testing.T) {
	tests := []struct {
		name        string
		backend     *fakeBackend
		records     int64
		autoRebuild bool
		want        bool
	}{
		{"disabled", &fakeBackend{kind: graph.BackendNone}, 5, true, false},
		{"empty graph auto", sqlite(), 5, true, true},
		{"empty graph manual", sqlite(), 5, false, false},
		{"in sync", &fakeBackend{kind: graph.BackendSQLite, claims: 9, healthy: true}, 5, true, false},
		{"both empty", sqlite(), 0, true, false},
		{"unknown", &fakeBackend{kind: graph.BackendSQLite, claimErr: errors.New("x")}, 5, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			o := newTestOrchestrator(tt.backend, &fakeCounter{n: tt.records}, runner)

			triggered, err := o.CheckOnStartup(context.Background(), tt.autoRebuild)
			require.NoError(t, err)
			assert.Equal(t, tt.want, triggered)
			waitDone(t, o)

			if tt.want {
				assert.Equal(t, resync.DefaultOptions(), runner.opts.Load())
			} else {
				assert.Zero(t, runner.calls.Load())
			}
		})
	}
}
