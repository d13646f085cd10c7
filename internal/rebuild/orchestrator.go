// Package rebuild runs at most one graph rebuild at a time and reports its
// progress.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/resync"
)

// Runner executes one rebuild pass. *resync.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, opts resync.Options, progress func(resync.ItemResult)) (resync.Summary, error)
}

// RecordCounter reports how many records a full rebuild will visit.
type RecordCounter interface {
	ActiveCount(ctx context.Context) (int64, error)
}

// Backend is the slice of graph.Store the orchestrator inspects.
type Backend interface {
	BackendType() graph.BackendType
	Healthy(ctx context.Context) bool
	ClaimCount(ctx context.Context) (int64, error)
}

// Observer receives rebuild lifecycle events.
type Observer interface {
	RebuildStarted()
	RebuildItem(ok bool)
	RebuildFinished(failed bool)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type nopObserver struct{}

func (nopObserver) RebuildStarted()      {}
func (nopObserver) RebuildItem(bool)     {}
func (nopObserver) RebuildFinished(bool) {}

// Orchestrator owns the single-flight rebuild flag and the current Status.
type Orchestrator struct {
	backend  Backend
	records  RecordCounter
	runner   Runner
	logger   *slog.Logger
	observer Observer
	ids      IDGenerator
	now      func() time.Time

	running atomic.Bool
	status  atomic.Pointer[Status]

	mu     sync.Mutex
	done   chan struct{}
	cancel context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver reports lifecycle events, typically to metrics.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithClock replaces the wall clock used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(backend Backend, rc RecordCounter, runner Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		records:  rc,
		runner:   runner,
		logger:   slog.Default(),
		observer: nopObserver{},
		ids:      UUIDv7Generator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.status.Store(idleStatus(o.now))
	return o
}

// Trigger starts a rebuild in the background and returns immediately.
//
// It returns false without error when a rebuild is already running, and a
// BACKEND_DISABLED error when no graph backend is configured.
func (o *Orchestrator) Trigger(ctx context.Context, opts resync.Options) (bool, error) {
	if o.backend.BackendType() == graph.BackendNone {
		return false, graph.NewDisabledError("graph store is disabled, nothing to rebuild")
	}
	if err := opts.Validate(); err != nil {
		return false, err
	}
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("graph rebuild already running, ignoring trigger")
		return false, nil
	}

	total, err := o.records.ActiveCount(ctx)
	if err != nil {
		o.running.Store(false)
		return false, fmt.Errorf("count active records: %w", err)
	}

	st := newStatus(o.ids.Generate(), total, o.now)
	o.status.Store(st)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	o.mu.Lock()
	o.done = done
	o.cancel = cancel
	o.mu.Unlock()

	o.logger.Info("graph rebuild started",
		"run_id", st.runID,
		"total", total,
		"chunk_count", opts.ChunkCount,
		"chunk_id", opts.ChunkID,
		"threads", opts.Threads,
		"batch_size", opts.BatchSize,
	)
	o.observer.RebuildStarted()

	go o.run(runCtx, cancel, done, st, opts)
	return true, nil
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, st *Status, opts resync.Options) {
	defer close(done)
	defer cancel()
	defer o.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("graph rebuild panicked", "run_id", st.runID, "panic", r)
			st.markFailed(fmt.Sprint(r))
			o.observer.RebuildFinished(true)
		}
	}()

	summary, err := o.runner.Run(ctx, opts, func(res resync.ItemResult) {
		st.record(res)
		o.observer.RebuildItem(res.OK())
	})
	if err != nil {
		o.logger.Error("graph rebuild failed", "run_id", st.runID, "error", err)
		st.markFailed(err.Error())
		o.observer.RebuildFinished(true)
		return
	}

	st.markComplete()
	o.observer.RebuildFinished(false)
	o.logger.Info("graph rebuild complete",
		"run_id", st.runID,
		"processed", summary.Processed,
		"failed", summary.Failed,
		"duration_ms", st.Duration().Milliseconds(),
	)
}

// Running reports whether a rebuild is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Status returns a snapshot of the current or most recent run.
func (o *Orchestrator) Status() Snapshot {
	return o.status.Load().Snapshot(o.running.Load())
}

// Cancel asks the running rebuild to stop. Records already being processed
// finish; queued records are dropped and the run is marked failed.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current run finishes or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
