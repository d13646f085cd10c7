// Package resync rebuilds the claims graph from the authoritative record
// store.
//
// A single producer pages through the active record hashes of one chunk and
// feeds a bounded queue; a fixed pool of workers loads each record, extracts
// its claims and writes them to the graph. Per-item failures are reported and
// counted but never stop the run.
package resync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/claimgraph/internal/claim"
	"github.com/roach88/claimgraph/internal/records"
)

// ErrInvalidOptions is returned before any work when Options are out of range.
var ErrInvalidOptions = errors.New("invalid resync options")

// Options selects the chunk to rebuild and the concurrency to use.
type Options struct {
	ChunkCount int `json:"chunkCount"`
	ChunkID    int `json:"chunkId"`
	Threads    int `json:"threads"`
	BatchSize  int `json:"batchSize"`
}

// DefaultOptions rebuilds the whole keyspace with four workers.
func DefaultOptions() Options {
	return Options{ChunkCount: 1, ChunkID: 0, Threads: 4, BatchSize: 100}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	switch {
	case o.ChunkCount < 1:
		return fmt.Errorf("%w: chunk count must be at least 1, got %d", ErrInvalidOptions, o.ChunkCount)
	case o.ChunkID < 0 || o.ChunkID >= o.ChunkCount:
		return fmt.Errorf("%w: chunk id must be in [0, %d), got %d", ErrInvalidOptions, o.ChunkCount, o.ChunkID)
	case o.Threads < 1:
		return fmt.Errorf("%w: threads must be at least 1, got %d", ErrInvalidOptions, o.Threads)
	case o.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidOptions, o.BatchSize)
	}
	return nil
}

// RecordSource is the read side of the record store used by a rebuild.
type RecordSource interface {
	ActiveHashes(ctx context.Context, after string, limit, chunkCount, chunkID int) ([]string, error)
	GetByHash(ctx context.Context, hash string) (records.Record, error)
}

// ClaimSource extracts claims from a record's document.
type ClaimSource interface {
	ExtractClaims(ctx context.Context, document []byte) ([]claim.Claim, error)
}

// ClaimWriter is the write side of the graph.
type ClaimWriter interface {
	AddClaims(ctx context.Context, claims []claim.Claim, credentialSubject string) error
}

// ItemResult is the outcome of processing one record.
type ItemResult struct {
	Hash     string
	RecordID string
	Claims   int
	Err      error
}

// OK reports whether the record was written to the graph.
func (r ItemResult) OK() bool { return r.Err == nil }

// Summary totals a run. Aborted is set when the run was cancelled before
// every record was enqueued.
type Summary struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Aborted   bool  `json:"aborted"`
}

// Pipeline streams records into the graph.
type Pipeline struct {
	records RecordSource
	claims  ClaimSource
	graph   ClaimWriter
	logger  *slog.Logger

	// pending counts items enqueued or in flight.
	pending atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline.
func New(rs RecordSource, cs ClaimSource, w ClaimWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		records: rs,
		claims:  cs,
		graph:   w,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pending returns the number of items enqueued or being processed.
func (p *Pipeline) Pending() int64 {
	return p.pending.Load()
}

// Run rebuilds one chunk of the graph.
//
// progress, when non-nil, is called once per processed record from worker
// goroutines and must be safe for concurrent use. Run blocks until every
// dequeued record has been processed. A cancelled ctx stops the producer,
// drops records still waiting in the queue and returns ctx.Err() with
// Summary.Aborted set; records already being processed finish first.
func (p *Pipeline) Run(ctx context.Context, opts Options, progress func(ItemResult)) (Summary, error) {
	if err := opts.Validate(); err != nil {
		return Summary{}, err
	}

	p.logger.Info("rebuilding graph",
		"chunk_count", opts.ChunkCount,
		"chunk_id", opts.ChunkID,
		"threads", opts.Threads,
		"batch_size", opts.BatchSize,
	)

	var (
		queue                        = make(chan string, opts.BatchSize)
		wg                           sync.WaitGroup
		processed, succeeded, failed atomic.Int64
	)

	// In-flight items run to completion even after cancellation.
	work := context.WithoutCancel(ctx)
	for i := 0; i < opts.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for hash := range queue {
				res := p.process(work, hash)
				p.pending.Add(-1)
				processed.Add(1)
				if res.OK() {
					succeeded.Add(1)
				} else {
					failed.Add(1)
					p.logger.Error("failed to rebuild record", "hash", res.Hash, "record_id", res.RecordID, "error", res.Err)
				}
				if progress != nil {
					progress(res)
				}
			}
		}()
	}

	runErr := p.produce(ctx, opts, queue)
	aborted := runErr != nil && ctx.Err() != nil
	if aborted {
		dropped := p.drain(queue)
		p.logger.Warn("interrupted while rebuilding the graph, aborting", "dropped", dropped)
	}
	close(queue)
	wg.Wait()

	summary := Summary{
		Processed: processed.Load(),
		Succeeded: succeeded.Load(),
		Failed:    failed.Load(),
		Aborted:   aborted,
	}
	if runErr != nil {
		return summary, runErr
	}

	p.logger.Info("graph rebuild finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

// produce pages through the chunk and blocks on a full queue.
func (p *Pipeline) produce(ctx context.Context, opts Options, queue chan<- string) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hashes, err := p.records.ActiveHashes(ctx, cursor, opts.BatchSize, opts.ChunkCount, opts.ChunkID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("fetch active hashes: %w", err)
		}
		if len(hashes) == 0 {
			return nil
		}
		p.logger.Debug("rebuilding graph: fetched hashes", "count", len(hashes), "after", cursor)
		cursor = hashes[len(hashes)-1]

		for _, h := range hashes {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.pending.Add(1)
			select {
			case queue <- h:
			case <-ctx.Done():
				p.pending.Add(-1)
				return ctx.Err()
			}
		}
	}
}

// drain removes items nobody has dequeued yet.
func (p *Pipeline) drain(queue <-chan string) int {
	dropped := 0
	for {
		select {
		case <-queue:
			p.pending.Add(-1)
			dropped++
		default:
			return dropped
		}
	}
}

func (p *Pipeline) process(ctx context.Context, hash string) (res ItemResult) {
	res.Hash = hash
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic while rebuilding record: %v", r)
		}
	}()

	rec, err := p.records.GetByHash(ctx, hash)
	if err != nil {
		res.Err = fmt.Errorf("load record: %w", err)
		return res
	}
	res.RecordID = rec.ID

	claims, err := p.claims.ExtractClaims(ctx, rec.Document)
	if err != nil {
		res.Err = fmt.Errorf("extract claims: %w", err)
		return res
	}
	res.Claims = len(claims)

	if err := p.graph.AddClaims(ctx, claims, rec.ID); err != nil {
		res.Err = fmt.Errorf("add claims: %w", err)
		return res
	}

	p.logger.Debug("rebuilt record", "hash", hash, "record_id", rec.ID, "claims", len(claims))
	return res
}
