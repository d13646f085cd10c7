package rebuild

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/claimgraph/internal/resync"
)

// Status tracks one rebuild run.
//
// A fresh Status is installed on every trigger. Counters are updated from
// worker goroutines through record and read concurrently by Snapshot.
type Status struct {
	runID     string
	total     int64
	startedAt time.Time
	now       func() time.Time

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	complete  atomic.Bool
	failedRun atomic.Bool

	mu         sync.Mutex
	errMessage *string
	finishedAt time.Time
}

func newStatus(runID string, total int64, now func() time.Time) *Status {
	return &Status{
		runID:     runID,
		total:     total,
		startedAt: now(),
		now:       now,
	}
}

// idleStatus is reported before the first trigger.
func idleStatus(now func() time.Time) *Status {
	s := newStatus("", 0, now)
	s.complete.Store(true)
	s.finishedAt = s.startedAt
	return s
}

// record counts one processed item.
func (s *Status) record(res resync.ItemResult) {
	s.processed.Add(1)
	if res.OK() {
		s.succeeded.Add(1)
	} else {
		s.failed.Add(1)
	}
}

func (s *Status) markComplete() {
	s.mu.Lock()
	s.finishedAt = s.now()
	s.mu.Unlock()
	s.complete.Store(true)
}

func (s *Status) markFailed(message string) {
	s.mu.Lock()
	s.errMessage = &message
	s.finishedAt = s.now()
	s.mu.Unlock()
	s.failedRun.Store(true)
	s.complete.Store(true)
}

// PercentComplete is processed*100/total clamped to [0, 100]. An empty run
// is 100% once complete.
func (s *Status) PercentComplete() int {
	if s.total <= 0 {
		if s.complete.Load() {
			return 100
		}
		return 0
	}
	pct := s.processed.Load() * 100 / s.total
	return int(min(max(pct, 0), 100))
}

// Duration is the time since the run started, frozen when it ends.
func (s *Status) Duration() time.Duration {
	s.mu.Lock()
	end := s.finishedAt
	s.mu.Unlock()
	if end.IsZero() {
		end = s.now()
	}
	return end.Sub(s.startedAt)
}

// Snapshot is the externally visible state of a run.
type Snapshot struct {
	RunID           string    `json:"runId,omitempty"`
	Total           int64     `json:"total"`
	Processed       int64     `json:"processed"`
	Succeeded       int64     `json:"succeeded"`
	Failed          int64     `json:"failed"`
	PercentComplete int       `json:"percentComplete"`
	Running         bool      `json:"running"`
	Complete        bool      `json:"complete"`
	FailedRun       bool      `json:"failedRun"`
	ErrorMessage    *string   `json:"errorMessage"`
	DurationMs      int64     `json:"durationMs"`
	StartedAt       time.Time `json:"startedAt"`
}

// Snapshot copies the current counters.
func (s *Status) Snapshot(running bool) Snapshot {
	s.mu.Lock()
	var msg *string
	if s.errMessage != nil {
		m := *s.errMessage
		msg = &m
	}
	s.mu.Unlock()

	return Snapshot{
		RunID:           s.runID,
		Total:           s.total,
		Processed:       s.processed.Load(),
		Succeeded:       s.succeeded.Load(),
		Failed:          s.failed.Load(),
		PercentComplete: s.PercentComplete(),
		Running:         running,
		Complete:        s.complete.Load(),
		FailedRun:       s.failedRun.Load(),
		ErrorMessage:    msg,
		DurationMs:      s.Duration().Milliseconds(),
		StartedAt:       s.startedAt,
	}
}
