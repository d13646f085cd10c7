package rebuild

import (
	"context"

	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/resync"
)

// SyncState compares the graph against the record store.
type SyncState string

const (
	SyncDisabled  SyncState = "disabled"
	SyncUnknown   SyncState = "unknown"
	SyncEmpty     SyncState = "empty"
	SyncOutOfSync SyncState = "out-of-sync"
	SyncInSync    SyncState = "in-sync"
)

// GraphStatus is a point-in-time view of the graph backend.
//
// ClaimCount and ActiveRecords are -1 when they could not be read.
type GraphStatus struct {
	Backend       graph.BackendType `json:"backend"`
	Enabled       bool              `json:"enabled"`
	Healthy       bool              `json:"healthy"`
	ActiveRecords int64             `json:"activeRecords"`
	ClaimCount    int64             `json:"claimCount"`
	Sync          SyncState         `json:"sync"`
}

// Assess inspects the backend and the record store.
func (o *Orchestrator) Assess(ctx context.Context) GraphStatus {
	st := GraphStatus{
		Backend:       o.backend.BackendType(),
		ActiveRecords: -1,
		ClaimCount:    -1,
	}
	if st.Backend == graph.BackendNone {
		st.Sync = SyncDisabled
		st.Healthy = true
		st.ClaimCount = 0
		if n, err := o.records.ActiveCount(ctx); err == nil {
			st.ActiveRecords = n
		}
		return st
	}

	st.Enabled = true
	st.Healthy = o.backend.Healthy(ctx)
	if n, err := o.records.ActiveCount(ctx); err == nil {
		st.ActiveRecords = n
	} else {
		o.logger.Warn("unable to count active records", "error", err)
	}
	if n, err := o.backend.ClaimCount(ctx); err == nil {
		st.ClaimCount = n
	} else {
		o.logger.Warn("unable to count graph claims", "error", err)
	}
	st.Sync = assessSync(st.ClaimCount, st.ActiveRecords)
	return st
}

func assessSync(claims, records int64) SyncState {
	switch {
	case claims < 0 || records < 0:
		return SyncUnknown
	case claims == 0 && records == 0:
		return SyncEmpty
	case claims == 0 || records == 0:
		return SyncOutOfSync
	default:
		return SyncInSync
	}
}

// CheckOnStartup logs how the graph relates to the record store. When the
// graph is empty but records exist and autoRebuild is set, a full rebuild
// with default options is triggered.
func (o *Orchestrator) CheckOnStartup(ctx context.Context, autoRebuild bool) (triggered bool, err error) {
	if o.backend.BackendType() == graph.BackendNone {
		o.logger.Info("graph store disabled, skipping startup check")
		return false, nil
	}

	st := o.Assess(ctx)
	switch st.Sync {
	case SyncUnknown:
		o.logger.Warn("unable to determine graph state on startup",
			"claims", st.ClaimCount, "active_records", st.ActiveRecords)
		return false, nil
	case SyncOutOfSync:
		if st.ClaimCount != 0 {
			o.logger.Warn("graph has claims but the record store has no active records",
				"claims", st.ClaimCount)
			return false, nil
		}
		o.logger.Warn("graph is empty but active records exist",
			"active_records", st.ActiveRecords, "auto_rebuild", autoRebuild)
		if !autoRebuild {
			o.logger.Info("trigger a rebuild with POST /admin/graph/rebuild or `claimgraph rebuild`")
			return false, nil
		}
		return o.Trigger(ctx, resync.DefaultOptions())
	default:
		o.logger.Info("graph store startup check",
			"backend", st.Backend,
			"claims", st.ClaimCount,
			"active_records", st.ActiveRecords,
			"sync", st.Sync,
		)
		return false, nil
	}
}
