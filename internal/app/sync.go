package app

import (
	"context"
	"sync"
	"time"

	"pubquiz-ledger/internal/domain"
)

// SyncManager drives bidirectional synchronization between the ledger and
// the snapshot mirror and exposes its state to host consoles. It is a
// sibling consumer of the mirror; the ledger itself never calls it.
//
// Conflict policy is last-writer-wins on the whole team snapshot: the side
// with the newer LastModified replaces the other side's document entirely.
type SyncManager struct {
	ledger *Ledger
	mirror SnapshotMirror
	now    func() time.Time

	mu     sync.RWMutex
	status domain.SyncStatus
}

func NewSyncManager(ledger *Ledger, mirror SnapshotMirror) *SyncManager {
	return &SyncManager{
		ledger: ledger,
		mirror: mirror,
		now:    time.Now,
		status: domain.SyncStatus{State: domain.SyncIdle},
	}
}

// Status returns the current sync status.
func (m *SyncManager) Status() domain.SyncStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SyncAll performs a full bidirectional pass: pull remote snapshots that are
// newer, then push local snapshots.
func (m *SyncManager) SyncAll(ctx context.Context) error {
	return m.run(ctx, func(ctx context.Context) (int, int, error) {
		pulled, err := m.pull(ctx)
		if err != nil {
			return 0, pulled, err
		}
		pushed, err := m.push(ctx)
		return pushed, pulled, err
	})
}

// Push replicates every local team snapshot to the mirror.
func (m *SyncManager) Push(ctx context.Context) error {
	return m.run(ctx, func(ctx context.Context) (int, int, error) {
		pushed, err := m.push(ctx)
		return pushed, 0, err
	})
}

// Pull adopts remote snapshots that are newer than the local copy.
func (m *SyncManager) Pull(ctx context.Context) error {
	return m.run(ctx, func(ctx context.Context) (int, int, error) {
		pulled, err := m.pull(ctx)
		return 0, pulled, err
	})
}

// SyncDiagnostics is a point-in-time report for troubleshooting.
type SyncDiagnostics struct {
	Status      domain.SyncStatus `json:"status"`
	LocalTeams  int               `json:"localTeams"`
	RemoteTeams int               `json:"remoteTeams"`
	Reachable   bool              `json:"reachable"`
	Detail      string            `json:"detail,omitempty"`
}

// Diagnostics probes the mirror and reports counts on both sides.
func (m *SyncManager) Diagnostics(ctx context.Context) SyncDiagnostics {
	diag := SyncDiagnostics{
		Status:     m.Status(),
		LocalTeams: len(m.ledger.TeamIDs()),
	}
	if err := m.mirror.Ping(ctx); err != nil {
		diag.Detail = err.Error()
		return diag
	}
	diag.Reachable = true
	if ids, err := m.mirror.TeamIDs(ctx); err == nil {
		diag.RemoteTeams = len(ids)
	} else {
		diag.Detail = err.Error()
	}
	return diag
}

func (m *SyncManager) run(ctx context.Context, pass func(context.Context) (pushed, pulled int, err error)) error {
	if err := m.mirror.Ping(ctx); err != nil {
		m.setStatus(domain.SyncStatus{State: domain.SyncUnavailable, Detail: err.Error()})
		return err
	}

	m.setStatus(domain.SyncStatus{State: domain.SyncRunning})
	pushed, pulled, err := pass(ctx)
	if err != nil {
		m.setStatus(domain.SyncStatus{State: domain.SyncError, Detail: err.Error(), Pushed: pushed, Pulled: pulled})
		return err
	}
	m.setStatus(domain.SyncStatus{
		State:      domain.SyncSuccess,
		LastSynced: m.now(),
		Pushed:     pushed,
		Pulled:     pulled,
	})
	return nil
}

func (m *SyncManager) push(ctx context.Context) (int, error) {
	pushed := 0
	for _, teamID := range m.ledger.TeamIDs() {
		snap, ok := m.ledger.Snapshot(teamID)
		if !ok {
			continue
		}
		remote, found, err := m.mirror.PullTeam(ctx, teamID)
		if err != nil {
			return pushed, err
		}
		if found && remote.LastModified.After(snap.LastModified) {
			continue // remote is newer, the pull pass owns this one
		}
		if err := m.mirror.PushTeam(ctx, snap); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

func (m *SyncManager) pull(ctx context.Context) (int, error) {
	ids, err := m.mirror.TeamIDs(ctx)
	if err != nil {
		return 0, err
	}
	pulled := 0
	for _, teamID := range ids {
		remote, found, err := m.mirror.PullTeam(ctx, teamID)
		if err != nil {
			return pulled, err
		}
		if !found {
			continue
		}
		if local, ok := m.ledger.Snapshot(teamID); ok && !remote.LastModified.After(local.LastModified) {
			continue
		}
		m.ledger.ApplyTeamSnapshot(remote)
		pulled++
	}
	return pulled, nil
}

func (m *SyncManager) setStatus(status domain.SyncStatus) {
	m.mu.Lock()
	if status.LastSynced.IsZero() {
		status.LastSynced = m.status.LastSynced
	}
	m.status = status
	m.mu.Unlock()
}
