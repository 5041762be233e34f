package memory

import (
	"context"
	"sort"
	"sync"

	"pubquiz-ledger/internal/domain"
)

// SnapshotMirror is an in-process implementation of app.SnapshotMirror,
// used in tests and when no replication backend is configured. Documents are
// stored and returned by value, matching the whole-snapshot discipline of
// the real backends.
type SnapshotMirror struct {
	mu    sync.RWMutex
	snaps map[string]domain.TeamSnapshot
}

func NewSnapshotMirror() *SnapshotMirror {
	return &SnapshotMirror{snaps: make(map[string]domain.TeamSnapshot)}
}

func (m *SnapshotMirror) PushTeam(_ context.Context, snap domain.TeamSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.TeamID] = snap
	return nil
}

func (m *SnapshotMirror) PullTeam(_ context.Context, teamID string) (domain.TeamSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[teamID]
	return snap, ok, nil
}

func (m *SnapshotMirror) TeamIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.snaps))
	for id := range m.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *SnapshotMirror) Ping(_ context.Context) error {
	return nil
}
