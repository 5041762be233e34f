package app

import (
	"context"
	"log"

	"pubquiz-ledger/internal/domain"
)

// SnapshotMirror is the boundary to the persistence/replication collaborator.
// Implementations must treat a TeamSnapshot as one value: a push replaces the
// remote document wholesale, which is what makes the write visible to a
// replicator that compares whole fields rather than diffing nested elements.
type SnapshotMirror interface {
	PushTeam(ctx context.Context, snap domain.TeamSnapshot) error
	PullTeam(ctx context.Context, teamID string) (domain.TeamSnapshot, bool, error)
	TeamIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// LedgerArchive stores the whole graph durably.
type LedgerArchive interface {
	LoadState(ctx context.Context) (domain.LedgerState, bool, error)
	SaveState(ctx context.Context, state domain.LedgerState) error
}

// LedgerService wires the in-memory ledger to the snapshot mirror. Every
// write that changes a team's snapshot is followed by a best-effort push;
// failure to push is reported as saved=false, never retried here.
type LedgerService struct {
	ledger *Ledger
	mirror SnapshotMirror
}

func NewLedgerService(ledger *Ledger, mirror SnapshotMirror) *LedgerService {
	return &LedgerService{ledger: ledger, mirror: mirror}
}

// Ledger exposes the underlying aggregate for reads and graph maintenance.
func (s *LedgerService) Ledger() *Ledger {
	return s.ledger
}

// RecordScore records a team's points for a round and mirrors the team's new
// snapshot. The returned standings reflect the round's quiz after the write.
func (s *LedgerService) RecordScore(ctx context.Context, teamID, roundID string, points int) (domain.Standings, bool, error) {
	standings, err := s.ledger.RecordScore(teamID, roundID, points)
	if err != nil {
		return domain.Standings{}, false, err
	}
	return standings, s.pushTeam(ctx, teamID), nil
}

// Confirm records a team's per-quiz confirmation and mirrors the snapshot.
func (s *LedgerService) Confirm(ctx context.Context, teamID, quizID string, confirmed bool) (bool, error) {
	if err := s.ledger.RecordConfirmation(teamID, quizID, confirmed); err != nil {
		return false, err
	}
	return s.pushTeam(ctx, teamID), nil
}

// CompleteRound marks a round played and republishes standings to
// subscribers via the ledger broadcast.
func (s *LedgerService) CompleteRound(_ context.Context, quizID, roundID string) error {
	return s.ledger.CompleteRound(quizID, roundID)
}

// Standings returns the current scoreboard of a quiz.
func (s *LedgerService) Standings(_ context.Context, quizID string) (domain.Standings, error) {
	return s.ledger.Standings(quizID)
}

// Subscribe streams standings updates for a quiz. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *LedgerService) Subscribe(_ context.Context, quizID string) (<-chan domain.Standings, func(), error) {
	return s.ledger.Subscribe(quizID)
}

func (s *LedgerService) pushTeam(ctx context.Context, teamID string) bool {
	if s.mirror == nil {
		return true
	}
	snap, ok := s.ledger.Snapshot(teamID)
	if !ok {
		return false
	}
	if err := s.mirror.PushTeam(ctx, snap); err != nil {
		log.Printf("mirror push failed for team %s: %v", teamID, err)
		return false
	}
	return true
}
