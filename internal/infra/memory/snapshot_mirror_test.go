package memory

import (
	"context"
	"testing"
	"time"

	"pubquiz-ledger/internal/domain"
)

func TestSnapshotMirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	mirror := NewSnapshotMirror()

	if _, found, err := mirror.PullTeam(ctx, "t1"); err != nil || found {
		t.Fatalf("expected empty mirror, found=%v err=%v", found, err)
	}

	snap := domain.TeamSnapshot{
		TeamID:       "t1",
		Name:         "Quizzards",
		TotalScore:   12,
		LastModified: time.Now(),
		Scores:       []domain.RoundScore{{RoundID: "r1", RoundName: "History", Points: 12}},
	}
	if err := mirror.PushTeam(ctx, snap); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, found, err := mirror.PullTeam(ctx, "t1")
	if err != nil || !found {
		t.Fatalf("pull: found=%v err=%v", found, err)
	}
	if got.TotalScore != 12 || len(got.Scores) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	ids, err := mirror.TeamIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("expected [t1], got %v (err=%v)", ids, err)
	}
}
