package app_test

import (
	"context"
	"testing"
	"time"

	"pubquiz-ledger/internal/app"
	"pubquiz-ledger/internal/domain"
	"pubquiz-ledger/internal/infra/memory"
)

func TestSyncPushAndStatus(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger()
	mirror := memory.NewSnapshotMirror()
	manager := app.NewSyncManager(ledger, mirror)

	if status := manager.Status(); status.State != domain.SyncIdle {
		t.Fatalf("expected idle before first sync, got %s", status.State)
	}

	team := ledger.CreateTeam("Quizzards", "#FF8800")

	if err := manager.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}
	status := manager.Status()
	if status.State != domain.SyncSuccess || status.Pushed != 1 {
		t.Fatalf("expected success with 1 pushed, got %+v", status)
	}
	if _, found, _ := mirror.PullTeam(ctx, team.ID); !found {
		t.Fatalf("expected snapshot in mirror after push")
	}
}

func TestSyncPullAdoptsNewerRemote(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger()
	mirror := memory.NewSnapshotMirror()
	manager := app.NewSyncManager(ledger, mirror)

	team := ledger.CreateTeam("Quizzards", "#FF8800")
	local, _ := ledger.Snapshot(team.ID)

	remote := local
	remote.TotalScore = 42
	remote.Scores = []domain.RoundScore{{RoundID: "r-remote", RoundName: "Remote Round", Points: 42}}
	remote.LastModified = local.LastModified.Add(time.Hour)
	_ = mirror.PushTeam(ctx, remote)

	if err := manager.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if status := manager.Status(); status.Pulled != 1 {
		t.Fatalf("expected 1 pulled, got %+v", status)
	}
	if total := ledger.GlobalTotal(team.ID); total != 42 {
		t.Fatalf("expected adopted remote total 42, got %d", total)
	}
}

func TestSyncPullIgnoresOlderRemote(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger()
	mirror := memory.NewSnapshotMirror()
	manager := app.NewSyncManager(ledger, mirror)

	team := ledger.CreateTeam("Quizzards", "#FF8800")
	local, _ := ledger.Snapshot(team.ID)

	stale := local
	stale.Scores = []domain.RoundScore{{RoundID: "r-old", RoundName: "Old", Points: 99}}
	stale.LastModified = local.LastModified.Add(-time.Hour)
	_ = mirror.PushTeam(ctx, stale)

	if err := manager.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if total := ledger.GlobalTotal(team.ID); total != 0 {
		t.Fatalf("stale remote must not win, got total %d", total)
	}
}

func TestSyncPullCreatesUnknownTeam(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger()
	mirror := memory.NewSnapshotMirror()
	manager := app.NewSyncManager(ledger, mirror)

	_ = mirror.PushTeam(ctx, domain.TeamSnapshot{
		TeamID:       "remote-team",
		Name:         "Arrived Via Sync",
		TotalScore:   7,
		Scores:       []domain.RoundScore{{RoundID: "r1", RoundName: "R1", Points: 7}},
		LastModified: time.Now(),
	})

	if err := manager.SyncAll(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	team, ok := ledger.TeamByID("remote-team")
	if !ok {
		t.Fatalf("expected team created from remote snapshot")
	}
	if team.Name != "Arrived Via Sync" || team.TotalScore != 7 {
		t.Fatalf("unexpected adopted team: %+v", team)
	}
}

func TestSyncUnavailableWhenMirrorDown(t *testing.T) {
	ctx := context.Background()
	manager := app.NewSyncManager(app.NewLedger(), &brokenMirror{})

	if err := manager.SyncAll(ctx); err == nil {
		t.Fatalf("expected error from unreachable mirror")
	}
	status := manager.Status()
	if status.State != domain.SyncUnavailable {
		t.Fatalf("expected unavailable state, got %s", status.State)
	}
	if status.Detail == "" {
		t.Fatalf("expected failure detail")
	}

	diag := manager.Diagnostics(ctx)
	if diag.Reachable {
		t.Fatalf("diagnostics must report unreachable mirror")
	}
}
