package app_test

import (
	"testing"
	"time"

	"pubquiz-ledger/internal/app"
	"pubquiz-ledger/internal/domain"
)

func TestRecordScoreUpsert(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "The Crown", time.Now())
	round, err := ledger.AddRound(quiz.ID, "General Knowledge", nil, 1)
	if err != nil {
		t.Fatalf("add round: %v", err)
	}
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	if err := ledger.AttachTeam(quiz.ID, team.ID); err != nil {
		t.Fatalf("attach team: %v", err)
	}

	if ledger.HasScore(team.ID, round.ID) {
		t.Fatalf("expected no score before recording")
	}

	if _, err := ledger.RecordScore(team.ID, round.ID, 7); err != nil {
		t.Fatalf("record score: %v", err)
	}
	if points, ok := ledger.Score(team.ID, round.ID); !ok || points != 7 {
		t.Fatalf("expected score 7, got %d (ok=%v)", points, ok)
	}
	if !ledger.HasScore(team.ID, round.ID) {
		t.Fatalf("expected HasScore after recording")
	}
	if total := ledger.GlobalTotal(team.ID); total != 7 {
		t.Fatalf("expected global total 7, got %d", total)
	}

	// Re-entry overwrites in place; the record count stays at one.
	if _, err := ledger.RecordScore(team.ID, round.ID, 9); err != nil {
		t.Fatalf("record score again: %v", err)
	}
	updated, _ := ledger.TeamByID(team.ID)
	if len(updated.Scores) != 1 {
		t.Fatalf("expected 1 score record, got %d", len(updated.Scores))
	}
	if points, _ := ledger.Score(team.ID, round.ID); points != 9 {
		t.Fatalf("expected overwritten score 9, got %d", points)
	}
	if updated.TotalScore != 9 {
		t.Fatalf("expected cached total 9, got %d", updated.TotalScore)
	}
}

func TestRecordScoreIdempotent(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	round, _ := ledger.AddRound(quiz.ID, "Music", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	_, _ = ledger.RecordScore(team.ID, round.ID, 5)
	_, _ = ledger.RecordScore(team.ID, round.ID, 5)

	got, _ := ledger.TeamByID(team.ID)
	if len(got.Scores) != 1 {
		t.Fatalf("expected 1 record after repeated write, got %d", len(got.Scores))
	}
	if got.TotalScore != 5 {
		t.Fatalf("expected total 5, got %d", got.TotalScore)
	}
}

func TestZeroScoreIsStillAScore(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	round, _ := ledger.AddRound(quiz.ID, "Sports", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	if _, err := ledger.RecordScore(team.ID, round.ID, 0); err != nil {
		t.Fatalf("record zero: %v", err)
	}
	if !ledger.HasScore(team.ID, round.ID) {
		t.Fatalf("an entered zero must count as a stored score")
	}
	if points, ok := ledger.Score(team.ID, round.ID); !ok || points != 0 {
		t.Fatalf("expected stored zero, got %d (ok=%v)", points, ok)
	}
}

func TestQuizTotalFollowsRoundMembership(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	r1, _ := ledger.AddRound(quiz.ID, "History", nil, 1)
	r2, _ := ledger.AddRound(quiz.ID, "Science", nil, 2)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	_, _ = ledger.RecordScore(team.ID, r1.ID, 10)
	_, _ = ledger.RecordScore(team.ID, r2.ID, 5)

	if total := ledger.QuizTotal(team.ID, quiz.ID); total != 15 {
		t.Fatalf("expected quiz total 15, got %d", total)
	}

	// Removing a round changes the quiz total without touching the record.
	if err := ledger.RemoveRound(quiz.ID, r2.ID); err != nil {
		t.Fatalf("remove round: %v", err)
	}
	if total := ledger.QuizTotal(team.ID, quiz.ID); total != 10 {
		t.Fatalf("expected quiz total 10 after removal, got %d", total)
	}
	if points, ok := ledger.Score(team.ID, r2.ID); !ok || points != 5 {
		t.Fatalf("expected orphaned record to survive, got %d (ok=%v)", points, ok)
	}
	if total := ledger.GlobalTotal(team.ID); total != 15 {
		t.Fatalf("global total still counts orphans, expected 15 got %d", total)
	}
}

func TestQuizTotalZeroWithoutScores(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	_, _ = ledger.AddRound(quiz.ID, "History", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	if total := ledger.QuizTotal(team.ID, quiz.ID); total != 0 {
		t.Fatalf("expected 0 for unscored team, got %d", total)
	}
}

func TestConfirmationIndependence(t *testing.T) {
	ledger := app.NewLedger()
	quizA := ledger.CreateQuiz("Quiz A", "", time.Now())
	quizB := ledger.CreateQuiz("Quiz B", "", time.Now())
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quizA.ID, team.ID)
	_ = ledger.AttachTeam(quizB.ID, team.ID)

	if err := ledger.RecordConfirmation(team.ID, quizA.ID, true); err != nil {
		t.Fatalf("record confirmation: %v", err)
	}

	if !ledger.IsConfirmedFor(team.ID, quizA.ID) {
		t.Fatalf("expected confirmed for quiz A")
	}
	if ledger.IsConfirmedFor(team.ID, quizB.ID) {
		t.Fatalf("quiz B must be unaffected")
	}
	got, _ := ledger.TeamByID(team.ID)
	if got.IsConfirmed {
		t.Fatalf("global flag must be unaffected by per-quiz confirmation")
	}
}

func TestStandingsDenseRanks(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Finals", "", time.Now())
	round, _ := ledger.AddRound(quiz.ID, "Round 1", nil, 1)

	totals := map[string]int{
		"Team A": 50, "Team B": 50, "Team C": 40,
		"Team D": 40, "Team E": 40, "Team F": 10,
	}
	names := []string{"Team A", "Team B", "Team C", "Team D", "Team E", "Team F"}
	teamIDs := make(map[string]string, len(names))
	for _, name := range names {
		team := ledger.CreateTeam(name, "#000000")
		teamIDs[name] = team.ID
		_ = ledger.AttachTeam(quiz.ID, team.ID)
		_, _ = ledger.RecordScore(team.ID, round.ID, totals[name])
	}

	standings, err := ledger.Standings(quiz.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	wantRanks := []int{1, 1, 2, 2, 2, 3}
	if len(standings.Entries) != len(wantRanks) {
		t.Fatalf("expected %d entries, got %d", len(wantRanks), len(standings.Entries))
	}
	for i, entry := range standings.Entries {
		if entry.Rank != wantRanks[i] {
			t.Fatalf("position %d: expected rank %d, got %d (%+v)", i, wantRanks[i], entry.Rank, entry)
		}
	}
	if standings.Entries[0].TeamName != "Team A" {
		t.Fatalf("tie at 50 breaks by name, expected Team A first, got %s", standings.Entries[0].TeamName)
	}

	if rank := ledger.Rank(teamIDs["Team F"], quiz.ID); rank != 3 {
		t.Fatalf("expected Team F rank 3, got %d", rank)
	}
	outsider := ledger.CreateTeam("Outsider", "#FFFFFF")
	if rank := ledger.Rank(outsider.ID, quiz.ID); rank != 1 {
		t.Fatalf("non-participating team defaults to rank 1, got %d", rank)
	}
}

func TestProgressAndCurrentRound(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())

	if progress := ledger.Progress(quiz.ID); progress != 0 {
		t.Fatalf("progress without rounds must be 0, got %f", progress)
	}
	if _, ok := ledger.CurrentRound(quiz.ID); ok {
		t.Fatalf("no current round without rounds")
	}

	rounds := make([]domain.Round, 4)
	for i := range rounds {
		r, err := ledger.AddRound(quiz.ID, "Round", nil, i+1)
		if err != nil {
			t.Fatalf("add round: %v", err)
		}
		rounds[i] = r
	}

	if current, ok := ledger.CurrentRound(quiz.ID); !ok || current.ID != rounds[0].ID {
		t.Fatalf("expected first round current, got %+v (ok=%v)", current, ok)
	}

	_ = ledger.CompleteRound(quiz.ID, rounds[0].ID)
	_ = ledger.CompleteRound(quiz.ID, rounds[1].ID)

	if progress := ledger.Progress(quiz.ID); progress != 0.5 {
		t.Fatalf("expected progress 0.5, got %f", progress)
	}
	if current, ok := ledger.CurrentRound(quiz.ID); !ok || current.ID != rounds[2].ID {
		t.Fatalf("expected third round current, got %+v (ok=%v)", current, ok)
	}
}

func TestCancelQuizResetsRoundsKeepsScores(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	round, _ := ledger.AddRound(quiz.ID, "History", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	if err := ledger.CancelQuiz(quiz.ID); err != domain.ErrQuizNotActive {
		t.Fatalf("cancelling an inactive quiz must fail, got %v", err)
	}

	if err := ledger.StartQuiz(quiz.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = ledger.RecordScore(team.ID, round.ID, 12)
	_ = ledger.CompleteRound(quiz.ID, round.ID)

	if err := ledger.CancelQuiz(quiz.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := ledger.QuizByID(quiz.ID)
	if got.IsActive || got.IsCompleted {
		t.Fatalf("cancelled quiz must revert to created-like state: %+v", got)
	}
	for _, r := range got.Rounds {
		if r.IsCompleted {
			t.Fatalf("round completion must be reset on cancel")
		}
	}
	if total := ledger.GlobalTotal(team.ID); total != 12 {
		t.Fatalf("cancel must not retract scores, expected 12 got %d", total)
	}
}

func TestDeleteQuizCascadesAndOrphans(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	round, _ := ledger.AddRound(quiz.ID, "History", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)
	_, _ = ledger.RecordScore(team.ID, round.ID, 8)
	_ = ledger.RecordConfirmation(team.ID, quiz.ID, true)

	if err := ledger.DeleteQuiz(quiz.ID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}

	if _, ok := ledger.QuizByID(quiz.ID); ok {
		t.Fatalf("quiz must be gone")
	}
	got, ok := ledger.TeamByID(team.ID)
	if !ok {
		t.Fatalf("team must survive quiz deletion")
	}
	if len(got.QuizIDs) != 0 {
		t.Fatalf("quiz association must be nullified, got %v", got.QuizIDs)
	}
	// Snapshot records keep their orphaned IDs and stay harmless.
	if len(got.Scores) != 1 || got.Scores[0].RoundID != round.ID {
		t.Fatalf("orphaned score record must remain, got %+v", got.Scores)
	}
	if len(got.Confirmations) != 1 || got.Confirmations[0].QuizID != quiz.ID {
		t.Fatalf("orphaned confirmation must remain, got %+v", got.Confirmations)
	}
	if total := ledger.GlobalTotal(team.ID); total != 8 {
		t.Fatalf("global total keeps orphaned points, expected 8 got %d", total)
	}
	if _, err := ledger.Standings(quiz.ID); err != domain.ErrQuizNotFound {
		t.Fatalf("standings for deleted quiz must report not found, got %v", err)
	}
}

func TestAttachTeamRespectsMaxTeams(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tiny Quiz", "", time.Now())

	max := 1
	if err := ledger.SetMaxTeams(quiz.ID, &max); err != nil {
		t.Fatalf("set max teams: %v", err)
	}

	t1 := ledger.CreateTeam("First", "#111111")
	t2 := ledger.CreateTeam("Second", "#222222")
	if err := ledger.AttachTeam(quiz.ID, t1.ID); err != nil {
		t.Fatalf("attach first: %v", err)
	}
	if err := ledger.AttachTeam(quiz.ID, t1.ID); err != nil {
		t.Fatalf("re-attach must be a no-op, got %v", err)
	}
	if err := ledger.AttachTeam(quiz.ID, t2.ID); err != domain.ErrQuizFull {
		t.Fatalf("expected ErrQuizFull, got %v", err)
	}
}

func TestSubscribeReceivesStandings(t *testing.T) {
	ledger := app.NewLedger()
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", time.Now())
	round, _ := ledger.AddRound(quiz.ID, "History", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	ch, cancel, err := ledger.Subscribe(quiz.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := ledger.RecordScore(team.ID, round.ID, 3); err != nil {
		t.Fatalf("record: %v", err)
	}

	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].Total != 3 {
		t.Fatalf("expected updated total 3, got %+v", update.Entries)
	}
}

func TestDeterministicTimestamps(t *testing.T) {
	fixed := time.Date(2025, 6, 3, 20, 0, 0, 0, time.UTC)
	ledger := app.NewLedgerWithClock(func() time.Time { return fixed })
	quiz := ledger.CreateQuiz("Tuesday Trivia", "", fixed)
	round, _ := ledger.AddRound(quiz.ID, "History", nil, 1)
	team := ledger.CreateTeam("Quizzards", "#FF8800")
	_ = ledger.AttachTeam(quiz.ID, team.ID)

	_, _ = ledger.RecordScore(team.ID, round.ID, 4)

	got, _ := ledger.TeamByID(team.ID)
	if !got.LastModified.Equal(fixed) {
		t.Fatalf("expected LastModified %v, got %v", fixed, got.LastModified)
	}
}
