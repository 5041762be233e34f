package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pubquiz-ledger/internal/domain"
)

// Ledger is the in-memory score ledger: the Quiz/Round/Team graph, the
// per-team snapshot collections, and the derived standings. All mutation goes
// through its mutex; callers get value copies, never live pointers.
//
// Snapshot collections are always swapped wholesale on write. The external
// replicator detects changes by comparing whole field values, so an in-place
// mutation of a nested element would never propagate.
type Ledger struct {
	mu          sync.RWMutex
	now         func() time.Time
	quizzes     map[string]*domain.Quiz
	teams       map[string]*domain.Team
	rounds      map[string]*domain.Round // global round index across quizzes
	subscribers map[string]map[chan domain.Standings]struct{}
}

func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

// NewLedgerWithClock allows deterministic timestamps in tests.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{
		now:         now,
		quizzes:     make(map[string]*domain.Quiz),
		teams:       make(map[string]*domain.Team),
		rounds:      make(map[string]*domain.Round),
		subscribers: make(map[string]map[chan domain.Standings]struct{}),
	}
}

// --- entity graph ---

// CreateQuiz registers a new quiz. It always succeeds: fresh ID, no rounds,
// no teams, neither active nor completed.
func (l *Ledger) CreateQuiz(name, venue string, date time.Time) domain.Quiz {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz := &domain.Quiz{
		ID:    uuid.NewString(),
		Name:  name,
		Venue: venue,
		Date:  date,
	}
	l.quizzes[quiz.ID] = quiz
	return copyQuiz(quiz)
}

// CreateTeam registers a new team with an empty scoring history.
func (l *Ledger) CreateTeam(name, color string) domain.Team {
	l.mu.Lock()
	defer l.mu.Unlock()

	team := &domain.Team{
		ID:           uuid.NewString(),
		Name:         name,
		Color:        color,
		LastModified: l.now(),
	}
	l.teams[team.ID] = team
	return copyTeam(team)
}

// AddRound appends a round owned by the quiz. Rounds are kept ordered by
// OrderIndex.
func (l *Ledger) AddRound(quizID, name string, maxPoints *int, orderIndex int) (domain.Round, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.Round{}, domain.ErrQuizNotFound
	}
	round := &domain.Round{
		ID:         uuid.NewString(),
		QuizID:     quizID,
		Name:       name,
		MaxPoints:  maxPoints,
		OrderIndex: orderIndex,
	}
	quiz.Rounds = append(quiz.Rounds, round)
	sortRoundsLocked(quiz)
	l.rounds[round.ID] = round
	return *round, nil
}

// RemoveRound detaches and deletes a round from its quiz. Snapshot records
// referencing the round are left alone; they simply stop matching.
func (l *Ledger) RemoveRound(quizID, roundID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	for i, round := range quiz.Rounds {
		if round.ID == roundID {
			quiz.Rounds = append(quiz.Rounds[:i], quiz.Rounds[i+1:]...)
			delete(l.rounds, roundID)
			return nil
		}
	}
	return domain.ErrRoundNotFound
}

// SetMaxTeams caps (or uncaps, with nil) how many teams may attach. Teams
// already attached are never evicted.
func (l *Ledger) SetMaxTeams(quizID string, maxTeams *int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.MaxTeams = maxTeams
	return nil
}

// AttachTeam adds the non-owning Quiz<->Team association in both directions.
// It does not imply confirmation.
func (l *Ledger) AttachTeam(quizID, teamID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	team, ok := l.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	if containsID(quiz.TeamIDs, teamID) {
		return nil
	}
	if quiz.MaxTeams != nil && len(quiz.TeamIDs) >= *quiz.MaxTeams {
		return domain.ErrQuizFull
	}
	quiz.TeamIDs = append(quiz.TeamIDs, teamID)
	team.QuizIDs = append(team.QuizIDs, quizID)
	return nil
}

// DetachTeam removes the association only; the team and its snapshot records
// are untouched.
func (l *Ledger) DetachTeam(quizID, teamID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	team, ok := l.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	quiz.TeamIDs = removeID(quiz.TeamIDs, teamID)
	team.QuizIDs = removeID(team.QuizIDs, quizID)
	return nil
}

// DeleteQuiz cascades to the quiz's rounds and nullifies the association on
// every team that played it. Already-recorded RoundScore and QuizConfirmation
// entries keep their now-orphaned IDs indefinitely.
func (l *Ledger) DeleteQuiz(quizID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	for _, round := range quiz.Rounds {
		delete(l.rounds, round.ID)
	}
	for _, teamID := range quiz.TeamIDs {
		if team, ok := l.teams[teamID]; ok {
			team.QuizIDs = removeID(team.QuizIDs, quizID)
		}
	}
	delete(l.quizzes, quizID)

	if subs, ok := l.subscribers[quizID]; ok {
		for ch := range subs {
			close(ch)
		}
		delete(l.subscribers, quizID)
	}
	return nil
}

// DeleteTeam removes a team and its associations. Quizzes it played keep
// running; its snapshot history disappears with it.
func (l *Ledger) DeleteTeam(teamID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	team, ok := l.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	for _, quizID := range team.QuizIDs {
		if quiz, ok := l.quizzes[quizID]; ok {
			quiz.TeamIDs = removeID(quiz.TeamIDs, teamID)
		}
	}
	delete(l.teams, teamID)
	return nil
}

// QuizByID returns a value copy of the quiz.
func (l *Ledger) QuizByID(quizID string) (domain.Quiz, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, false
	}
	return copyQuiz(quiz), true
}

// TeamIDs lists every known team identifier.
func (l *Ledger) TeamIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.teams))
	for id := range l.teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TeamByID returns a value copy of the team.
func (l *Ledger) TeamByID(teamID string) (domain.Team, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	team, ok := l.teams[teamID]
	if !ok {
		return domain.Team{}, false
	}
	return copyTeam(team), true
}

// --- quiz lifecycle ---

// StartQuiz marks the quiz in progress. Completed quizzes stay completed.
func (l *Ledger) StartQuiz(quizID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.IsCompleted {
		return domain.ErrQuizCompleted
	}
	quiz.IsActive = true
	return nil
}

// CompleteQuiz transitions an active quiz to completed.
func (l *Ledger) CompleteQuiz(quizID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if !quiz.IsActive {
		return domain.ErrQuizNotActive
	}
	quiz.IsActive = false
	quiz.IsCompleted = true
	return nil
}

// CancelQuiz aborts an active quiz: the quiz reverts to its created-like
// state and every round's completion flag is reset. Scores already recorded
// are not retracted.
func (l *Ledger) CancelQuiz(quizID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if !quiz.IsActive {
		return domain.ErrQuizNotActive
	}
	quiz.IsActive = false
	for _, round := range quiz.Rounds {
		round.IsCompleted = false
	}
	return nil
}

// CompleteRound marks one round of a quiz as played.
func (l *Ledger) CompleteRound(quizID, roundID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	for _, round := range quiz.Rounds {
		if round.ID == roundID {
			round.IsCompleted = true
			return nil
		}
	}
	return domain.ErrRoundNotFound
}

// CurrentRound returns the first round by OrderIndex that has not been
// completed yet; ok is false when there are no rounds left to play.
func (l *Ledger) CurrentRound(quizID string) (domain.Round, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.Round{}, false
	}
	for _, round := range quiz.Rounds {
		if !round.IsCompleted {
			return *round, true
		}
	}
	return domain.Round{}, false
}

// Progress reports completed rounds over total rounds, 0 when the quiz has
// no rounds.
func (l *Ledger) Progress(quizID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	quiz, ok := l.quizzes[quizID]
	if !ok || len(quiz.Rounds) == 0 {
		return 0
	}
	completed := 0
	for _, round := range quiz.Rounds {
		if round.IsCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(quiz.Rounds))
}

// --- score snapshot store ---

// RecordScore upserts the team's score for a round, keyed by round ID. The
// round's name is denormalized into the record; the Scores collection is
// rebuilt as a fresh slice; LastModified and the cached TotalScore are
// refreshed. Returns the updated standings of the round's quiz.
func (l *Ledger) RecordScore(teamID, roundID string, points int) (domain.Standings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	team, ok := l.teams[teamID]
	if !ok {
		return domain.Standings{}, domain.ErrTeamNotFound
	}
	round, ok := l.rounds[roundID]
	if !ok {
		return domain.Standings{}, domain.ErrRoundNotFound
	}

	next := make([]domain.RoundScore, len(team.Scores), len(team.Scores)+1)
	copy(next, team.Scores)
	found := false
	for i := range next {
		if next[i].RoundID == roundID {
			next[i].Points = points
			found = true
			break
		}
	}
	if !found {
		next = append(next, domain.RoundScore{
			RoundID:   roundID,
			RoundName: round.Name,
			Points:    points,
		})
	}
	team.Scores = next
	team.TotalScore = sumScores(next)
	team.LastModified = l.now()

	standings := l.standingsLocked(round.QuizID)
	l.broadcastLocked(round.QuizID, standings)
	return standings, nil
}

// RecordConfirmation upserts the team's per-quiz confirmation, keyed by quiz
// ID. The team's global IsConfirmed flag is a separate attribute and is not
// touched.
func (l *Ledger) RecordConfirmation(teamID, quizID string, confirmed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	team, ok := l.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}

	next := make([]domain.QuizConfirmation, len(team.Confirmations), len(team.Confirmations)+1)
	copy(next, team.Confirmations)
	found := false
	for i := range next {
		if next[i].QuizID == quizID {
			next[i].IsConfirmed = confirmed
			found = true
			break
		}
	}
	if !found {
		next = append(next, domain.QuizConfirmation{
			QuizID:      quizID,
			QuizName:    quiz.Name,
			IsConfirmed: confirmed,
		})
	}
	team.Confirmations = next
	team.LastModified = l.now()
	return nil
}

// Score returns the points a team recorded for a round; ok is false when the
// round was never scored for this team. An entered zero is a score, absence
// is not.
func (l *Ledger) Score(teamID, roundID string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	team, ok := l.teams[teamID]
	if !ok {
		return 0, false
	}
	for _, rs := range team.Scores {
		if rs.RoundID == roundID {
			return rs.Points, true
		}
	}
	return 0, false
}

// HasScore reports whether a score record exists for (team, round).
func (l *Ledger) HasScore(teamID, roundID string) bool {
	_, ok := l.Score(teamID, roundID)
	return ok
}

// IsConfirmedFor reports the team's per-quiz confirmation, false when no
// record exists.
func (l *Ledger) IsConfirmedFor(teamID, quizID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	team, ok := l.teams[teamID]
	if !ok {
		return false
	}
	for _, qc := range team.Confirmations {
		if qc.QuizID == quizID {
			return qc.IsConfirmed
		}
	}
	return false
}

// --- aggregation ---

// GlobalTotal sums every score record of the team, orphaned rounds included.
func (l *Ledger) GlobalTotal(teamID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	team, ok := l.teams[teamID]
	if !ok {
		return 0
	}
	return sumScores(team.Scores)
}

// QuizTotal sums the team's scores over the rounds currently belonging to
// the quiz. It is computed on demand: quiz membership can change
// independently of scoring history.
func (l *Ledger) QuizTotal(teamID, quizID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.quizTotalLocked(teamID, quizID)
}

func (l *Ledger) quizTotalLocked(teamID, quizID string) int {
	team, ok := l.teams[teamID]
	if !ok {
		return 0
	}
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return 0
	}
	roundIDs := make(map[string]struct{}, len(quiz.Rounds))
	for _, round := range quiz.Rounds {
		roundIDs[round.ID] = struct{}{}
	}
	total := 0
	for _, rs := range team.Scores {
		if _, ok := roundIDs[rs.RoundID]; ok {
			total += rs.Points
		}
	}
	return total
}

// --- ranking ---

// Standings returns the quiz scoreboard with dense ranks.
func (l *Ledger) Standings(quizID string) (domain.Standings, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.quizzes[quizID]; !ok {
		return domain.Standings{}, domain.ErrQuizNotFound
	}
	return l.standingsLocked(quizID), nil
}

// Rank returns the team's dense rank within a quiz. Teams not attached to
// the quiz (or unknown quizzes) rank 1.
func (l *Ledger) Rank(teamID, quizID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	standings := l.standingsLocked(quizID)
	for _, entry := range standings.Entries {
		if entry.TeamID == teamID {
			return entry.Rank
		}
	}
	return 1
}

func (l *Ledger) standingsLocked(quizID string) domain.Standings {
	standings := domain.Standings{QuizID: quizID, UpdatedAt: l.now()}
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return standings
	}
	entries := make([]domain.StandingEntry, 0, len(quiz.TeamIDs))
	for _, teamID := range quiz.TeamIDs {
		team, ok := l.teams[teamID]
		if !ok {
			continue
		}
		entries = append(entries, domain.StandingEntry{
			TeamID:   team.ID,
			TeamName: team.Name,
			Total:    l.quizTotalLocked(teamID, quizID),
		})
	}
	sortEntries(entries)
	rankEntries(entries)
	standings.Entries = entries
	return standings
}

// --- subscriptions ---

// Subscribe returns a channel receiving standings updates for a quiz,
// starting with the current scoreboard. The cancel function must be called
// to avoid leaks; the channel is also closed when the quiz is deleted.
func (l *Ledger) Subscribe(quizID string) (<-chan domain.Standings, func(), error) {
	ch := make(chan domain.Standings, 8)

	l.mu.Lock()
	if _, ok := l.quizzes[quizID]; !ok {
		l.mu.Unlock()
		return nil, nil, domain.ErrQuizNotFound
	}
	subs, ok := l.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.Standings]struct{})
		l.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	// Sent under the lock: DeleteQuiz may close the channel, and the buffer
	// always has room for the first snapshot.
	ch <- l.standingsLocked(quizID)
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if subs, ok := l.subscribers[quizID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		}
		l.mu.Unlock()
	}
	return ch, cancel, nil
}

func (l *Ledger) broadcastLocked(quizID string, standings domain.Standings) {
	for ch := range l.subscribers[quizID] {
		select {
		case ch <- standings:
		default:
			// Drop the stale update so a slow consumer never blocks scoring.
			select {
			case <-ch:
			default:
			}
			ch <- standings
		}
	}
}

// --- replication views ---

// Snapshot materializes the team's whole-value replication document.
func (l *Ledger) Snapshot(teamID string) (domain.TeamSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	team, ok := l.teams[teamID]
	if !ok {
		return domain.TeamSnapshot{}, false
	}
	return snapshotOf(team), true
}

// ApplyTeamSnapshot overwrites the team's snapshot collections and totals
// with a remote document, creating the team if it arrived via replication
// before being seen locally. Callers decide whether the remote value wins;
// the ledger applies it atomically.
func (l *Ledger) ApplyTeamSnapshot(snap domain.TeamSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	team, ok := l.teams[snap.TeamID]
	if !ok {
		team = &domain.Team{ID: snap.TeamID}
		l.teams[snap.TeamID] = team
	}
	team.Name = snap.Name
	team.Color = snap.Color
	team.IsConfirmed = snap.IsConfirmed
	team.Scores = append([]domain.RoundScore(nil), snap.Scores...)
	team.Confirmations = append([]domain.QuizConfirmation(nil), snap.Confirmations...)
	team.TotalScore = sumScores(team.Scores)
	team.LastModified = snap.LastModified
}

// ExportState copies the whole graph for the durable archive.
func (l *Ledger) ExportState() domain.LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state := domain.LedgerState{
		Quizzes: make([]*domain.Quiz, 0, len(l.quizzes)),
		Teams:   make([]*domain.Team, 0, len(l.teams)),
	}
	for _, quiz := range l.quizzes {
		q := copyQuiz(quiz)
		state.Quizzes = append(state.Quizzes, &q)
	}
	for _, team := range l.teams {
		t := copyTeam(team)
		state.Teams = append(state.Teams, &t)
	}
	return state
}

// RestoreState replaces the in-memory graph with an archived one.
func (l *Ledger) RestoreState(state domain.LedgerState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.quizzes = make(map[string]*domain.Quiz, len(state.Quizzes))
	l.rounds = make(map[string]*domain.Round)
	l.teams = make(map[string]*domain.Team, len(state.Teams))
	for _, quiz := range state.Quizzes {
		q := copyQuiz(quiz)
		sortRoundsLocked(&q)
		l.quizzes[q.ID] = &q
		for _, round := range q.Rounds {
			l.rounds[round.ID] = round
		}
	}
	for _, team := range state.Teams {
		t := copyTeam(team)
		t.TotalScore = sumScores(t.Scores)
		l.teams[t.ID] = &t
	}
}

// --- helpers ---

func sumScores(scores []domain.RoundScore) int {
	total := 0
	for _, rs := range scores {
		total += rs.Points
	}
	return total
}

func sortRoundsLocked(quiz *domain.Quiz) {
	sort.SliceStable(quiz.Rounds, func(i, j int) bool {
		return quiz.Rounds[i].OrderIndex < quiz.Rounds[j].OrderIndex
	})
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func copyQuiz(quiz *domain.Quiz) domain.Quiz {
	q := *quiz
	q.Rounds = make([]*domain.Round, len(quiz.Rounds))
	for i, round := range quiz.Rounds {
		r := *round
		q.Rounds[i] = &r
	}
	q.TeamIDs = append([]string(nil), quiz.TeamIDs...)
	return q
}

func copyTeam(team *domain.Team) domain.Team {
	t := *team
	t.Portrait = append([]byte(nil), team.Portrait...)
	t.QuizIDs = append([]string(nil), team.QuizIDs...)
	t.Scores = append([]domain.RoundScore(nil), team.Scores...)
	t.Confirmations = append([]domain.QuizConfirmation(nil), team.Confirmations...)
	return t
}

func snapshotOf(team *domain.Team) domain.TeamSnapshot {
	return domain.TeamSnapshot{
		TeamID:        team.ID,
		Name:          team.Name,
		Color:         team.Color,
		IsConfirmed:   team.IsConfirmed,
		TotalScore:    team.TotalScore,
		LastModified:  team.LastModified,
		Scores:        append([]domain.RoundScore(nil), team.Scores...),
		Confirmations: append([]domain.QuizConfirmation(nil), team.Confirmations...),
	}
}
