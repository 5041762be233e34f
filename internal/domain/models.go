package domain

import "time"

// Quiz is a single pub-quiz event. It owns its rounds (deleting the quiz
// deletes them) and holds non-owning references to the teams playing it.
type Quiz struct {
	ID          string
	Name        string
	Venue       string
	Date        time.Time
	IsActive    bool
	IsCompleted bool
	MaxTeams    *int // nil means unlimited
	Rounds      []*Round
	TeamIDs     []string
}

// Round belongs to exactly one quiz. OrderIndex defines presentation and
// completion order; MaxPoints is advisory and unbounded when nil.
type Round struct {
	ID          string
	QuizID      string
	Name        string
	MaxPoints   *int
	OrderIndex  int
	IsCompleted bool
}

// Team is a recurring pub-quiz team. Scores and Confirmations are flat
// snapshot collections owned exclusively by the team; they are the durable
// source of truth for scoring history. TotalScore is a recomputable cache of
// the sum over Scores, and IsConfirmed is the team's global flag, independent
// of any per-quiz confirmation record.
type Team struct {
	ID            string
	Name          string
	Color         string // hex, e.g. "#FF8800"
	Portrait      []byte
	ContactName   string
	ContactEmail  string
	IsConfirmed   bool
	TotalScore    int
	LastModified  time.Time
	QuizIDs       []string
	Scores        []RoundScore
	Confirmations []QuizConfirmation
}

// RoundScore is a value record of one team's points in one round. It is
// matched by RoundID, not by graph edge; RoundName is a denormalized copy so
// the record stays readable after the round is gone.
type RoundScore struct {
	RoundID   string `json:"roundId"`
	RoundName string `json:"roundName"`
	Points    int    `json:"points"`
}

// QuizConfirmation records whether a team confirmed attendance for one quiz.
type QuizConfirmation struct {
	QuizID      string `json:"quizId"`
	QuizName    string `json:"quizName"`
	IsConfirmed bool   `json:"isConfirmed"`
}

// TeamSnapshot is the replication-friendly view of a team: a whole-value
// document that is always written and read as one unit, never patched field
// by field inside its collections.
type TeamSnapshot struct {
	TeamID        string             `json:"teamId"`
	Name          string             `json:"name"`
	Color         string             `json:"color"`
	IsConfirmed   bool               `json:"isConfirmed"`
	TotalScore    int                `json:"totalScore"`
	LastModified  time.Time          `json:"lastModified"`
	Scores        []RoundScore       `json:"scores"`
	Confirmations []QuizConfirmation `json:"confirmations"`
}

// StandingEntry is one row of a quiz scoreboard. Ranks are dense: tied
// totals share a rank and the next distinct total advances it by one.
type StandingEntry struct {
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Total    int    `json:"total"`
	Rank     int    `json:"rank"`
}

// Standings captures the ordered scoreboard for a quiz.
type Standings struct {
	QuizID    string          `json:"quizId"`
	Entries   []StandingEntry `json:"entries"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SyncState enumerates the replication states exposed to host consoles.
type SyncState string

const (
	SyncIdle        SyncState = "idle"
	SyncRunning     SyncState = "syncing"
	SyncSuccess     SyncState = "success"
	SyncError       SyncState = "error"
	SyncUnavailable SyncState = "unavailable"
)

// SyncStatus is the observable state of the replication collaborator.
type SyncStatus struct {
	State      SyncState `json:"state"`
	Detail     string    `json:"detail,omitempty"`
	LastSynced time.Time `json:"lastSynced,omitempty"`
	Pushed     int       `json:"pushed"`
	Pulled     int       `json:"pulled"`
}

// LedgerState is the durable form of the whole graph, used by the archive.
type LedgerState struct {
	Quizzes []*Quiz `json:"quizzes"`
	Teams   []*Team `json:"teams"`
}
