package domain

import "errors"

var (
	// ErrQuizNotFound is returned when a quiz ID does not resolve.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRoundNotFound is returned when a round ID does not resolve.
	ErrRoundNotFound = errors.New("round not found")
	// ErrTeamNotFound is returned when a team ID does not resolve.
	ErrTeamNotFound = errors.New("team not found")
	// ErrQuizFull is returned when attaching a team would exceed MaxTeams.
	ErrQuizFull = errors.New("quiz is full")
	// ErrQuizNotActive is returned for lifecycle operations that require an active quiz.
	ErrQuizNotActive = errors.New("quiz is not active")
	// ErrQuizCompleted is returned when starting a quiz that already finished.
	ErrQuizCompleted = errors.New("quiz already completed")
)
