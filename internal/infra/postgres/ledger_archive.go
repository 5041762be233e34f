package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pubquiz-ledger/internal/domain"
)

// LedgerArchive persists the ledger graph as JSONB documents, one row per
// quiz and per team. Rows are always written whole, mirroring the snapshot
// discipline of the replication layer.
type LedgerArchive struct {
	pool *pgxpool.Pool
}

func NewLedgerArchive(pool *pgxpool.Pool) *LedgerArchive {
	return &LedgerArchive{pool: pool}
}

func (a *LedgerArchive) LoadState(ctx context.Context) (domain.LedgerState, bool, error) {
	state := domain.LedgerState{}

	rows, err := a.pool.Query(ctx, `SELECT data FROM quizzes`)
	if err != nil {
		return state, false, fmt.Errorf("load quizzes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return state, false, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return state, false, fmt.Errorf("unmarshal quiz: %w", err)
		}
		state.Quizzes = append(state.Quizzes, &quiz)
	}
	if err := rows.Err(); err != nil {
		return state, false, fmt.Errorf("load quizzes: %w", err)
	}

	teamRows, err := a.pool.Query(ctx, `SELECT data FROM teams`)
	if err != nil {
		return state, false, fmt.Errorf("load teams: %w", err)
	}
	defer teamRows.Close()
	for teamRows.Next() {
		var raw []byte
		if err := teamRows.Scan(&raw); err != nil {
			return state, false, fmt.Errorf("scan team: %w", err)
		}
		var team domain.Team
		if err := json.Unmarshal(raw, &team); err != nil {
			return state, false, fmt.Errorf("unmarshal team: %w", err)
		}
		state.Teams = append(state.Teams, &team)
	}
	if err := teamRows.Err(); err != nil {
		return state, false, fmt.Errorf("load teams: %w", err)
	}

	return state, len(state.Quizzes) > 0 || len(state.Teams) > 0, nil
}

func (a *LedgerArchive) SaveState(ctx context.Context, state domain.LedgerState) error {
	return a.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quizzes`); err != nil {
			return fmt.Errorf("clear quizzes: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM teams`); err != nil {
			return fmt.Errorf("clear teams: %w", err)
		}
		for _, quiz := range state.Quizzes {
			data, err := json.Marshal(quiz)
			if err != nil {
				return fmt.Errorf("marshal quiz: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO quizzes (id, data) VALUES ($1, $2)`, quiz.ID, data); err != nil {
				return fmt.Errorf("insert quiz: %w", err)
			}
		}
		for _, team := range state.Teams {
			data, err := json.Marshal(team)
			if err != nil {
				return fmt.Errorf("marshal team: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO teams (id, data) VALUES ($1, $2)`, team.ID, data); err != nil {
				return fmt.Errorf("insert team: %w", err)
			}
		}
		return nil
	})
}
