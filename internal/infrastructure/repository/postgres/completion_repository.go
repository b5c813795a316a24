package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// CompletionRepository is an append-only ledger of completed bales fed from
// the event stream. Redelivered events are ignored.
type CompletionRepository struct {
	db *sql.DB
}

func NewCompletionRepository(db *sql.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Record stores event and reports whether it was new.
func (r *CompletionRepository) Record(ctx context.Context, event domain.BaleCompletedEvent) (bool, error) {
	completedAt, err := time.Parse(time.RFC3339Nano, event.CompletedAt)
	if err != nil {
		return false, domain.WrapError(domain.ErrValidation, "record completion", fmt.Errorf("completed_at %q: %w", event.CompletedAt, err))
	}

	result, err := r.db.ExecContext(ctx, `
INSERT INTO bale_completions (session_id, bale_id, mill_lot, mill_bale_number, mode, weight, completed_at, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (session_id, mill_lot, mill_bale_number) DO NOTHING
`, event.SessionID, event.BaleID, event.MillLot, event.MillBaleNumber, string(event.Mode), event.Weight, completedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert completion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert completion rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *CompletionRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.BaleCompletedEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT session_id, bale_id, mill_lot, mill_bale_number, mode, weight, completed_at
FROM bale_completions
WHERE session_id = $1
ORDER BY mill_bale_number ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BaleCompletedEvent, 0)
	for rows.Next() {
		event, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return out, nil
}

type completionScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompletion(row completionScanner) (domain.BaleCompletedEvent, error) {
	var event domain.BaleCompletedEvent
	var mode string
	var completedAt time.Time
	err := row.Scan(
		&event.SessionID,
		&event.BaleID,
		&event.MillLot,
		&event.MillBaleNumber,
		&mode,
		&event.Weight,
		&completedAt,
	)
	if err != nil {
		return domain.BaleCompletedEvent{}, fmt.Errorf("scan completion: %w", err)
	}
	event.Mode = domain.SessionMode(mode)
	event.CompletedAt = completedAt.UTC().Format(time.RFC3339Nano)
	return event, nil
}
