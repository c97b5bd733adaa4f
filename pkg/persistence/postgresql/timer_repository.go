package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapdesk/flowengine/pkg/persistence"
)

// TimerRepository handles durable timer database operations.
type TimerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTimerRepository creates a new timer repository.
func NewTimerRepository(db *sql.DB, logger *slog.Logger) *TimerRepository {
	return &TimerRepository{db: db, logger: logger}
}

// SaveTimer inserts a durable timer.
func (r *TimerRepository) SaveTimer(ctx context.Context, timer *persistence.Timer) error {
	if timer.CreatedAt.IsZero() {
		timer.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO session_timers (id, conversation_id, session_id, node_id, fire_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		timer.ID,
		timer.ConversationID,
		timer.SessionID,
		timer.NodeID,
		timer.FireAt,
		timer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save timer: %w", err)
	}

	return nil
}

// DueTimers claims and returns timers due at or before now. The delete with
// row locking makes each timer visible to exactly one poller.
func (r *TimerRepository) DueTimers(ctx context.Context, now time.Time) ([]*persistence.Timer, error) {
	query := `
		DELETE FROM session_timers
		WHERE id IN (
			SELECT id FROM session_timers
			WHERE fire_at <= $1
			ORDER BY fire_at
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, conversation_id, session_id, node_id, fire_at, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due timers: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	timers := make([]*persistence.Timer, 0)

	for rows.Next() {
		var timer persistence.Timer

		err := rows.Scan(
			&timer.ID,
			&timer.ConversationID,
			&timer.SessionID,
			&timer.NodeID,
			&timer.FireAt,
			&timer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}

		timers = append(timers, &timer)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating timers: %w", err)
	}

	return timers, nil
}

// DeleteTimersForSession drops all pending timers of a session.
func (r *TimerRepository) DeleteTimersForSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM session_timers WHERE session_id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete timers for session %s: %w", sessionID, err)
	}

	return nil
}
