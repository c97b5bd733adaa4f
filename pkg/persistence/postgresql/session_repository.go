package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// SessionRepository handles session-related database operations with
// optimistic concurrency on state_version.
type SessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sql.DB, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

const sessionColumns = `
	id
  , conversation_id
  , flow_id
  , current_node_id
  , variables
  , state
  , is_active
  , failure_reason
  , resume_at
  , state_version
  , started_at
  , started_by
  , updated_at
  , ended_at
`

// ActiveSessionByConversation returns the single active session of a
// conversation.
func (r *SessionRepository) ActiveSessionByConversation(ctx context.Context, conversationID string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE conversation_id = $1 AND is_active
	`

	row := r.db.QueryRowContext(ctx, query, conversationID)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSessionError("ActiveSessionByConversation", conversationID, persistence.ErrSessionNotFound)
		}

		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return session, nil
}

// SessionByID returns a session regardless of state.
func (r *SessionRepository) SessionByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSessionError("SessionByID", "", persistence.ErrSessionNotFound)
		}

		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return session, nil
}

// CreateSession inserts a new session. The partial unique index on active
// conversations surfaces as ErrActiveSessionExists.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	variablesJSON, err := json.Marshal(session.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal session variables: %w", err)
	}

	session.StateVersion = 1
	session.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO sessions (id, conversation_id, flow_id, current_node_id, variables,
			state, is_active, failure_reason, resume_at, state_version,
			started_at, started_by, updated_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.ConversationID,
		session.FlowID,
		session.CurrentNodeID,
		variablesJSON,
		session.State,
		session.IsActive,
		session.FailureReason,
		session.ResumeAt,
		session.StateVersion,
		session.StartedAt,
		session.StartedBy,
		session.UpdatedAt,
		session.EndedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewSessionError("CreateSession", session.ConversationID, persistence.ErrActiveSessionExists)
		}

		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// UpdateSession persists a mutation, comparing-and-swapping on state_version.
func (r *SessionRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	variablesJSON, err := json.Marshal(session.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal session variables: %w", err)
	}

	updatedAt := time.Now().UTC()

	query := `
		UPDATE sessions SET
			current_node_id = $3,
			variables = $4,
			state = $5,
			is_active = $6,
			failure_reason = $7,
			resume_at = $8,
			state_version = state_version + 1,
			updated_at = $9,
			ended_at = $10
		WHERE id = $1 AND state_version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.StateVersion,
		session.CurrentNodeID,
		variablesJSON,
		session.State,
		session.IsActive,
		session.FailureReason,
		session.ResumeAt,
		updatedAt,
		session.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		exists, err := r.sessionExists(ctx, session.ID)
		if err != nil {
			return err
		}

		if !exists {
			return persistence.NewSessionError("UpdateSession", session.ConversationID, persistence.ErrSessionNotFound)
		}

		return persistence.NewSessionError("UpdateSession", session.ConversationID, persistence.ErrSessionConflict)
	}

	session.StateVersion++
	session.UpdatedAt = updatedAt

	return nil
}

// StaleAwaitingSessions lists active sessions awaiting input with no activity
// since before the cutoff.
func (r *SessionRepository) StaleAwaitingSessions(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE is_active AND state = $1 AND updated_at < $2
		ORDER BY updated_at
	`

	rows, err := r.db.QueryContext(ctx, query, models.SessionAwaitingInput, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale sessions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	sessions := make([]*models.Session, 0)

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sessions = append(sessions, session)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) sessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return exists, nil
}

func scanSession(scanner interface {
	Scan(dest ...any) error
}) (*models.Session, error) {
	var (
		session       models.Session
		variablesJSON []byte
	)

	err := scanner.Scan(
		&session.ID,
		&session.ConversationID,
		&session.FlowID,
		&session.CurrentNodeID,
		&variablesJSON,
		&session.State,
		&session.IsActive,
		&session.FailureReason,
		&session.ResumeAt,
		&session.StateVersion,
		&session.StartedAt,
		&session.StartedBy,
		&session.UpdatedAt,
		&session.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	if variablesJSON != nil {
		err := json.Unmarshal(variablesJSON, &session.Variables)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal session variables: %w", err)
		}
	}

	return &session, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}
