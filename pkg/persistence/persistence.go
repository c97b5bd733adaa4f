// Package persistence provides the data storage abstraction for flows,
// versions, sessions and durable timers.
package persistence

import (
	"context"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
)

// FlowRepository persists flow definitions and their graphs.
type FlowRepository interface {
	// Flows returns the non-deleted flows of an organization, without
	// nodes and edges loaded.
	Flows(ctx context.Context, organizationID string) ([]*models.Flow, error)

	// FlowByID returns a flow with its nodes and edges. Cross-tenant
	// lookups (organizationID mismatch) return ErrFlowNotFound.
	FlowByID(ctx context.Context, organizationID, id string) (*models.Flow, error)

	// FlowGraph returns a flow with its graph loaded without tenant
	// scoping. Used by the engine, which resolves flows through sessions.
	FlowGraph(ctx context.Context, id string) (*models.Flow, error)

	// SaveFlow inserts or updates a flow definition. On first insert the
	// flow's nodes and edges, if any, are stored too; updates never touch
	// the graph, which is owned by ReplaceCanvas.
	SaveFlow(ctx context.Context, flow *models.Flow) error

	// ReplaceCanvas atomically snapshots the current graph into a
	// FlowVersion keyed by the flow's pre-save version, replaces all nodes
	// and edges, increments the version and clears the draft flag. A
	// duplicate snapshot for the same version is ignored, not an error.
	// Returns the new version.
	ReplaceCanvas(ctx context.Context, flowID string, nodes []*models.Node, edges []*models.Edge, editorID string) (int, error)

	// DeleteFlow soft deletes a flow.
	DeleteFlow(ctx context.Context, organizationID, id string) error
}

// VersionRepository reads immutable canvas snapshots.
type VersionRepository interface {
	Versions(ctx context.Context, flowID string) ([]*models.FlowVersion, error)
	VersionByNumber(ctx context.Context, flowID string, version int) (*models.FlowVersion, error)
}

// SessionRepository persists one mutable session per conversation with
// optimistic concurrency.
type SessionRepository interface {
	// ActiveSessionByConversation returns the single active session of a
	// conversation, or ErrSessionNotFound.
	ActiveSessionByConversation(ctx context.Context, conversationID string) (*models.Session, error)

	// SessionByID returns a session regardless of state.
	SessionByID(ctx context.Context, id string) (*models.Session, error)

	// CreateSession inserts a new session. ErrActiveSessionExists is
	// returned when the conversation already has an active one.
	CreateSession(ctx context.Context, session *models.Session) error

	// UpdateSession persists a mutation, comparing-and-swapping on
	// StateVersion. ErrSessionConflict is returned when the stored version
	// moved; the caller re-reads and retries once.
	UpdateSession(ctx context.Context, session *models.Session) error

	// StaleAwaitingSessions lists active sessions that have been awaiting
	// input since before the cutoff. Used by the maintenance sweeper.
	StaleAwaitingSessions(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
}

// Timer is a durable scheduled resume for a delayed session.
type Timer struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	NodeID         string    `json:"node_id"`
	FireAt         time.Time `json:"fire_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TimerRepository persists durable timers. Delivery is at-least-once: a
// claimed timer that is not acknowledged may be re-delivered.
type TimerRepository interface {
	SaveTimer(ctx context.Context, timer *Timer) error

	// DueTimers claims and returns timers due at or before now, removing
	// them from the pending set.
	DueTimers(ctx context.Context, now time.Time) ([]*Timer, error)

	// DeleteTimersForSession drops pending timers of a session, used when
	// a session is cancelled.
	DeleteTimersForSession(ctx context.Context, sessionID string) error
}

// Persistence aggregates the repositories behind one backend.
type Persistence interface {
	FlowRepository() FlowRepository
	VersionRepository() VersionRepository
	SessionRepository() SessionRepository
	TimerRepository() TimerRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
