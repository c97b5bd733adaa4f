package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , organization_id
  , name
  , trigger_enabled
  , trigger_keywords
  , trigger_match_mode
  , connection_ids
  , is_active
  , is_draft
  , version
  , created_at
  , updated_at
  , deleted_at
`

// Flows returns the non-deleted flows of an organization without their graphs.
func (r *FlowRepository) Flows(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := r.scanFlowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// FlowByID returns a flow with its graph, scoped to the organization.
func (r *FlowRepository) FlowByID(ctx context.Context, organizationID, id string) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id, organizationID)

	flow, err := r.scanFlowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	err = r.loadGraph(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow graph: %w", err)
	}

	return flow, nil
}

// FlowGraph returns a flow with its graph without tenant scoping.
func (r *FlowRepository) FlowGraph(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	flow, err := r.scanFlowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("FlowGraph", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	err = r.loadGraph(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow graph: %w", err)
	}

	return flow, nil
}

// SaveFlow inserts or updates a flow definition. Only the first insert writes
// the graph; afterwards the graph is owned by ReplaceCanvas.
func (r *FlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	keywordsJSON, err := json.Marshal(flow.TriggerKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger keywords: %w", err)
	}

	connectionsJSON, err := json.Marshal(flow.ConnectionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal connection ids: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool

	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM flows WHERE id = $1)", flow.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check flow existence: %w", err)
	}

	if exists {
		query := `
			UPDATE flows SET
				name = $2,
				trigger_enabled = $3,
				trigger_keywords = $4,
				trigger_match_mode = $5,
				connection_ids = $6,
				is_active = $7,
				is_draft = $8,
				updated_at = $9,
				deleted_at = $10
			WHERE id = $1
		`

		_, err = tx.ExecContext(ctx, query,
			flow.ID,
			flow.Name,
			flow.TriggerEnabled,
			keywordsJSON,
			flow.TriggerMatchMode,
			connectionsJSON,
			flow.IsActive,
			flow.IsDraft,
			flow.UpdatedAt,
			flow.DeletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update flow: %w", err)
		}
	} else {
		query := `
			INSERT INTO flows (id, organization_id, name, trigger_enabled, trigger_keywords,
				trigger_match_mode, connection_ids, is_active, is_draft, version,
				created_at, updated_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`

		_, err = tx.ExecContext(ctx, query,
			flow.ID,
			flow.OrganizationID,
			flow.Name,
			flow.TriggerEnabled,
			keywordsJSON,
			flow.TriggerMatchMode,
			connectionsJSON,
			flow.IsActive,
			flow.IsDraft,
			flow.Version,
			flow.CreatedAt,
			flow.UpdatedAt,
			flow.DeletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert flow: %w", err)
		}

		err = r.insertNodes(ctx, tx, flow.ID, flow.Nodes)
		if err != nil {
			return err
		}

		err = r.insertEdges(ctx, tx, flow.ID, flow.Edges)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ReplaceCanvas snapshots the current graph, replaces all nodes and edges and
// increments the flow version, all in one transaction.
func (r *FlowRepository) ReplaceCanvas(ctx context.Context, flowID string, nodes []*models.Node, edges []*models.Edge, editorID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var currentVersion int

	err = tx.QueryRowContext(ctx,
		"SELECT version FROM flows WHERE id = $1 AND deleted_at IS NULL FOR UPDATE",
		flowID).Scan(&currentVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, persistence.NewFlowError("ReplaceCanvas", flowID, persistence.ErrFlowNotFound)
		}

		return 0, fmt.Errorf("failed to lock flow row: %w", err)
	}

	err = r.snapshotGraph(ctx, tx, flowID, currentVersion, editorID)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM flow_edges WHERE flow_id = $1", flowID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete existing edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM flow_nodes WHERE flow_id = $1", flowID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	err = r.insertNodes(ctx, tx, flowID, nodes)
	if err != nil {
		return 0, err
	}

	err = r.insertEdges(ctx, tx, flowID, edges)
	if err != nil {
		return 0, err
	}

	newVersion := currentVersion + 1

	_, err = tx.ExecContext(ctx,
		"UPDATE flows SET version = $2, is_draft = false, updated_at = NOW() WHERE id = $1",
		flowID, newVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to bump flow version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return newVersion, nil
}

// DeleteFlow soft deletes a flow by setting deleted_at timestamp.
func (r *FlowRepository) DeleteFlow(ctx context.Context, organizationID, id string) error {
	query := `
		UPDATE flows SET deleted_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, organizationID)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	return nil
}

// snapshotGraph writes the flow's current nodes and edges to flow_versions.
// A snapshot already taken for the version is left untouched.
func (r *FlowRepository) snapshotGraph(ctx context.Context, tx *sql.Tx, flowID string, version int, editorID string) error {
	flow := &models.Flow{ID: flowID}

	err := r.loadGraphTx(ctx, tx, flow)
	if err != nil {
		return fmt.Errorf("failed to load graph for snapshot: %w", err)
	}

	nodesJSON, err := json.Marshal(flow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot nodes: %w", err)
	}

	edgesJSON, err := json.Marshal(flow.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot edges: %w", err)
	}

	query := `
		INSERT INTO flow_versions (flow_id, version, nodes, edges, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flow_id, version) DO NOTHING
	`

	_, err = tx.ExecContext(ctx, query, flowID, version, nodesJSON, edgesJSON, editorID)
	if err != nil {
		return fmt.Errorf("failed to snapshot graph: %w", err)
	}

	return nil
}

func (r *FlowRepository) insertNodes(ctx context.Context, tx *sql.Tx, flowID string, nodes []*models.Node) error {
	query := `
		INSERT INTO flow_nodes (flow_id, node_id, node_type, name, position_x, position_y, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, node := range nodes {
		var contentJSON []byte

		if node.Content != nil {
			var err error

			contentJSON, err = json.Marshal(node.Content)
			if err != nil {
				return fmt.Errorf("failed to marshal node content: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, query,
			flowID,
			node.NodeID,
			node.Type,
			node.Name,
			node.Position.X,
			node.Position.Y,
			contentJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.NodeID, err)
		}
	}

	return nil
}

func (r *FlowRepository) insertEdges(ctx context.Context, tx *sql.Tx, flowID string, edges []*models.Edge) error {
	query := `
		INSERT INTO flow_edges (flow_id, edge_id, source_node_id, target_node_id,
			source_handle, target_handle, label, edge_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, edge := range edges {
		_, err := tx.ExecContext(ctx, query,
			flowID,
			edge.EdgeID,
			edge.SourceNodeID,
			edge.TargetNodeID,
			edge.SourceHandle,
			edge.TargetHandle,
			edge.Label,
			edge.EdgeType,
		)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.EdgeID, err)
		}
	}

	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *FlowRepository) loadGraph(ctx context.Context, flow *models.Flow) error {
	return r.loadGraphFrom(ctx, r.db, flow)
}

func (r *FlowRepository) loadGraphTx(ctx context.Context, tx *sql.Tx, flow *models.Flow) error {
	return r.loadGraphFrom(ctx, tx, flow)
}

func (r *FlowRepository) loadGraphFrom(ctx context.Context, q queryer, flow *models.Flow) error {
	nodesQuery := `
		SELECT node_id, node_type, name, position_x, position_y, content
		FROM flow_nodes
		WHERE flow_id = $1
		ORDER BY created_at
	`

	rows, err := q.QueryContext(ctx, nodesQuery, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to query flow nodes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var nodes []*models.Node

	for rows.Next() {
		var (
			node        models.Node
			contentJSON []byte
		)

		err := rows.Scan(
			&node.NodeID,
			&node.Type,
			&node.Name,
			&node.Position.X,
			&node.Position.Y,
			&contentJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}

		node.FlowID = flow.ID

		content, err := models.UnmarshalContent(node.Type, contentJSON)
		if err != nil {
			return fmt.Errorf("failed to decode content of node %s: %w", node.NodeID, err)
		}

		node.Content = content
		nodes = append(nodes, &node)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating nodes: %w", err)
	}

	flow.Nodes = nodes

	edgesQuery := `
		SELECT edge_id, source_node_id, target_node_id, source_handle, target_handle, label, edge_type
		FROM flow_edges
		WHERE flow_id = $1
		ORDER BY created_at
	`

	rows, err = q.QueryContext(ctx, edgesQuery, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to query flow edges: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var edges []*models.Edge

	for rows.Next() {
		var edge models.Edge

		err := rows.Scan(
			&edge.EdgeID,
			&edge.SourceNodeID,
			&edge.TargetNodeID,
			&edge.SourceHandle,
			&edge.TargetHandle,
			&edge.Label,
			&edge.EdgeType,
		)
		if err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}

		edge.FlowID = flow.ID
		edges = append(edges, &edge)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating edges: %w", err)
	}

	flow.Edges = edges

	return nil
}

func (r *FlowRepository) scanFlowBase(scanner interface {
	Scan(dest ...any) error
}) (*models.Flow, error) {
	var (
		flow                         models.Flow
		keywordsJSON, connectionsJSON []byte
	)

	err := scanner.Scan(
		&flow.ID,
		&flow.OrganizationID,
		&flow.Name,
		&flow.TriggerEnabled,
		&keywordsJSON,
		&flow.TriggerMatchMode,
		&connectionsJSON,
		&flow.IsActive,
		&flow.IsDraft,
		&flow.Version,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&flow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if keywordsJSON != nil {
		err := json.Unmarshal(keywordsJSON, &flow.TriggerKeywords)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger keywords: %w", err)
		}
	}

	if connectionsJSON != nil {
		err := json.Unmarshal(connectionsJSON, &flow.ConnectionIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection ids: %w", err)
		}
	}

	return &flow, nil
}
