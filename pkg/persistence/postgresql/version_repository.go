package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// VersionRepository reads immutable canvas snapshots.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

// Versions returns all snapshots of a flow in ascending version order.
func (r *VersionRepository) Versions(ctx context.Context, flowID string) ([]*models.FlowVersion, error) {
	query := `
		SELECT flow_id, version, nodes, edges, created_by, created_at
		FROM flow_versions
		WHERE flow_id = $1
		ORDER BY version
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow versions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.FlowVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

// VersionByNumber returns one snapshot of a flow.
func (r *VersionRepository) VersionByNumber(ctx context.Context, flowID string, version int) (*models.FlowVersion, error) {
	query := `
		SELECT flow_id, version, nodes, edges, created_by, created_at
		FROM flow_versions
		WHERE flow_id = $1 AND version = $2
	`

	row := r.db.QueryRowContext(ctx, query, flowID, version)

	snapshot, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("VersionByNumber", flowID, persistence.ErrVersionNotFound)
		}

		return nil, err
	}

	return snapshot, nil
}

func scanVersion(scanner interface {
	Scan(dest ...any) error
}) (*models.FlowVersion, error) {
	var (
		version              models.FlowVersion
		nodesJSON, edgesJSON []byte
	)

	err := scanner.Scan(
		&version.FlowID,
		&version.Version,
		&nodesJSON,
		&edgesJSON,
		&version.CreatedBy,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(nodesJSON, &version.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot nodes: %w", err)
	}

	err = json.Unmarshal(edgesJSON, &version.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot edges: %w", err)
	}

	return &version, nil
}
