package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// Flow is the application service for flow definitions and canvases.
type Flow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence, validate *validator.Validate) *Flow {
	return &Flow{
		persistence: persistence,
		validator:   validate,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns the organization's flows without their graphs.
func (s *Flow) List(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	flows, err := s.persistence.FlowRepository().Flows(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

// FetchByID returns a flow with its graph, scoped to the organization.
func (s *Flow) FetchByID(ctx context.Context, organizationID, id string) (*models.Flow, error) {
	return s.persistence.FlowRepository().FlowByID(ctx, organizationID, id)
}

// Create adds a new flow. New flows start as inactive drafts at version 1
// with an empty canvas.
func (s *Flow) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	now := time.Now().UTC()
	flow.ID = uuid.Must(uuid.NewV7()).String()
	flow.IsActive = false
	flow.IsDraft = true
	flow.Version = 1
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if flow.TriggerMatchMode == "" {
		flow.TriggerMatchMode = models.TriggerMatchExact
	}

	err := s.validator.Struct(flow)
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_FLOW", err.Error(), ErrInvalidRequest)
	}

	err = s.persistence.FlowRepository().SaveFlow(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return flow, nil
}

// Update modifies a flow's definition: name, trigger settings, connection
// scoping and activation. The canvas is managed by SaveCanvas.
func (s *Flow) Update(ctx context.Context, organizationID, flowID string, flow *models.Flow) (*models.Flow, error) {
	existing, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return nil, err
	}

	flow.ID = flowID
	flow.OrganizationID = existing.OrganizationID
	flow.Version = existing.Version
	flow.IsDraft = existing.IsDraft
	flow.CreatedAt = existing.CreatedAt

	if flow.TriggerMatchMode == "" {
		flow.TriggerMatchMode = existing.TriggerMatchMode
	}

	err = s.validator.Struct(flow)
	if err != nil {
		return nil, NewValidationError("Update", "INVALID_FLOW", err.Error(), ErrInvalidRequest)
	}

	err = s.persistence.FlowRepository().SaveFlow(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return flow, nil
}

// Delete soft deletes a flow.
func (s *Flow) Delete(ctx context.Context, organizationID, flowID string) error {
	return s.persistence.FlowRepository().DeleteFlow(ctx, organizationID, flowID)
}

// GetCanvas returns the current nodes and edges of a flow.
func (s *Flow) GetCanvas(ctx context.Context, organizationID, flowID string) ([]*models.Node, []*models.Edge, error) {
	flow, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return nil, nil, err
	}

	return flow.Nodes, flow.Edges, nil
}

// SaveCanvas validates and atomically replaces a flow's graph, snapshotting
// the previous one. Returns the new flow version.
func (s *Flow) SaveCanvas(ctx context.Context, organizationID, flowID string, nodes []*models.Node, edges []*models.Edge, editorID string) (int, error) {
	// Tenant scoping check before the unscoped canvas write.
	_, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return 0, err
	}

	err = ValidateCanvas(nodes, edges)
	if err != nil {
		return 0, err
	}

	newVersion, err := s.persistence.FlowRepository().ReplaceCanvas(ctx, flowID, nodes, edges, editorID)
	if err != nil {
		return 0, fmt.Errorf("failed to replace canvas: %w", err)
	}

	return newVersion, nil
}

// Duplicate copies a flow's definition and canvas into a new inactive draft
// at version 1. Returns the new flow's id.
func (s *Flow) Duplicate(ctx context.Context, organizationID, flowID string) (string, error) {
	source, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	clone := *source
	clone.ID = uuid.Must(uuid.NewV7()).String()
	clone.Name = source.Name + " (copy)"
	clone.IsActive = false
	clone.IsDraft = true
	clone.Version = 1
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.Nodes = source.Nodes
	clone.Edges = source.Edges

	err = s.persistence.FlowRepository().SaveFlow(ctx, &clone)
	if err != nil {
		return "", fmt.Errorf("failed to save duplicated flow: %w", err)
	}

	return clone.ID, nil
}

// ListVersions returns the snapshot history of a flow.
func (s *Flow) ListVersions(ctx context.Context, organizationID, flowID string) ([]*models.FlowVersion, error) {
	_, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return nil, err
	}

	return s.persistence.VersionRepository().Versions(ctx, flowID)
}

// RestoreVersion replaces the current canvas with a snapshot's graph. The
// replace itself snapshots the outgoing canvas first, so no history is lost.
func (s *Flow) RestoreVersion(ctx context.Context, organizationID, flowID string, version int, editorID string) (int, error) {
	_, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return 0, err
	}

	snapshot, err := s.persistence.VersionRepository().VersionByNumber(ctx, flowID, version)
	if err != nil {
		return 0, err
	}

	return s.SaveCanvas(ctx, organizationID, flowID, snapshot.Nodes, snapshot.Edges, editorID)
}
