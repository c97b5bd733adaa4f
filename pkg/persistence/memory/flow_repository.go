package memory

import (
	"context"
	"sort"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// FlowRepository is the in-memory flow store.
type FlowRepository struct {
	store *Persistence
}

func (r *FlowRepository) Flows(_ context.Context, organizationID string) ([]*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*models.Flow

	for _, f := range r.store.flows {
		if f.OrganizationID != organizationID || f.DeletedAt != nil {
			continue
		}

		out = append(out, copyFlow(f, false))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *FlowRepository) FlowByID(_ context.Context, organizationID, id string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	f, ok := r.store.flows[id]
	if !ok || f.DeletedAt != nil || f.OrganizationID != organizationID {
		return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
	}

	return copyFlow(f, true), nil
}

func (r *FlowRepository) FlowGraph(_ context.Context, id string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	f, ok := r.store.flows[id]
	if !ok || f.DeletedAt != nil {
		return nil, persistence.NewFlowError("FlowGraph", id, persistence.ErrFlowNotFound)
	}

	return copyFlow(f, true), nil
}

func (r *FlowRepository) SaveFlow(_ context.Context, flow *models.Flow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.flows[flow.ID]
	if ok {
		// Definition saves never touch the graph.
		clone := copyFlow(flow, false)
		clone.Nodes = existing.Nodes
		clone.Edges = existing.Edges
		clone.Version = existing.Version
		r.store.flows[flow.ID] = clone

		return nil
	}

	r.store.flows[flow.ID] = copyFlow(flow, true)

	return nil
}

func (r *FlowRepository) ReplaceCanvas(_ context.Context, flowID string, nodes []*models.Node, edges []*models.Edge, editorID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	f, ok := r.store.flows[flowID]
	if !ok || f.DeletedAt != nil {
		return 0, persistence.NewFlowError("ReplaceCanvas", flowID, persistence.ErrFlowNotFound)
	}

	if !snapshotExists(r.store.versions[flowID], f.Version) {
		r.store.versions[flowID] = append(r.store.versions[flowID], &models.FlowVersion{
			FlowID:    flowID,
			Version:   f.Version,
			Nodes:     copyNodes(f.Nodes),
			Edges:     copyEdges(f.Edges),
			CreatedBy: editorID,
			CreatedAt: r.store.now(),
		})
	}

	f.Nodes = copyNodes(nodes)
	f.Edges = copyEdges(edges)
	f.Version++
	f.IsDraft = false
	f.UpdatedAt = r.store.now()

	return f.Version, nil
}

func (r *FlowRepository) DeleteFlow(_ context.Context, organizationID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	f, ok := r.store.flows[id]
	if !ok || f.DeletedAt != nil || f.OrganizationID != organizationID {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	deletedAt := r.store.now()
	f.DeletedAt = &deletedAt

	return nil
}

func snapshotExists(versions []*models.FlowVersion, version int) bool {
	for _, v := range versions {
		if v.Version == version {
			return true
		}
	}

	return false
}

// VersionRepository reads in-memory canvas snapshots.
type VersionRepository struct {
	store *Persistence
}

func (r *VersionRepository) Versions(_ context.Context, flowID string) ([]*models.FlowVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	snapshots := r.store.versions[flowID]

	out := make([]*models.FlowVersion, 0, len(snapshots))
	for _, v := range snapshots {
		clone := *v
		clone.Nodes = copyNodes(v.Nodes)
		clone.Edges = copyEdges(v.Edges)
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

func (r *VersionRepository) VersionByNumber(_ context.Context, flowID string, version int) (*models.FlowVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, v := range r.store.versions[flowID] {
		if v.Version == version {
			clone := *v
			clone.Nodes = copyNodes(v.Nodes)
			clone.Edges = copyEdges(v.Edges)

			return &clone, nil
		}
	}

	return nil, persistence.NewFlowError("VersionByNumber", flowID, persistence.ErrVersionNotFound)
}
