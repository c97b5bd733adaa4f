package services

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
	"github.com/zapdesk/flowengine/pkg/persistence/memory"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

func newFlowService() (*Flow, *memory.Persistence) {
	store := memory.NewPersistence()

	return NewFlow(store, validator.New(validator.WithRequiredStructEnabled())), store
}

func TestCreateFlowStartsAsInactiveDraft(t *testing.T) {
	service, _ := newFlowService()

	created, err := service.Create(context.Background(), &models.Flow{
		OrganizationID: "org-1",
		Name:           "Welcome Flow",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsDraft)
	assert.False(t, created.IsActive)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, models.TriggerMatchExact, created.TriggerMatchMode)
}

func TestCreateFlowRejectsShortName(t *testing.T) {
	service, _ := newFlowService()

	_, err := service.Create(context.Background(), &models.Flow{
		OrganizationID: "org-1",
		Name:           "ab",
	})
	assert.True(t, IsValidationError(err))
}

func TestUpdateFlowPreservesVersionAndDraftState(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.CreateTestFlow(func(f *models.Flow) { f.Version = 4 })
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	updated, err := service.Update(context.Background(), "org-1", flow.ID, &models.Flow{
		OrganizationID: "org-1",
		Name:           "Renamed Flow",
		TriggerEnabled: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed Flow", updated.Name)
	assert.Equal(t, 4, updated.Version)
	assert.False(t, updated.IsDraft)
	assert.Equal(t, flow.CreatedAt, updated.CreatedAt)
}

func TestUpdateFlowScopedToOrganization(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.CreateTestFlow()
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	_, err := service.Update(context.Background(), "org-other", flow.ID, &models.Flow{
		OrganizationID: "org-other",
		Name:           "Hijacked",
	})
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestSaveCanvasValidatesBeforeReplacing(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	// Canvas without a start node is rejected and nothing is written.
	err := ValidateCanvas([]*models.Node{testutil.EndNode("end")}, nil)
	require.Error(t, err)

	_, err = service.SaveCanvas(context.Background(), "org-1", flow.ID,
		[]*models.Node{testutil.EndNode("end")}, nil, "user-1")
	assert.True(t, IsValidationError(err))

	stored, err := store.FlowRepository().FlowGraph(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestSaveCanvasBumpsVersion(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	version, err := service.SaveCanvas(context.Background(), "org-1", flow.ID,
		[]*models.Node{
			testutil.StartNode(),
			testutil.MessageNode("msg", "oi"),
			testutil.EndNode("end"),
		},
		[]*models.Edge{
			testutil.Connect(models.StartNodeID, "msg"),
			testutil.Connect("msg", "end"),
		},
		"user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, version)
}

func TestSaveCanvasRejectsForeignTenant(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	_, err := service.SaveCanvas(context.Background(), "org-other", flow.ID,
		[]*models.Node{testutil.StartNode(), testutil.EndNode("end")},
		[]*models.Edge{testutil.Connect(models.StartNodeID, "end")},
		"user-1")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestDuplicateFlowIsVersionOneDraftCopy(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.MessageNode("msg", "oi"), testutil.EndNode("end"))
	flow.Version = 7
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	newID, err := service.Duplicate(context.Background(), "org-1", flow.ID)
	require.NoError(t, err)
	assert.NotEqual(t, flow.ID, newID)

	copied, err := store.FlowRepository().FlowGraph(context.Background(), newID)
	require.NoError(t, err)

	assert.Equal(t, flow.Name+" (copy)", copied.Name)
	assert.True(t, copied.IsDraft)
	assert.False(t, copied.IsActive)
	assert.Equal(t, 1, copied.Version)
	assert.Len(t, copied.Nodes, 3)
	assert.Len(t, copied.Edges, 2)
}

func TestRestoreVersionBringsBackSnapshotCanvas(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.MessageNode("msg", "original"), testutil.EndNode("end"))
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	// Replace the canvas so version 1 gets snapshotted.
	_, err := service.SaveCanvas(context.Background(), "org-1", flow.ID,
		[]*models.Node{
			testutil.StartNode(),
			testutil.MessageNode("msg", "replacement"),
			testutil.EndNode("end"),
		},
		[]*models.Edge{
			testutil.Connect(models.StartNodeID, "msg"),
			testutil.Connect("msg", "end"),
		},
		"user-1")
	require.NoError(t, err)

	restoredVersion, err := service.RestoreVersion(context.Background(), "org-1", flow.ID, 1, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 3, restoredVersion)

	stored, err := store.FlowRepository().FlowGraph(context.Background(), flow.ID)
	require.NoError(t, err)

	msg, ok := stored.NodeByID("msg")
	require.True(t, ok)

	content, ok := msg.Content.(*models.MessageContent)
	require.True(t, ok)
	assert.Equal(t, "original", content.Text)
}

func TestRestoreVersionUnknownSnapshot(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	_, err := service.RestoreVersion(context.Background(), "org-1", flow.ID, 99, "user-1")
	assert.True(t, persistence.IsVersionNotFound(err))
}

func TestListVersionsScopedToOrganization(t *testing.T) {
	service, store := newFlowService()

	flow := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	_, err := service.ListVersions(context.Background(), "org-other", flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))
}
