package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

func TestCreateSessionEnforcesSingleActivePerConversation(t *testing.T) {
	store := NewPersistence()
	repo := store.SessionRepository()

	flow := testutil.CreateTestFlow()
	first := testutil.CreateTestSession(flow)

	require.NoError(t, repo.CreateSession(context.Background(), first))

	second := testutil.CreateTestSession(flow)
	err := repo.CreateSession(context.Background(), second)
	assert.True(t, persistence.IsActiveSessionExists(err))

	// Deactivating the first frees the slot.
	first.IsActive = false
	first.State = models.SessionCompleted
	require.NoError(t, repo.UpdateSession(context.Background(), first))

	assert.NoError(t, repo.CreateSession(context.Background(), second))
}

func TestUpdateSessionComparesAndSwapsStateVersion(t *testing.T) {
	store := NewPersistence()
	repo := store.SessionRepository()

	flow := testutil.CreateTestFlow()
	session := testutil.CreateTestSession(flow)
	require.NoError(t, repo.CreateSession(context.Background(), session))
	require.Equal(t, 1, session.StateVersion)

	stale := *session
	stale.Variables = map[string]string{}

	session.CurrentNodeID = "menu"
	require.NoError(t, repo.UpdateSession(context.Background(), session))
	assert.Equal(t, 2, session.StateVersion)

	// A writer holding the old version loses.
	stale.CurrentNodeID = "elsewhere"
	err := repo.UpdateSession(context.Background(), &stale)
	assert.True(t, persistence.IsSessionConflict(err))

	stored, err := repo.SessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "menu", stored.CurrentNodeID)
}

func TestSessionReadsReturnIsolatedCopies(t *testing.T) {
	store := NewPersistence()
	repo := store.SessionRepository()

	flow := testutil.CreateTestFlow()
	session := testutil.CreateTestSession(flow)
	session.SetVariable("name", "Ana")
	require.NoError(t, repo.CreateSession(context.Background(), session))

	read, err := repo.SessionByID(context.Background(), session.ID)
	require.NoError(t, err)

	read.Variables["name"] = "mutated"

	again, err := repo.SessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Variables["name"])
}

func TestStaleAwaitingSessions(t *testing.T) {
	store := NewPersistence()
	repo := store.SessionRepository()

	flow := testutil.CreateTestFlow()

	cutoffBase := time.Now().UTC()
	store.now = func() time.Time { return cutoffBase.Add(-48 * time.Hour) }

	stale := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))
	require.NoError(t, repo.CreateSession(context.Background(), stale))

	store.now = func() time.Time { return cutoffBase }

	freshFlow := testutil.CreateTestFlow()
	fresh := testutil.CreateTestSession(freshFlow, testutil.AwaitingAt("menu"))
	fresh.ConversationID = "conv-2"
	require.NoError(t, repo.CreateSession(context.Background(), fresh))

	running := testutil.CreateTestSession(freshFlow)
	running.ConversationID = "conv-3"
	running.StartedAt = cutoffBase.Add(-48 * time.Hour)
	require.NoError(t, repo.CreateSession(context.Background(), running))

	found, err := repo.StaleAwaitingSessions(context.Background(), cutoffBase.Add(-24*time.Hour))
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestSaveFlowNeverTouchesGraphOnUpdate(t *testing.T) {
	store := NewPersistence()
	repo := store.FlowRepository()

	flow := testutil.LinearFlow(testutil.MessageNode("msg", "oi"), testutil.EndNode("end"))
	require.NoError(t, repo.SaveFlow(context.Background(), flow))

	// Definition update carrying no graph must not wipe the stored one.
	update := *flow
	update.Name = "Renamed"
	update.Nodes = nil
	update.Edges = nil
	require.NoError(t, repo.SaveFlow(context.Background(), &update))

	stored, err := repo.FlowGraph(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Len(t, stored.Nodes, 3)
	assert.Len(t, stored.Edges, 2)
}

func TestReplaceCanvasSnapshotsAndBumpsVersion(t *testing.T) {
	store := NewPersistence()
	flows := store.FlowRepository()
	versions := store.VersionRepository()

	flow := testutil.LinearFlow(testutil.MessageNode("msg", "v1"), testutil.EndNode("end"))
	flow.IsDraft = true
	require.NoError(t, flows.SaveFlow(context.Background(), flow))

	newNodes := []*models.Node{
		testutil.StartNode(),
		testutil.MessageNode("msg", "v2"),
		testutil.EndNode("end"),
	}
	newEdges := []*models.Edge{
		testutil.Connect(models.StartNodeID, "msg"),
		testutil.Connect("msg", "end"),
	}

	version, err := flows.ReplaceCanvas(context.Background(), flow.ID, newNodes, newEdges, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	stored, err := flows.FlowGraph(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsDraft, "publishing a canvas clears the draft mark")
	assert.Equal(t, 2, stored.Version)

	snapshots, err := versions.Versions(context.Background(), flow.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 1, snapshots[0].Version)
	assert.Equal(t, "user-1", snapshots[0].CreatedBy)

	// The snapshot keeps the replaced canvas, not the new one.
	v1, err := versions.VersionByNumber(context.Background(), flow.ID, 1)
	require.NoError(t, err)

	msg, ok := findNode(v1.Nodes, "msg")
	require.True(t, ok)
	assert.Equal(t, models.NodeTypeMessage, msg.Type)
}

func TestReplaceCanvasSnapshotIsIdempotentPerVersion(t *testing.T) {
	store := NewPersistence()
	flows := store.FlowRepository()
	versions := store.VersionRepository()

	flow := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, flows.SaveFlow(context.Background(), flow))

	canvas := func(text string) ([]*models.Node, []*models.Edge) {
		return []*models.Node{
				testutil.StartNode(),
				testutil.MessageNode("msg", text),
				testutil.EndNode("end"),
			}, []*models.Edge{
				testutil.Connect(models.StartNodeID, "msg"),
				testutil.Connect("msg", "end"),
			}
	}

	n, e := canvas("a")
	_, err := flows.ReplaceCanvas(context.Background(), flow.ID, n, e, "user-1")
	require.NoError(t, err)

	n, e = canvas("b")
	_, err = flows.ReplaceCanvas(context.Background(), flow.ID, n, e, "user-1")
	require.NoError(t, err)

	snapshots, err := versions.Versions(context.Background(), flow.ID)
	require.NoError(t, err)

	require.Len(t, snapshots, 2)
	assert.Equal(t, 1, snapshots[0].Version)
	assert.Equal(t, 2, snapshots[1].Version)
}

func TestDeleteFlowIsSoftAndTenantScoped(t *testing.T) {
	store := NewPersistence()
	repo := store.FlowRepository()

	flow := testutil.CreateTestFlow()
	require.NoError(t, repo.SaveFlow(context.Background(), flow))

	// Wrong tenant cannot delete.
	err := repo.DeleteFlow(context.Background(), "org-other", flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))

	require.NoError(t, repo.DeleteFlow(context.Background(), "org-1", flow.ID))

	_, err = repo.FlowByID(context.Background(), "org-1", flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))

	_, err = repo.FlowGraph(context.Background(), flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))

	listed, err := repo.Flows(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Double delete reports not found.
	err = repo.DeleteFlow(context.Background(), "org-1", flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowsListingOmitsGraphAndForeignTenants(t *testing.T) {
	store := NewPersistence()
	repo := store.FlowRepository()

	mine := testutil.LinearFlow(testutil.EndNode("end"))
	require.NoError(t, repo.SaveFlow(context.Background(), mine))

	other := testutil.CreateTestFlow(func(f *models.Flow) { f.OrganizationID = "org-2" })
	require.NoError(t, repo.SaveFlow(context.Background(), other))

	listed, err := repo.Flows(context.Background(), "org-1")
	require.NoError(t, err)

	require.Len(t, listed, 1)
	assert.Equal(t, mine.ID, listed[0].ID)
	assert.Nil(t, listed[0].Nodes)
	assert.Nil(t, listed[0].Edges)
}

func TestDueTimersClaimsAndOrders(t *testing.T) {
	store := NewPersistence()
	repo := store.TimerRepository()

	now := time.Now().UTC()

	require.NoError(t, repo.SaveTimer(context.Background(), &persistence.Timer{
		ID: "t-late", SessionID: "s1", NodeID: "wait", FireAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.SaveTimer(context.Background(), &persistence.Timer{
		ID: "t-due-2", SessionID: "s2", NodeID: "wait", FireAt: now.Add(-time.Minute),
	}))
	require.NoError(t, repo.SaveTimer(context.Background(), &persistence.Timer{
		ID: "t-due-1", SessionID: "s3", NodeID: "wait", FireAt: now.Add(-time.Hour),
	}))

	due, err := repo.DueTimers(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, due, 2)
	assert.Equal(t, "t-due-1", due[0].ID)
	assert.Equal(t, "t-due-2", due[1].ID)

	// Claimed timers are gone; the future one remains.
	again, err := repo.DueTimers(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, again)

	later, err := repo.DueTimers(context.Background(), now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "t-late", later[0].ID)
}

func TestDeleteTimersForSession(t *testing.T) {
	store := NewPersistence()
	repo := store.TimerRepository()

	now := time.Now().UTC()

	require.NoError(t, repo.SaveTimer(context.Background(), &persistence.Timer{
		ID: "t1", SessionID: "s1", FireAt: now.Add(-time.Minute),
	}))
	require.NoError(t, repo.SaveTimer(context.Background(), &persistence.Timer{
		ID: "t2", SessionID: "s2", FireAt: now.Add(-time.Minute),
	}))

	require.NoError(t, repo.DeleteTimersForSession(context.Background(), "s1"))

	due, err := repo.DueTimers(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "t2", due[0].ID)
}

func TestVersionByNumberNotFound(t *testing.T) {
	store := NewPersistence()

	_, err := store.VersionRepository().VersionByNumber(context.Background(), "missing", 1)
	assert.True(t, persistence.IsVersionNotFound(err))
}

func findNode(nodes []*models.Node, id string) (*models.Node, bool) {
	for _, n := range nodes {
		if n.NodeID == id {
			return n, true
		}
	}

	return nil, false
}
