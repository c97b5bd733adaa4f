// Package mocks provides testify mocks for the persistence and collaborator
// interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// MockFlowRepository is a mock implementation of persistence.FlowRepository.
type MockFlowRepository struct {
	mock.Mock
}

func (m *MockFlowRepository) Flows(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	args := m.Called(ctx, organizationID)

	flows, _ := args.Get(0).([]*models.Flow)

	return flows, args.Error(1)
}

func (m *MockFlowRepository) FlowByID(ctx context.Context, organizationID, id string) (*models.Flow, error) {
	args := m.Called(ctx, organizationID, id)

	flow, _ := args.Get(0).(*models.Flow)

	return flow, args.Error(1)
}

func (m *MockFlowRepository) FlowGraph(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)

	flow, _ := args.Get(0).(*models.Flow)

	return flow, args.Error(1)
}

func (m *MockFlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	args := m.Called(ctx, flow)

	return args.Error(0)
}

func (m *MockFlowRepository) ReplaceCanvas(
	ctx context.Context,
	flowID string,
	nodes []*models.Node,
	edges []*models.Edge,
	editorID string,
) (int, error) {
	args := m.Called(ctx, flowID, nodes, edges, editorID)

	return args.Int(0), args.Error(1)
}

func (m *MockFlowRepository) DeleteFlow(ctx context.Context, organizationID, id string) error {
	args := m.Called(ctx, organizationID, id)

	return args.Error(0)
}

// MockVersionRepository is a mock implementation of persistence.VersionRepository.
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) Versions(ctx context.Context, flowID string) ([]*models.FlowVersion, error) {
	args := m.Called(ctx, flowID)

	versions, _ := args.Get(0).([]*models.FlowVersion)

	return versions, args.Error(1)
}

func (m *MockVersionRepository) VersionByNumber(ctx context.Context, flowID string, version int) (*models.FlowVersion, error) {
	args := m.Called(ctx, flowID, version)

	snapshot, _ := args.Get(0).(*models.FlowVersion)

	return snapshot, args.Error(1)
}

// MockSessionRepository is a mock implementation of persistence.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) ActiveSessionByConversation(ctx context.Context, conversationID string) (*models.Session, error) {
	args := m.Called(ctx, conversationID)

	session, _ := args.Get(0).(*models.Session)

	return session, args.Error(1)
}

func (m *MockSessionRepository) SessionByID(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)

	session, _ := args.Get(0).(*models.Session)

	return session, args.Error(1)
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)

	return args.Error(0)
}

func (m *MockSessionRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)

	return args.Error(0)
}

func (m *MockSessionRepository) StaleAwaitingSessions(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	args := m.Called(ctx, cutoff)

	sessions, _ := args.Get(0).([]*models.Session)

	return sessions, args.Error(1)
}

// MockTimerRepository is a mock implementation of persistence.TimerRepository.
type MockTimerRepository struct {
	mock.Mock
}

func (m *MockTimerRepository) SaveTimer(ctx context.Context, timer *persistence.Timer) error {
	args := m.Called(ctx, timer)

	return args.Error(0)
}

func (m *MockTimerRepository) DueTimers(ctx context.Context, now time.Time) ([]*persistence.Timer, error) {
	args := m.Called(ctx, now)

	timers, _ := args.Get(0).([]*persistence.Timer)

	return timers, args.Error(1)
}

func (m *MockTimerRepository) DeleteTimersForSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)

	return args.Error(0)
}

// MockPersistence aggregates the repository mocks behind the persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	FlowRepo    *MockFlowRepository
	VersionRepo *MockVersionRepository
	SessionRepo *MockSessionRepository
	TimerRepo   *MockTimerRepository
}

// NewMockPersistence creates a MockPersistence with all repository mocks wired.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		FlowRepo:    &MockFlowRepository{},
		VersionRepo: &MockVersionRepository{},
		SessionRepo: &MockSessionRepository{},
		TimerRepo:   &MockTimerRepository{},
	}
}

func (m *MockPersistence) FlowRepository() persistence.FlowRepository {
	return m.FlowRepo
}

func (m *MockPersistence) VersionRepository() persistence.VersionRepository {
	return m.VersionRepo
}

func (m *MockPersistence) SessionRepository() persistence.SessionRepository {
	return m.SessionRepo
}

func (m *MockPersistence) TimerRepository() persistence.TimerRepository {
	return m.TimerRepo
}

func (m *MockPersistence) HealthCheck(_ context.Context) error {
	return nil
}

func (m *MockPersistence) Close(_ context.Context) error {
	return nil
}
