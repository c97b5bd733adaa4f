package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/protocol"
)

// MockMessenger is a mock implementation of protocol.Messenger.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendMessage(ctx context.Context, conversationID string, msg protocol.OutboundMessage) error {
	args := m.Called(ctx, conversationID, msg)

	return args.Error(0)
}

func (m *MockMessenger) SendTyping(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)

	return args.Error(0)
}

// MockCRMService is a mock implementation of protocol.CRMService.
type MockCRMService struct {
	mock.Mock
}

func (m *MockCRMService) AddTag(ctx context.Context, conversationID, tag string) error {
	args := m.Called(ctx, conversationID, tag)

	return args.Error(0)
}

func (m *MockCRMService) RemoveTag(ctx context.Context, conversationID, tag string) error {
	args := m.Called(ctx, conversationID, tag)

	return args.Error(0)
}

func (m *MockCRMService) Notify(ctx context.Context, conversationID, target, message string, external bool) error {
	args := m.Called(ctx, conversationID, target, message, external)

	return args.Error(0)
}

func (m *MockCRMService) CreateTask(ctx context.Context, conversationID, title, description string) error {
	args := m.Called(ctx, conversationID, title, description)

	return args.Error(0)
}

func (m *MockCRMService) TransferConversation(
	ctx context.Context,
	conversationID string,
	kind models.TransferTarget,
	targetID string,
) error {
	args := m.Called(ctx, conversationID, kind, targetID)

	return args.Error(0)
}

func (m *MockCRMService) CloseConversation(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)

	return args.Error(0)
}

// MockEmailSender is a mock implementation of protocol.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)

	return args.Error(0)
}

// MockAIProvider is a mock implementation of protocol.AIProvider.
type MockAIProvider struct {
	mock.Mock
}

func (m *MockAIProvider) Complete(ctx context.Context, req protocol.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)

	return args.String(0), args.Error(1)
}

// MockHistoryProvider is a mock implementation of protocol.HistoryProvider.
type MockHistoryProvider struct {
	mock.Mock
}

func (m *MockHistoryProvider) RecentTurns(ctx context.Context, conversationID string, limit int) ([]protocol.ChatTurn, error) {
	args := m.Called(ctx, conversationID, limit)

	turns, _ := args.Get(0).([]protocol.ChatTurn)

	return turns, args.Error(1)
}

// MockWebhookCaller is a mock implementation of protocol.WebhookCaller.
type MockWebhookCaller struct {
	mock.Mock
}

func (m *MockWebhookCaller) Call(
	ctx context.Context,
	method, url string,
	headers map[string]string,
	body string,
) (protocol.WebhookResponse, error) {
	args := m.Called(ctx, method, url, headers, body)

	resp, _ := args.Get(0).(protocol.WebhookResponse)

	return resp, args.Error(1)
}

// MockTimerScheduler is a mock implementation of protocol.TimerScheduler.
type MockTimerScheduler struct {
	mock.Mock
}

func (m *MockTimerScheduler) ScheduleAt(ctx context.Context, conversationID, sessionID, nodeID string, fireAt time.Time) error {
	args := m.Called(ctx, conversationID, sessionID, nodeID, fireAt)

	return args.Error(0)
}
