package client

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tmurph/go-chatsync/internal/types"
)

type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) ListConversations(ctx context.Context) ([]types.Conversation, error) {
	args := m.Called(ctx)
	if convs, ok := args.Get(0).([]types.Conversation); ok {
		return convs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatAPI) GetConversation(ctx context.Context, conversationId string) (types.Conversation, error) {
	args := m.Called(ctx, conversationId)
	return args.Get(0).(types.Conversation), args.Error(1)
}

func (m *MockChatAPI) CreateConversation(ctx context.Context, params CreateConversationParams) (types.Conversation, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(types.Conversation), args.Error(1)
}

func (m *MockChatAPI) GetMessages(ctx context.Context, conversationId string, sinceSeq, limit int) ([]types.Message, error) {
	args := m.Called(ctx, conversationId, sinceSeq, limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatAPI) SendMessage(ctx context.Context, params SendMessageParams) (types.Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(types.Message), args.Error(1)
}

func (m *MockChatAPI) SubmitReadReceipt(ctx context.Context, conversationId string, seqId int) error {
	args := m.Called(ctx, conversationId, seqId)
	return args.Error(0)
}

func (m *MockChatAPI) AddParticipant(ctx context.Context, conversationId, participantId string) error {
	args := m.Called(ctx, conversationId, participantId)
	return args.Error(0)
}

func (m *MockChatAPI) RemoveParticipant(ctx context.Context, conversationId, participantId string) error {
	args := m.Called(ctx, conversationId, participantId)
	return args.Error(0)
}
