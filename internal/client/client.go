package client

import (
	"context"

	"github.com/tmurph/go-chatsync/internal/types"
)

type CreateConversationParams struct {
	Kind         types.ConversationKind `json:"kind"`
	Name         string                 `json:"name,omitempty"`
	Participants []string               `json:"participants"`
}

type SendMessageParams struct {
	ConversationId string             `json:"conversation_id"`
	LocalId        string             `json:"local_id"`
	Body           string             `json:"body,omitempty"`
	Attachments    []types.Attachment `json:"attachments,omitempty"`
}

// ChatAPI is the request/response surface of the messaging backend. The
// synchronization core is written against this interface; the HTTP
// implementation lives in this package and a testify mock in mock.go.
type ChatAPI interface {
	ListConversations(ctx context.Context) ([]types.Conversation, error)
	GetConversation(ctx context.Context, conversationId string) (types.Conversation, error)
	CreateConversation(ctx context.Context, params CreateConversationParams) (types.Conversation, error)
	GetMessages(ctx context.Context, conversationId string, sinceSeq, limit int) ([]types.Message, error)
	SendMessage(ctx context.Context, params SendMessageParams) (types.Message, error)
	SubmitReadReceipt(ctx context.Context, conversationId string, seqId int) error
	AddParticipant(ctx context.Context, conversationId, participantId string) error
	RemoveParticipant(ctx context.Context, conversationId, participantId string) error
}
