package realtime

import (
	"time"

	"github.com/tmurph/go-chatsync/internal/types"
)

// Scope names an independently subscribed stream of push events: the
// shared presence channel, one channel per conversation, and the user's
// personal notification channel.
type Scope string

const PresenceScope Scope = "presence"

func ConversationScope(conversationId string) Scope {
	return Scope("conversation:" + conversationId)
}

func UserScope(userId string) Scope {
	return Scope("user:" + userId)
}

// Event is the envelope for everything a scope can push. Exactly one of
// the pointer fields is set.
type Event struct {
	Scope     Scope     `json:"scope,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	MessageCreated      *MessageCreated      `json:"message_created,omitempty"`
	MessageUpdated      *MessageUpdated      `json:"message_updated,omitempty"`
	PresenceSnapshot    *PresenceSnapshot    `json:"presence_snapshot,omitempty"`
	Presence            *Presence            `json:"presence,omitempty"`
	Notification        *Notification        `json:"notification,omitempty"`
	ConversationCreated *ConversationCreated `json:"conversation_created,omitempty"`
	MembershipChange    *MembershipChange    `json:"membership_change,omitempty"`
}

type MessageCreated struct {
	Message types.Message `json:"message"`
}

type MessageUpdated struct {
	Message types.Message `json:"message"`
}

// PresenceSnapshot replaces the whole online set; pushed on (re)join of
// the presence scope.
type PresenceSnapshot struct {
	UserIds []string `json:"user_ids"`
}

type Presence struct {
	UserId  string `json:"user_id"`
	Present bool   `json:"present"`
}

// Notification announces activity in a conversation the user is not
// currently viewing.
type Notification struct {
	ConversationId string `json:"conversation_id"`
	SenderId       string `json:"sender_id"`
	Preview        string `json:"preview"`
	SeqId          int    `json:"seq_id,omitempty"`
}

type ConversationCreated struct {
	Conversation types.Conversation `json:"conversation"`
}

type MembershipChange struct {
	ConversationId string            `json:"conversation_id"`
	Participant    types.Participant `json:"participant"`
	Added          bool              `json:"added"`
}
