package types

import (
	"strings"
	"time"
)

type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// MessageState is the local lifecycle of a message. A message enters the
// list as StatePending, becomes StateConfirmed once the server assigns it
// an id, or StateFailed when the send is rejected.
type MessageState string

const (
	StatePending   MessageState = "pending"
	StateConfirmed MessageState = "confirmed"
	StateFailed    MessageState = "failed"
)

// LocalIdPrefix namespaces client-assigned message ids so they can never
// collide with server-assigned ids.
const LocalIdPrefix = "local."

func IsLocalId(id string) bool {
	return strings.HasPrefix(id, LocalIdPrefix)
}

type Participant struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	CanManage   bool   `json:"can_manage,omitempty"`
}

type MessagePreview struct {
	SenderId string    `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

type Conversation struct {
	Id           string           `json:"id"`
	Kind         ConversationKind `json:"kind"`
	Name         string           `json:"name"`
	Avatar       string           `json:"avatar,omitempty"`
	Participants []Participant    `json:"participants,omitempty"`
	// SeqId is the highest server-issued message sequence number known
	// for this conversation.
	SeqId       int             `json:"seq_id"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DisplayName returns the name shown for the conversation. Direct
// conversations are named after the other participant.
func (c *Conversation) DisplayName(selfId string) string {
	if c.Kind == ConversationDirect {
		for _, p := range c.Participants {
			if p.Id != selfId {
				return p.DisplayName
			}
		}
	}
	return c.Name
}

// Peer returns the other participant of a direct conversation.
func (c *Conversation) Peer(selfId string) (Participant, bool) {
	if c.Kind != ConversationDirect {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.Id != selfId {
			return p, true
		}
	}
	return Participant{}, false
}

type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Href     string `json:"href"`
}

type Message struct {
	// Id is the server-assigned id, empty while the message is pending.
	Id string `json:"id,omitempty"`
	// LocalId is the client-assigned id used to correlate a pending
	// message with its confirmed counterpart. Empty for messages that
	// originated elsewhere.
	LocalId        string       `json:"local_id,omitempty"`
	ConversationId string       `json:"conversation_id"`
	SenderId       string       `json:"sender_id"`
	Body           string       `json:"body,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	SeqId          int          `json:"seq_id,omitempty"`
	State          MessageState `json:"state"`
	CreatedAt      time.Time    `json:"created_at"`
	DeliveredAt    *time.Time   `json:"delivered_at,omitempty"`
	ReadAt         *time.Time   `json:"read_at,omitempty"`
}

// Preview returns the denormalized summary of the message shown in the
// conversation directory.
func (m *Message) Preview() MessagePreview {
	body := m.Body
	if body == "" && len(m.Attachments) > 0 {
		body = m.Attachments[0].Name
	}
	return MessagePreview{
		SenderId: m.SenderId,
		Body:     body,
		SentAt:   m.CreatedAt,
	}
}
