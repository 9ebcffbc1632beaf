package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tmurph/go-chatsync/internal/client"
	"github.com/tmurph/go-chatsync/internal/stats"
	"github.com/tmurph/go-chatsync/internal/types"
)

// Directory owns the ordered conversation list: previews, unread counts
// and most-recently-active ordering. It is the canonical writer for
// every conversation except the one currently open, whose entry the
// active Synchronizer writes through UpdateOpen until the handoff is
// returned by OnConversationClosed.
type Directory struct {
	mu     sync.Mutex
	log    *log.Logger
	api    client.ChatAPI
	stats  stats.StatsProvider
	selfId string

	// ordered most-recently-active first
	conversations []*types.Conversation
	// openId is the conversation currently owned by a Synchronizer.
	// While set, external events for it neither bump unread counts nor
	// touch its preview.
	openId string
}

func NewDirectory(api client.ChatAPI, selfId string, logger *log.Logger, sp stats.StatsProvider) *Directory {
	return &Directory{
		log:    logger,
		api:    api,
		stats:  sp,
		selfId: selfId,
	}
}

// Load fetches the full conversation list, once per session start.
// Failures are returned to the caller as-is so a transient failure can
// be retried.
func (d *Directory) Load(ctx context.Context) error {
	convs, err := d.api.ListConversations(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.conversations = make([]*types.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		d.conversations[i] = &c
	}
	sort.SliceStable(d.conversations, func(i, j int) bool {
		return d.conversations[i].UpdatedAt.After(d.conversations[j].UpdatedAt)
	})

	// the open conversation's truth lives in the synchronizer
	if d.openId != "" {
		if c := d.lookup(d.openId); c != nil {
			c.UnreadCount = 0
		}
	}

	return nil
}

// Refresh refetches the list; used when an event references a
// conversation the directory has never seen.
func (d *Directory) Refresh(ctx context.Context) error {
	d.stats.Incr("DirectoryRefreshes")
	return d.Load(ctx)
}

// OnExternalEvent folds a pushed event for any conversation into the
// list: bump the preview, move it to the front and count one unread.
// Events for the currently open conversation are ignored here; the
// Synchronizer already accounts for them, and counting both ways is
// exactly the double-count bug this check exists to prevent.
func (d *Directory) OnExternalEvent(conversationId string, preview types.MessagePreview, timestamp time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conversationId == d.openId {
		return
	}

	c := d.lookup(conversationId)
	if c == nil {
		d.log.Printf("external event for unknown conversation %q", conversationId)
		return
	}

	c.LastMessage = &preview
	c.UpdatedAt = timestamp
	c.UnreadCount++
	d.moveToFront(c)
}

// Has reports whether the conversation is tracked.
func (d *Directory) Has(conversationId string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookup(conversationId) != nil
}

// OnConversationOpened hands the entry over to the opening
// Synchronizer: the unread count drops to zero and directory-side
// preview updates freeze until OnConversationClosed.
func (d *Directory) OnConversationOpened(conversationId string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.openId = conversationId
	if c := d.lookup(conversationId); c != nil {
		c.UnreadCount = 0
	}
}

// OnConversationClosed takes the entry back, applying the closing
// Synchronizer's final state.
func (d *Directory) OnConversationClosed(conversationId string, lastMessage *types.MessagePreview, seqId int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openId == conversationId {
		d.openId = ""
	}

	c := d.lookup(conversationId)
	if c == nil {
		return
	}

	if lastMessage != nil {
		c.LastMessage = lastMessage
		if lastMessage.SentAt.After(c.UpdatedAt) {
			c.UpdatedAt = lastMessage.SentAt
		}
	}
	if seqId > c.SeqId {
		c.SeqId = seqId
	}
	c.UnreadCount = 0
	d.moveToFront(c)
}

// UpdateOpen is the Synchronizer's write path for the conversation it
// owns: preview and ordering advance, the unread count stays zero.
func (d *Directory) UpdateOpen(conversationId string, preview types.MessagePreview, seqId int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.lookup(conversationId)
	if c == nil {
		return
	}

	c.LastMessage = &preview
	if preview.SentAt.After(c.UpdatedAt) {
		c.UpdatedAt = preview.SentAt
	}
	if seqId > c.SeqId {
		c.SeqId = seqId
	}
	c.UnreadCount = 0
	d.moveToFront(c)
}

// OnOwnMessage applies a confirmed message of the local user to a
// conversation that is no longer open, e.g. a send whose response
// arrived after the view was closed. Own messages never count as
// unread.
func (d *Directory) OnOwnMessage(conversationId string, preview types.MessagePreview) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conversationId == d.openId {
		return
	}

	c := d.lookup(conversationId)
	if c == nil {
		return
	}

	c.LastMessage = &preview
	if preview.SentAt.After(c.UpdatedAt) {
		c.UpdatedAt = preview.SentAt
	}
	d.moveToFront(c)
}

// OnConversationCreated inserts a new conversation at the front; used
// both for self-initiated creation and first contact from another user.
func (d *Directory) OnConversationCreated(conv types.Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookup(conv.Id) != nil {
		return
	}

	c := conv
	d.conversations = append([]*types.Conversation{&c}, d.conversations...)
}

// ApplyMembershipChange updates a conversation's participant set in
// place.
func (d *Directory) ApplyMembershipChange(conversationId string, p types.Participant, added bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.lookup(conversationId)
	if c == nil {
		return
	}

	for i, existing := range c.Participants {
		if existing.Id == p.Id {
			if added {
				c.Participants[i] = p
			} else {
				c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			}
			return
		}
	}
	if added {
		c.Participants = append(c.Participants, p)
	}
}

// Conversations returns a snapshot of the ordered list.
func (d *Directory) Conversations() []types.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]types.Conversation, len(d.conversations))
	for i, c := range d.conversations {
		out[i] = *c
	}
	return out
}

func (d *Directory) Get(conversationId string) (types.Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c := d.lookup(conversationId); c != nil {
		return *c, true
	}
	return types.Conversation{}, false
}

// Search is a pure read-side projection: case-insensitive substring
// match on the display name, preserving list order.
func (d *Directory) Search(query string) []types.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := strings.ToLower(query)
	var out []types.Conversation
	for _, c := range d.conversations {
		if strings.Contains(strings.ToLower(c.DisplayName(d.selfId)), q) {
			out = append(out, *c)
		}
	}
	return out
}

// lookup and moveToFront require d.mu to be held.

func (d *Directory) lookup(conversationId string) *types.Conversation {
	for _, c := range d.conversations {
		if c.Id == conversationId {
			return c
		}
	}
	return nil
}

func (d *Directory) moveToFront(c *types.Conversation) {
	for i, existing := range d.conversations {
		if existing == c {
			copy(d.conversations[1:i+1], d.conversations[:i])
			d.conversations[0] = c
			return
		}
	}
}
