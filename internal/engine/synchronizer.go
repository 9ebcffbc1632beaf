package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/teris-io/shortid"
	"github.com/tmurph/go-chatsync/internal/client"
	"github.com/tmurph/go-chatsync/internal/realtime"
	"github.com/tmurph/go-chatsync/internal/stats"
	"github.com/tmurph/go-chatsync/internal/types"
)

const historyLimit = 200

// SendFailure carries the compose state of a rejected send back to the
// caller so retry is possible. The failed entry itself is removed from
// the visible list.
type SendFailure struct {
	LocalId     string
	Body        string
	Attachments []types.Attachment
	Err         error
}

// Synchronizer owns the message list and read state of the one open
// conversation. It merges fetched history, pushed events and local
// optimistic sends into a single ordered list with at-most-once
// semantics: a pending message and its confirmed counterpart correlate
// by client-assigned id and are swapped in place, never duplicated.
type Synchronizer struct {
	log    *log.Logger
	api    client.ChatAPI
	stats  stats.StatsProvider
	dir    *Directory
	selfId string

	conversationId string
	sub            realtime.Subscription

	mu       sync.Mutex
	messages []*types.Message
	// seqId is the highest server sequence number applied; an event
	// jumping past seqId+1 means pushed events were lost and the
	// history must be refetched.
	seqId int
	// lastReadSeq is the highest sequence acknowledged as read; MarkRead
	// is a no-op unless a higher sequence exists.
	lastReadSeq int
	closed      bool

	failures chan SendFailure
	done     chan struct{}
}

// OpenSynchronizer activates a conversation: it subscribes to the
// conversation's event scope first, then fetches history, so any event
// pushed after the subscription is either merged into the fetched list
// (deduplicated by server id) or applied after it. It then acknowledges
// whatever is still unread.
func OpenSynchronizer(ctx context.Context, api client.ChatAPI, subr realtime.Subscriber, dir *Directory,
	selfId, conversationId string, logger *log.Logger, sp stats.StatsProvider) (*Synchronizer, error) {

	sub, err := subr.Subscribe(ctx, realtime.ConversationScope(conversationId))
	if err != nil {
		return nil, &client.TransientError{Op: "Subscribe", Err: err}
	}

	history, err := api.GetMessages(ctx, conversationId, 0, historyLimit)
	if err != nil {
		sub.Close()
		return nil, err
	}

	s := &Synchronizer{
		log:            logger,
		api:            api,
		stats:          sp,
		dir:            dir,
		selfId:         selfId,
		conversationId: conversationId,
		sub:            sub,
		failures:       make(chan SendFailure, 16),
		done:           make(chan struct{}),
	}
	s.applyHistory(history)

	dir.OnConversationOpened(conversationId)
	sp.Incr("ActiveSubscriptions")

	if err := s.MarkRead(ctx); err != nil {
		s.log.Printf("mark read on open of %q: %v", conversationId, err)
	}

	go s.run()

	return s, nil
}

func (s *Synchronizer) run() {
	defer close(s.done)
	for ev := range s.sub.Events() {
		s.stats.Incr("EventsReceived")
		s.handleEvent(ev)
	}
}

func (s *Synchronizer) handleEvent(ev realtime.Event) {
	switch {
	case ev.MessageCreated != nil:
		if s.applyMessageCreated(ev.MessageCreated.Message) {
			// the conversation is the open one, so a newly arrived
			// peer message is read immediately
			if err := s.MarkRead(context.Background()); err != nil {
				s.log.Printf("mark read on message in %q: %v", s.conversationId, err)
			}
		}
	case ev.MessageUpdated != nil:
		s.applyMessageUpdated(ev.MessageUpdated.Message)
	case ev.MembershipChange != nil:
		s.dir.ApplyMembershipChange(ev.MembershipChange.ConversationId,
			ev.MembershipChange.Participant, ev.MembershipChange.Added)
	}
}

func (s *Synchronizer) applyHistory(history []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyHistoryLocked(history)
}

// applyMessageCreated merges a pushed message into the list. Reports
// whether a peer message was newly applied, i.e. there is something to
// acknowledge.
func (s *Synchronizer) applyMessageCreated(msg types.Message) bool {
	s.mu.Lock()

	if s.seqId > 0 && msg.SeqId > s.seqId+1 {
		have := s.seqId
		s.mu.Unlock()
		s.log.Printf("refetching %q: %v", s.conversationId,
			&client.StaleSubscriptionError{ConversationId: s.conversationId, HaveSeq: have, GotSeq: msg.SeqId})
		s.refetch(context.Background())
		return msg.SenderId != s.selfId
	}

	applied := s.mergeConfirmedLocked(msg)
	var preview types.MessagePreview
	if applied {
		preview = msg.Preview()
	}
	s.mu.Unlock()

	if applied {
		s.dir.UpdateOpen(s.conversationId, preview, msg.SeqId)
	}
	return applied && msg.SenderId != s.selfId
}

// mergeConfirmedLocked inserts or swaps a confirmed message; requires
// s.mu. Whichever of the send response and the pushed echo arrives
// first performs the pending swap; the loser is dropped by server id.
func (s *Synchronizer) mergeConfirmedLocked(msg types.Message) bool {
	if msg.Id != "" && s.indexOfServerIdLocked(msg.Id) >= 0 {
		return false
	}

	msg.State = types.StateConfirmed

	if msg.LocalId != "" {
		if i := s.indexOfLocalIdLocked(msg.LocalId); i >= 0 && s.messages[i].State == types.StatePending {
			// in-place swap keeps the rendered position stable
			existing := s.messages[i]
			msg.CreatedAt = existing.CreatedAt
			s.messages[i] = &msg
			s.advanceSeqLocked(msg.SeqId)
			return true
		}
	}

	s.insertOrderedLocked(&msg)
	s.advanceSeqLocked(msg.SeqId)
	return true
}

// insertOrderedLocked places msg after every message created at or
// before it, so ties resolve by arrival order and nothing reorders.
func (s *Synchronizer) insertOrderedLocked(msg *types.Message) {
	i := len(s.messages)
	for i > 0 && s.messages[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	s.messages = append(s.messages, nil)
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
}

func (s *Synchronizer) advanceSeqLocked(seqId int) {
	if seqId > s.seqId {
		s.seqId = seqId
	}
}

// applyMessageUpdated replaces the message with that server id in
// place; used for delivered/read timestamps propagated from peers.
// Updates for messages the replica has not fetched are dropped rather
// than fabricating a list entry from a partial event.
func (s *Synchronizer) applyMessageUpdated(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfServerIdLocked(msg.Id)
	if i < 0 {
		return
	}

	existing := s.messages[i]
	// delivered_at and read_at only ever advance; a stale event must
	// not revert them to null
	if msg.DeliveredAt == nil {
		msg.DeliveredAt = existing.DeliveredAt
	}
	if msg.ReadAt == nil {
		msg.ReadAt = existing.ReadAt
	}
	msg.State = types.StateConfirmed
	msg.CreatedAt = existing.CreatedAt
	msg.SeqId = existing.SeqId
	msg.LocalId = existing.LocalId
	s.messages[i] = &msg
}

// Send appends a pending message immediately and issues the write in
// the background. The returned local id identifies the optimistic
// entry. A rejected send is removed from the list and surfaced on
// Failures; a response arriving after Close still confirms the
// off-screen entry.
func (s *Synchronizer) Send(ctx context.Context, body string, attachments []types.Attachment) (string, error) {
	sid, err := shortid.Generate()
	if err != nil {
		return "", err
	}
	localId := types.LocalIdPrefix + sid

	msg := &types.Message{
		LocalId:        localId,
		ConversationId: s.conversationId,
		SenderId:       s.selfId,
		Body:           body,
		Attachments:    attachments,
		State:          types.StatePending,
		CreatedAt:      Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	go s.submit(ctx, localId, body, attachments)

	return localId, nil
}

func (s *Synchronizer) submit(ctx context.Context, localId, body string, attachments []types.Attachment) {
	confirmed, err := s.api.SendMessage(ctx, client.SendMessageParams{
		ConversationId: s.conversationId,
		LocalId:        localId,
		Body:           body,
		Attachments:    attachments,
	})
	if err != nil {
		s.stats.Incr("MessagesFailed")
		s.fail(localId, body, attachments, err)
		return
	}

	s.stats.Incr("MessagesSent")
	confirmed.LocalId = localId

	s.mu.Lock()
	applied := s.mergeConfirmedLocked(confirmed)
	closed := s.closed
	s.mu.Unlock()

	if !applied {
		return
	}
	if closed {
		s.dir.OnOwnMessage(s.conversationId, confirmed.Preview())
	} else {
		s.dir.UpdateOpen(s.conversationId, confirmed.Preview(), confirmed.SeqId)
	}
}

func (s *Synchronizer) fail(localId, body string, attachments []types.Attachment, err error) {
	s.mu.Lock()
	if i := s.indexOfLocalIdLocked(localId); i >= 0 && s.messages[i].State == types.StatePending {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
	s.mu.Unlock()

	s.log.Printf("send %q in conversation %q: %v", localId, s.conversationId, err)

	select {
	case s.failures <- SendFailure{LocalId: localId, Body: body, Attachments: attachments, Err: err}:
	default:
		s.log.Println("failure channel full, dropping send failure")
	}
}

// Failures yields the compose state of rejected sends.
func (s *Synchronizer) Failures() <-chan SendFailure {
	return s.failures
}

// MarkRead acknowledges everything currently loaded. Idempotent: with
// no new messages since the last call it makes no server call and
// changes no state. A transient failure of the receipt submission is
// logged and dropped; losing a read receipt is cosmetic and the next
// call resubmits the latest sequence anyway.
func (s *Synchronizer) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	if s.seqId <= s.lastReadSeq {
		s.mu.Unlock()
		return nil
	}

	now := Now()
	for _, m := range s.messages {
		if m.State == types.StateConfirmed && m.ReadAt == nil && m.SenderId != s.selfId {
			t := now
			m.ReadAt = &t
		}
	}
	s.lastReadSeq = s.seqId
	ackSeq := s.seqId
	s.mu.Unlock()

	if err := s.api.SubmitReadReceipt(ctx, s.conversationId, ackSeq); err != nil {
		if client.IsTransient(err) {
			s.log.Printf("read receipt for %q dropped: %v", s.conversationId, err)
			return nil
		}
		return err
	}
	return nil
}

// refetch reloads the full history after a sequence gap, keeping any
// still-pending local sends in place.
func (s *Synchronizer) refetch(ctx context.Context) {
	s.stats.Incr("GapRefetches")

	history, err := s.api.GetMessages(ctx, s.conversationId, 0, historyLimit)
	if err != nil {
		s.log.Printf("refetch %q: %v", s.conversationId, err)
		return
	}

	s.mu.Lock()

	var pending []*types.Message
	for _, m := range s.messages {
		if m.State == types.StatePending {
			pending = append(pending, m)
		}
	}

	prevRead := s.lastReadSeq
	s.applyHistoryLocked(history)
	if prevRead > s.lastReadSeq {
		s.lastReadSeq = prevRead
	}
	for _, m := range pending {
		s.insertOrderedLocked(m)
	}

	var preview types.MessagePreview
	var seqId int
	havePreview := false
	if n := len(s.messages); n > 0 {
		last := s.messages[n-1]
		if last.State == types.StateConfirmed {
			preview = last.Preview()
			seqId = s.seqId
			havePreview = true
		}
	}
	s.mu.Unlock()

	if havePreview {
		s.dir.UpdateOpen(s.conversationId, preview, seqId)
	}
}

func (s *Synchronizer) applyHistoryLocked(history []types.Message) {
	s.messages = make([]*types.Message, len(history))
	for i := range history {
		m := history[i]
		if m.State == "" {
			m.State = types.StateConfirmed
		}
		s.messages[i] = &m
	}
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})

	s.seqId = 0
	s.lastReadSeq = 0
	for _, m := range s.messages {
		if m.SeqId > s.seqId {
			s.seqId = m.SeqId
		}
		// messages already read, and own messages, need no new receipt
		if (m.ReadAt != nil || m.SenderId == s.selfId) && m.SeqId > s.lastReadSeq {
			s.lastReadSeq = m.SeqId
		}
	}
}

// Messages returns a snapshot of the ordered list.
func (s *Synchronizer) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

func (s *Synchronizer) ConversationId() string {
	return s.conversationId
}

// Close unsubscribes from the conversation scope and flushes the final
// state back to the directory, returning ownership of the entry.
// In-flight sends keep reconciling into the off-screen list.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	var preview *types.MessagePreview
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].State == types.StateConfirmed {
			p := s.messages[i].Preview()
			preview = &p
			break
		}
	}
	seqId := s.seqId
	s.mu.Unlock()

	s.sub.Close()
	<-s.done
	s.stats.Decr("ActiveSubscriptions")

	s.dir.OnConversationClosed(s.conversationId, preview, seqId)
}

func (s *Synchronizer) indexOfServerIdLocked(id string) int {
	for i, m := range s.messages {
		if m.Id == id && m.Id != "" {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) indexOfLocalIdLocked(localId string) int {
	for i, m := range s.messages {
		if m.LocalId == localId {
			return i
		}
	}
	return -1
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
