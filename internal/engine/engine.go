package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tmurph/go-chatsync/internal/client"
	"github.com/tmurph/go-chatsync/internal/realtime"
	"github.com/tmurph/go-chatsync/internal/stats"
	"github.com/tmurph/go-chatsync/internal/types"
)

// Engine wires the four components together and owns the lifecycle of
// the always-on scopes (presence, personal notifications) and of the
// per-conversation synchronizer that comes and goes as the user opens
// and closes conversations.
type Engine struct {
	log    *log.Logger
	api    client.ChatAPI
	subr   realtime.Subscriber
	stats  stats.StatsProvider
	selfId string

	Presence  *PresenceTracker
	Directory *Directory
	Router    *NotificationRouter
	View      *ViewController

	mu          sync.Mutex
	current     *Synchronizer
	presenceSub realtime.Subscription
	notifSub    realtime.Subscription
	wg          sync.WaitGroup
}

func NewEngine(api client.ChatAPI, subr realtime.Subscriber, selfId string, logger *log.Logger, sp stats.StatsProvider) *Engine {
	for _, name := range []string{
		"MessagesSent",
		"MessagesFailed",
		"EventsReceived",
		"ActiveSubscriptions",
		"DirectoryRefreshes",
		"GapRefetches",
	} {
		sp.RegisterMetric(name)
	}

	e := &Engine{
		log:    logger,
		api:    api,
		subr:   subr,
		stats:  sp,
		selfId: selfId,
	}
	e.Presence = NewPresenceTracker()
	e.Directory = NewDirectory(api, selfId, logger, sp)
	e.View = NewViewController()
	e.Router = NewNotificationRouter(e.Directory, e, logger)

	return e
}

// Start loads the directory and joins the always-on scopes. A failed
// initial load is returned to the caller for retry.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Directory.Load(ctx); err != nil {
		return err
	}

	presenceSub, err := e.subr.Subscribe(ctx, realtime.PresenceScope)
	if err != nil {
		return &client.TransientError{Op: "Subscribe presence", Err: err}
	}
	// empty until the snapshot for this join arrives
	e.Presence.Reset()

	notifSub, err := e.subr.Subscribe(ctx, realtime.UserScope(e.selfId))
	if err != nil {
		presenceSub.Close()
		return &client.TransientError{Op: "Subscribe notifications", Err: err}
	}

	e.mu.Lock()
	e.presenceSub = presenceSub
	e.notifSub = notifSub
	e.mu.Unlock()

	e.wg.Add(2)
	go e.presenceLoop(presenceSub)
	go e.notificationLoop(notifSub)

	return nil
}

func (e *Engine) presenceLoop(sub realtime.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		e.stats.Incr("EventsReceived")
		switch {
		case ev.PresenceSnapshot != nil:
			e.Presence.OnJoinSnapshot(ev.PresenceSnapshot.UserIds)
		case ev.Presence != nil:
			if ev.Presence.Present {
				e.Presence.OnJoining(ev.Presence.UserId)
			} else {
				e.Presence.OnLeaving(ev.Presence.UserId)
			}
		}
	}
}

func (e *Engine) notificationLoop(sub realtime.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		e.stats.Incr("EventsReceived")
		switch {
		case ev.Notification != nil:
			e.Router.OnNotification(context.Background(), *ev.Notification, eventTime(ev))
		case ev.ConversationCreated != nil:
			e.Directory.OnConversationCreated(ev.ConversationCreated.Conversation)
		case ev.MembershipChange != nil:
			e.Directory.ApplyMembershipChange(ev.MembershipChange.ConversationId,
				ev.MembershipChange.Participant, ev.MembershipChange.Added)
		}
	}
}

func eventTime(ev realtime.Event) time.Time {
	if ev.Timestamp.IsZero() {
		return Now()
	}
	return ev.Timestamp
}

// OpenConversation activates a conversation, closing any previously
// open one first. Implements Navigator for the notification router.
func (e *Engine) OpenConversation(ctx context.Context, conversationId string) error {
	e.mu.Lock()
	if e.current != nil && e.current.ConversationId() == conversationId {
		e.mu.Unlock()
		return nil
	}
	prev := e.current
	e.current = nil
	e.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	s, err := OpenSynchronizer(ctx, e.api, e.subr, e.Directory, e.selfId, conversationId, e.log, e.stats)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.current = s
	e.mu.Unlock()

	if err := e.View.Transition(ScreenConversation, conversationId); err != nil {
		e.log.Printf("view transition: %v", err)
	}

	return nil
}

// CloseConversation deactivates the open conversation; in-flight sends
// keep reconciling in the background.
func (e *Engine) CloseConversation() {
	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.mu.Unlock()

	if cur == nil {
		return
	}
	cur.Close()

	if err := e.View.Transition(ScreenList, ""); err != nil {
		e.log.Printf("view transition: %v", err)
	}
}

func (e *Engine) synchronizer() (*Synchronizer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil, fmt.Errorf("no open conversation")
	}
	return e.current, nil
}

func (e *Engine) Send(ctx context.Context, body string, attachments []types.Attachment) (string, error) {
	s, err := e.synchronizer()
	if err != nil {
		return "", err
	}
	return s.Send(ctx, body, attachments)
}

func (e *Engine) MarkRead(ctx context.Context) error {
	s, err := e.synchronizer()
	if err != nil {
		return err
	}
	return s.MarkRead(ctx)
}

func (e *Engine) Messages() ([]types.Message, error) {
	s, err := e.synchronizer()
	if err != nil {
		return nil, err
	}
	return s.Messages(), nil
}

func (e *Engine) SendFailures() (<-chan SendFailure, error) {
	s, err := e.synchronizer()
	if err != nil {
		return nil, err
	}
	return s.Failures(), nil
}

func (e *Engine) IsOnline(participantId string) bool {
	return e.Presence.IsOnline(participantId)
}

func (e *Engine) CreateConversation(ctx context.Context, params client.CreateConversationParams) (types.Conversation, error) {
	conv, err := e.api.CreateConversation(ctx, params)
	if err != nil {
		return types.Conversation{}, err
	}
	e.Directory.OnConversationCreated(conv)
	return conv, nil
}

// AddParticipant and RemoveParticipant pass membership mutations
// through; a MembershipConflictError always reaches the caller.

func (e *Engine) AddParticipant(ctx context.Context, conversationId, participantId string) error {
	return e.api.AddParticipant(ctx, conversationId, participantId)
}

func (e *Engine) RemoveParticipant(ctx context.Context, conversationId, participantId string) error {
	return e.api.RemoveParticipant(ctx, conversationId, participantId)
}

// Shutdown closes the open conversation and the always-on scopes.
func (e *Engine) Shutdown() {
	e.CloseConversation()

	e.mu.Lock()
	presenceSub, notifSub := e.presenceSub, e.notifSub
	e.presenceSub, e.notifSub = nil, nil
	e.mu.Unlock()

	if presenceSub != nil {
		presenceSub.Close()
	}
	if notifSub != nil {
		notifSub.Close()
	}

	e.wg.Wait()
	e.Presence.Reset()
}
