package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tmurph/go-chatsync/internal/realtime"
	"github.com/tmurph/go-chatsync/internal/types"
)

// Navigator is how the router requests a screen change; implemented by
// the engine on top of the view controller.
type Navigator interface {
	OpenConversation(ctx context.Context, conversationId string) error
}

// NotificationRouter translates events on the personal notification
// scope into directory updates and, on user action, into a navigation
// request.
type NotificationRouter struct {
	log *log.Logger
	dir *Directory
	nav Navigator

	mu sync.Mutex
	// activating holds conversations currently being opened from a
	// notification; their events are folded into the open and must not
	// re-increment directory counters.
	activating map[string]struct{}
}

func NewNotificationRouter(dir *Directory, nav Navigator, logger *log.Logger) *NotificationRouter {
	return &NotificationRouter{
		log:        logger,
		dir:        dir,
		nav:        nav,
		activating: make(map[string]struct{}),
	}
}

// OnNotification folds a notification into the directory. A known
// conversation gets the usual preview/unread update; an unknown one
// triggers a full refetch instead of synthesizing an entry from the
// notification's partial fields.
func (r *NotificationRouter) OnNotification(ctx context.Context, n realtime.Notification, arrivedAt time.Time) {
	if r.isActivating(n.ConversationId) {
		return
	}

	if !r.dir.Has(n.ConversationId) {
		if err := r.dir.Refresh(ctx); err != nil {
			r.log.Printf("directory refresh for conversation %q: %v", n.ConversationId, err)
		}
		return
	}

	r.dir.OnExternalEvent(n.ConversationId, types.MessagePreview{
		SenderId: n.SenderId,
		Body:     n.Preview,
		SentAt:   arrivedAt,
	}, arrivedAt)
}

// OnUserActivatesNotification opens the notification's conversation.
// While the open is in flight, further notifications for it are
// suppressed; once open, the directory's own open-conversation check
// takes over.
func (r *NotificationRouter) OnUserActivatesNotification(ctx context.Context, n realtime.Notification) error {
	r.mu.Lock()
	r.activating[n.ConversationId] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.activating, n.ConversationId)
		r.mu.Unlock()
	}()

	return r.nav.OpenConversation(ctx, n.ConversationId)
}

func (r *NotificationRouter) isActivating(conversationId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.activating[conversationId]
	return ok
}
