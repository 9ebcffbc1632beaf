package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tmurph/go-chatsync/internal/client"
	"github.com/tmurph/go-chatsync/internal/realtime"
	"github.com/tmurph/go-chatsync/internal/stats"
	"github.com/tmurph/go-chatsync/internal/testutil"
	"github.com/tmurph/go-chatsync/internal/types"
)

// fakeSubscription is a channel-backed realtime.Subscription.
type fakeSubscription struct {
	events chan realtime.Event
	once   sync.Once
}

func (s *fakeSubscription) Events() <-chan realtime.Event {
	return s.events
}

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

// fakeSubscriber hands out one fakeSubscription per scope and lets the
// test push events into it.
type fakeSubscriber struct {
	mu   sync.Mutex
	subs map[realtime.Scope]*fakeSubscription
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subs: make(map[realtime.Scope]*fakeSubscription)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, scope realtime.Scope) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &fakeSubscription{events: make(chan realtime.Event, 16)}
	f.subs[scope] = sub
	return sub, nil
}

func (f *fakeSubscriber) push(t *testing.T, scope realtime.Scope, ev realtime.Event) {
	t.Helper()

	f.mu.Lock()
	sub, ok := f.subs[scope]
	f.mu.Unlock()

	if !ok {
		t.Fatalf("no subscription for scope %q", scope)
	}
	sub.events <- ev
}

func (f *fakeSubscriber) subscribed(scope realtime.Scope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.subs[scope]
	return ok
}

func testStats() *stats.MockStatsUpdater {
	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.AnythingOfType("string")).Maybe()
	sp.On("Incr", mock.AnythingOfType("string")).Maybe()
	sp.On("Decr", mock.AnythingOfType("string")).Maybe()
	return sp
}

func loadedDirectory(t *testing.T, api *client.MockChatAPI, convs []types.Conversation, selfId string) *Directory {
	t.Helper()

	dir := NewDirectory(api, selfId, testutil.TestLogger(t), testStats())
	api.On("ListConversations", mock.Anything).Return(convs, nil).Once()
	err := dir.Load(context.Background())
	assert.NoError(t, err, "expected directory to load")
	return dir
}
