package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tmurph/go-chatsync/internal/client"
	"github.com/tmurph/go-chatsync/internal/realtime"
	"github.com/tmurph/go-chatsync/internal/testutil"
	"github.com/tmurph/go-chatsync/internal/types"
)

type navigatorFunc func(ctx context.Context, conversationId string) error

func (f navigatorFunc) OpenConversation(ctx context.Context, conversationId string) error {
	return f(ctx, conversationId)
}

func Test_OnNotification(t *testing.T) {
	base := Now()

	t.Run("known conversation", func(t *testing.T) {
		api := &client.MockChatAPI{}
		dir := loadedDirectory(t, api, []types.Conversation{
			directConversation("c1", "alice", "Alice", base),
			directConversation("c7", "bob", "Bob", base.Add(-time.Minute)),
		}, "self")
		r := NewNotificationRouter(dir, nil, testutil.TestLogger(t))

		r.OnNotification(context.Background(), realtime.Notification{
			ConversationId: "c7",
			SenderId:       "bob",
			Preview:        "lunch?",
		}, base.Add(time.Second))

		convs := dir.Conversations()
		assert.Equal(t, "c7", convs[0].Id, "expected the notified conversation at the front")
		assert.Equal(t, 1, convs[0].UnreadCount)
		assert.Equal(t, "lunch?", convs[0].LastMessage.Body)

		// no directory refetch for a known conversation
		api.AssertNumberOfCalls(t, "ListConversations", 1)
	})

	t.Run("unknown conversation triggers refetch", func(t *testing.T) {
		api := &client.MockChatAPI{}
		dir := loadedDirectory(t, api, []types.Conversation{
			directConversation("c1", "alice", "Alice", base),
		}, "self")
		r := NewNotificationRouter(dir, nil, testutil.TestLogger(t))

		api.On("ListConversations", mock.Anything).Return([]types.Conversation{
			directConversation("c1", "alice", "Alice", base),
			directConversation("c9", "carol", "Carol", base.Add(time.Minute)),
		}, nil).Once()

		r.OnNotification(context.Background(), realtime.Notification{
			ConversationId: "c9",
			SenderId:       "carol",
			Preview:        "hello",
		}, base.Add(time.Second))

		assert.True(t, dir.Has("c9"), "expected the unknown conversation to appear after refetch")
		api.AssertExpectations(t)
	})

	t.Run("suppressed while activating", func(t *testing.T) {
		api := &client.MockChatAPI{}
		dir := loadedDirectory(t, api, []types.Conversation{
			directConversation("c1", "alice", "Alice", base),
		}, "self")

		var r *NotificationRouter
		nav := navigatorFunc(func(ctx context.Context, conversationId string) error {
			// a duplicate notification racing the open must not count
			r.OnNotification(ctx, realtime.Notification{
				ConversationId: conversationId,
				SenderId:       "alice",
				Preview:        "hi",
			}, base)
			return nil
		})
		r = NewNotificationRouter(dir, nav, testutil.TestLogger(t))

		err := r.OnUserActivatesNotification(context.Background(), realtime.Notification{
			ConversationId: "c1",
			SenderId:       "alice",
			Preview:        "hi",
		})
		assert.NoError(t, err)

		conv, _ := dir.Get("c1")
		assert.Equal(t, 0, conv.UnreadCount, "expected no unread counted during activation")
	})
}
