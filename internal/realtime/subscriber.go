package realtime

import "context"

// Subscription is one live scope. Events arrive in server order on a
// single channel; the channel is closed when the subscription ends.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Subscriber is the subscribe/unsubscribe primitive the core consumes.
// Both the websocket and redis transports implement it; the engine
// never sees which one is wired.
type Subscriber interface {
	Subscribe(ctx context.Context, scope Scope) (Subscription, error)
}
