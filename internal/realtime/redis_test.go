package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tmurph/go-chatsync/internal/testutil"
)

func Test_NewRedisSubscriberUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisSubscriber(ctx, "127.0.0.1:1", testutil.TestLogger(t))
	assert.Error(t, err, "expected the dial to fail fast when redis is unreachable")
}
