package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), uuid.New(), "test payload"))
	assert.NoError(t, n.PublishEvent(context.Background(), uuid.New(), EventFollowRequested, nil))
	assert.NoError(t, n.PublishBroadcast(context.Background(), "all"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("7b0f4a1e-8a51-4c8e-9b4e-2c1d8f3a6e10")
	channel := UserChannel(id)
	assert.Equal(t, "notifications:user:7b0f4a1e-8a51-4c8e-9b4e-2c1d8f3a6e10", channel)

	parsed, ok := ParseUserChannel(channel)
	assert.True(t, ok)
	assert.Equal(t, id, parsed)

	_, ok = ParseUserChannel("chat:conv:1")
	assert.False(t, ok)
}

func TestNotifier_PublishEventEnvelope(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	user := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan [2]string, 1)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		received <- [2]string{channel, payload}
	}))

	require.NoError(t, n.PublishEvent(ctx, user, EventFollowAccepted, map[string]string{"by": "bob"}))

	select {
	case msg := <-received:
		assert.Equal(t, UserChannel(user), msg[0])
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg[1]), &event))
		assert.Equal(t, EventFollowAccepted, event.Type)
		assert.False(t, event.CreatedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}
}
