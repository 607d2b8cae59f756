package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisb2reis/Sistema-Escolar/internal/logging"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "audit", Body: json.RawMessage(`{"a":1}`)}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, "audit", msg.Type)
	assert.JSONEq(t, `{"a":1}`, string(msg.Body))

	cancel()
	for range ch {
	}
}

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "test:queue", logging.Discard())
	q.wait = 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.LPush(ctx, "test:queue", "not json").Err())
	require.NoError(t, q.Publish(ctx, Message{Type: "audit", Body: json.RawMessage(`{"action":"check_in"}`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "audit", Body: json.RawMessage(`{"action":"close_session"}`)}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	first := receive(t, ch)
	second := receive(t, ch)
	assert.JSONEq(t, `{"action":"check_in"}`, string(first.Body))
	assert.JSONEq(t, `{"action":"close_session"}`, string(second.Body))
}
