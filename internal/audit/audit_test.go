package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisb2reis/Sistema-Escolar/internal/logging"
	"github.com/crisb2reis/Sistema-Escolar/internal/metrics"
	"github.com/crisb2reis/Sistema-Escolar/internal/queue"
)

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("queue down") }

type memoryRepo struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memoryRepo) Insert(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memoryRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestEmitterStampsEvents(t *testing.T) {
	sink := &MemorySink{}
	em := NewEmitter(sink, logging.Discard())
	assert.True(t, em.Emit(context.Background(), "actor", ActionCheckIn, map[string]any{"session_id": "s"}))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, ActionCheckIn, events[0].Action)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestEmitterSwallowsSinkFailure(t *testing.T) {
	before := testutil.ToFloat64(metrics.AuditFailures.WithLabelValues(ActionCloseSession))
	em := NewEmitter(failingSink{}, logging.Discard())
	assert.False(t, em.Emit(context.Background(), "actor", ActionCloseSession, nil))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditFailures.WithLabelValues(ActionCloseSession)))
}

func TestQueueSinkToRecorder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(8)
	em := NewEmitter(NewQueueSink(q), logging.Discard())
	require.True(t, em.Emit(ctx, "teacher", ActionGenerateQRCode, map[string]any{"token_id": "t1"}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: MessageType, Body: json.RawMessage(`{}`)}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other", Body: json.RawMessage(`{}`)}))

	repo := &memoryRepo{}
	done := make(chan error, 1)
	go func() { done <- NewRecorder(repo, logging.Discard()).Run(ctx, q) }()

	require.Eventually(t, func() bool { return repo.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, ActionGenerateQRCode, repo.events[0].Action)
	assert.Equal(t, "t1", repo.events[0].Details["token_id"])
}

func TestRecorderCountsFailures(t *testing.T) {
	repo := &memoryRepo{err: errors.New("db down")}
	rec := NewRecorder(repo, logging.Discard())
	body, err := json.Marshal(Event{ID: "e1", ActorID: "a", Action: ActionCheckIn})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.AuditPersisted.WithLabelValues("failed"))
	rec.Handle(context.Background(), queue.Message{Type: MessageType, Body: body})
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditPersisted.WithLabelValues("failed")))
}
