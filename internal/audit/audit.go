// Package audit carries audit events from the API to the worker that persists
// them. Emission never fails a user request.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/metrics"
	"github.com/crisb2reis/Sistema-Escolar/internal/queue"
)

// Actions recorded by the attendance core.
const (
	ActionCreateSession    = "create_session"
	ActionCloseSession     = "close_session"
	ActionGenerateQRCode   = "generate_qrcode"
	ActionCheckIn          = "check_in"
	ActionManualAttendance = "manual_attendance"
)

// MessageType tags audit messages on the shared queue.
const MessageType = "audit"

// Event is one audit log entry.
type Event struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink accepts audit events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// QueueSink publishes events to a queue for the worker.
type QueueSink struct {
	q queue.Queue
}

// NewQueueSink wraps q.
func NewQueueSink(q queue.Queue) *QueueSink {
	return &QueueSink{q: q}
}

func (s *QueueSink) Emit(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.q.Publish(ctx, queue.Message{Type: MessageType, Body: body})
}

// MemorySink keeps events in process.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Emit(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Emitter stamps events and swallows sink failures after logging and
// counting them.
type Emitter struct {
	sink Sink
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewEmitter wires an emitter over sink.
func NewEmitter(sink Sink, log logrus.FieldLogger) *Emitter {
	return &Emitter{sink: sink, log: log, now: time.Now}
}

// Emit records action by actorID. It reports whether the sink accepted it.
func (e *Emitter) Emit(ctx context.Context, actorID, action string, details map[string]any) bool {
	ev := Event{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		CreatedAt: e.now().UTC(),
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		metrics.AuditFailures.WithLabelValues(action).Inc()
		e.log.WithFields(logrus.Fields{"action": action, "actor_id": actorID}).WithError(err).Error("audit emit failed")
		return false
	}
	return true
}
