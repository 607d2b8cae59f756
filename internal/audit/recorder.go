package audit

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/metrics"
	"github.com/crisb2reis/Sistema-Escolar/internal/queue"
)

// Repository persists audit events.
type Repository interface {
	Insert(ctx context.Context, e Event) error
}

// PGRepository writes to audit_logs.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// Insert is idempotent on the event id so a redelivered message is harmless.
func (p *PGRepository) Insert(ctx context.Context, e Event) error {
	var details []byte
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = raw
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.ActorID, e.Action, details, e.CreatedAt)
	return err
}

// Recorder drains audit messages from a queue into a repository.
type Recorder struct {
	repo Repository
	log  logrus.FieldLogger
}

// NewRecorder wires a recorder.
func NewRecorder(repo Repository, log logrus.FieldLogger) *Recorder {
	return &Recorder{repo: repo, log: log}
}

// Run consumes until ctx is cancelled or the queue closes.
func (r *Recorder) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	r.log.Info("audit recorder started")
	for msg := range messages {
		r.Handle(ctx, msg)
	}
	r.log.Info("audit recorder stopped")
	return nil
}

// Handle persists a single message. Failures are logged and counted; the
// message is not retried.
func (r *Recorder) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != MessageType {
		metrics.AuditPersisted.WithLabelValues("skipped").Inc()
		return
	}
	var e Event
	if err := json.Unmarshal(msg.Body, &e); err != nil || e.ID == "" || e.Action == "" {
		metrics.AuditPersisted.WithLabelValues("malformed").Inc()
		r.log.WithError(err).Warn("dropping malformed audit message")
		return
	}
	if err := r.repo.Insert(ctx, e); err != nil {
		metrics.AuditPersisted.WithLabelValues("failed").Inc()
		r.log.WithFields(logrus.Fields{"event_id": e.ID, "action": e.Action}).WithError(err).Error("persist audit event")
		return
	}
	metrics.AuditPersisted.WithLabelValues("ok").Inc()
	r.log.WithFields(logrus.Fields{"event_id": e.ID, "action": e.Action}).Debug("audit event persisted")
}
