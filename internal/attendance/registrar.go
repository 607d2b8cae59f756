package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
	"github.com/crisb2reis/Sistema-Escolar/internal/lock"
)

// DefaultLockTTL bounds how long a crashed holder can block a student.
const DefaultLockTTL = 5 * time.Second

// Entry is a presence to register.
type Entry struct {
	SessionID string
	StudentID string
	Method    Method
	DeviceID  *string
	Geo       *GeoPoint
}

// LockKey is the per (session, student) lock name.
func LockKey(sessionID, studentID string) string {
	return "attendance_lock:" + sessionID + ":" + studentID
}

// Registrar records presences, serializing concurrent attempts for the same
// student in the same session.
type Registrar struct {
	repo    Repository
	locker  lock.Locker
	lockTTL time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewRegistrar wires a registrar. A non-positive lockTTL uses DefaultLockTTL.
func NewRegistrar(repo Repository, locker lock.Locker, lockTTL time.Duration, log logrus.FieldLogger) *Registrar {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Registrar{repo: repo, locker: locker, lockTTL: lockTTL, log: log, now: time.Now}
}

// WithClock swaps the time source.
func (r *Registrar) WithClock(now func() time.Time) *Registrar {
	r.now = now
	return r
}

// Register writes one presence. A concurrent attempt holding the lock fails
// fast with CONFLICT instead of waiting.
func (r *Registrar) Register(ctx context.Context, e Entry) (Record, error) {
	key := LockKey(e.SessionID, e.StudentID)
	lease, ok, err := r.locker.Acquire(ctx, key, r.lockTTL)
	if err != nil {
		return Record{}, apperr.Infra("acquire attendance lock", err)
	}
	if !ok {
		return Record{}, apperr.Conflict("another check-in is in progress")
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			r.log.WithField("lock", key).WithError(err).Warn("release attendance lock")
		}
	}()

	exists, err := r.repo.Exists(ctx, e.SessionID, e.StudentID)
	if err != nil {
		return Record{}, apperr.Infra("check attendance", err)
	}
	if exists {
		return Record{}, apperr.Conflict("attendance already registered")
	}

	rec := Record{
		ID:        uuid.NewString(),
		SessionID: e.SessionID,
		StudentID: e.StudentID,
		Timestamp: r.now().UTC(),
		Method:    e.Method,
		DeviceID:  e.DeviceID,
		Geo:       e.Geo,
	}
	err = r.repo.Insert(ctx, rec)
	switch {
	case errors.Is(err, ErrDuplicate):
		return Record{}, apperr.Conflict("attendance already registered")
	case err != nil:
		return Record{}, apperr.Infra("insert attendance", err)
	}
	return rec, nil
}

// Exists reports whether the student already has a presence in the session.
func (r *Registrar) Exists(ctx context.Context, sessionID, studentID string) (bool, error) {
	ok, err := r.repo.Exists(ctx, sessionID, studentID)
	if err != nil {
		return false, apperr.Infra("check attendance", err)
	}
	return ok, nil
}

// ListBySession returns the presences of a session in registration order.
func (r *Registrar) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	res, err := r.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Infra("list attendances", err)
	}
	return res, nil
}

// ListByStudent returns a student's presences, newest first.
func (r *Registrar) ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	res, err := r.repo.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, apperr.Infra("list attendances", err)
	}
	return res, nil
}
