package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
)

var validate = validator.New()

// Catalog answers the class lookups the registry needs from the directory.
type Catalog interface {
	ClassExists(ctx context.Context, classID string) (bool, error)
	ClassHasSubject(ctx context.Context, classID, subjectID string) (bool, error)
}

// OpenParams describes a new session.
type OpenParams struct {
	ClassID   string     `validate:"required,uuid"`
	SubjectID *string    `validate:"omitempty,uuid"`
	StartAt   *time.Time `validate:"omitempty"`
}

// Registry is the gate every other component consults before touching a
// session. It writes nothing but the session's own status and timestamps.
type Registry struct {
	repo    Repository
	catalog Catalog
	now     func() time.Time
}

// NewRegistry creates a registry.
func NewRegistry(repo Repository, catalog Catalog) *Registry {
	return &Registry{repo: repo, catalog: catalog, now: time.Now}
}

// WithClock swaps the time source.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Open creates a session in the OPEN state owned by the acting teacher.
func (r *Registry) Open(ctx context.Context, actor auth.Identity, p OpenParams) (Session, error) {
	if !actor.Staff() {
		return Session{}, apperr.Forbidden("only teachers and administrators can open sessions")
	}
	if err := validate.Struct(p); err != nil {
		return Session{}, apperr.Wrap(apperr.KindValidation, "invalid session parameters", err)
	}

	exists, err := r.catalog.ClassExists(ctx, p.ClassID)
	if err != nil {
		return Session{}, apperr.Infra("lookup class", err)
	}
	if !exists {
		return Session{}, apperr.NotFound("class not found")
	}
	if p.SubjectID != nil {
		linked, err := r.catalog.ClassHasSubject(ctx, p.ClassID, *p.SubjectID)
		if err != nil {
			return Session{}, apperr.Infra("lookup class subject", err)
		}
		if !linked {
			return Session{}, apperr.Validation("subject is not taught in this class")
		}
	}

	now := r.now().UTC()
	start := now
	if p.StartAt != nil {
		start = p.StartAt.UTC()
	}
	s := Session{
		ID:        uuid.NewString(),
		ClassID:   p.ClassID,
		TeacherID: actor.ID,
		SubjectID: p.SubjectID,
		StartAt:   start,
		Status:    StatusOpen,
		CreatedAt: now,
	}
	if err := r.repo.Create(ctx, s); err != nil {
		return Session{}, apperr.Infra("create session", err)
	}
	return s, nil
}

// Close ends a session. Only the owning teacher or an administrator may close,
// and a session closes exactly once.
func (r *Registry) Close(ctx context.Context, id string, actor auth.Identity) (Session, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !actor.CanManage(s.TeacherID) {
		return Session{}, apperr.Forbidden("not authorized to close this session")
	}
	if !s.Open() {
		return Session{}, apperr.State("session already closed")
	}

	closed, err := r.repo.MarkClosed(ctx, id, r.now().UTC())
	switch {
	case errors.Is(err, ErrAlreadyClosed):
		return Session{}, apperr.State("session already closed")
	case errors.Is(err, ErrNotFound):
		return Session{}, apperr.NotFound("session not found")
	case err != nil:
		return Session{}, apperr.Infra("close session", err)
	}
	return closed, nil
}

// RequireOpen returns the session if it exists and is OPEN.
func (r *Registry) RequireOpen(ctx context.Context, id string) (Session, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !s.Open() {
		return Session{}, apperr.State("session is not open")
	}
	return s, nil
}

// Get looks a session up by id.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, apperr.NotFound("session not found")
	}
	s, err := r.repo.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return Session{}, apperr.NotFound("session not found")
	case err != nil:
		return Session{}, apperr.Infra("load session", err)
	}
	return s, nil
}

// List returns every session for administrators and the caller's own
// sessions for teachers, newest first.
func (r *Registry) List(ctx context.Context, actor auth.Identity, limit, offset int) ([]Session, error) {
	var teacherID string
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleTeacher:
		teacherID = actor.ID
	default:
		return nil, apperr.Forbidden("only teachers and administrators can list sessions")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	sessions, err := r.repo.List(ctx, teacherID, limit, offset)
	if err != nil {
		return nil, apperr.Infra("list sessions", err)
	}
	return sessions, nil
}
