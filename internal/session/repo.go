package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// Repository persists sessions.
type Repository interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	// MarkClosed flips an open session to closed atomically. It returns
	// ErrAlreadyClosed when the row was no longer open.
	MarkClosed(ctx context.Context, id string, endAt time.Time) (Session, error)
	List(ctx context.Context, teacherID string, limit, offset int) ([]Session, error)
}
