// Package session owns the open/closed lifecycle of attendance sessions.
package session

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a session.
type Status int

const (
	StatusOpen Status = iota + 1
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseStatus converts the stored form of a status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "open":
		return StatusOpen, nil
	case "closed":
		return StatusClosed, nil
	default:
		return 0, fmt.Errorf("unknown session status %q", v)
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if s != StatusOpen && s != StatusClosed {
		return nil, fmt.Errorf("invalid session status %d", int(s))
	}
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into session status", src)
	}
}

// ErrAlreadyClosed is returned when closing a session twice.
var ErrAlreadyClosed = errors.New("session already closed")

// Session is one scheduled class meeting.
type Session struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	TeacherID string     `json:"teacher_id"`
	SubjectID *string    `json:"subject_id,omitempty"`
	StartAt   time.Time  `json:"start_at"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Open reports whether the session still accepts credentials.
func (s Session) Open() bool { return s.Status == StatusOpen }

// Close transitions OPEN to CLOSED. It is the only legal transition.
func (s Session) Close(at time.Time) (Session, error) {
	switch s.Status {
	case StatusOpen:
		end := at
		s.Status = StatusClosed
		s.EndAt = &end
		return s, nil
	case StatusClosed:
		return s, ErrAlreadyClosed
	default:
		return s, fmt.Errorf("session %s has invalid status %d", s.ID, int(s.Status))
	}
}
