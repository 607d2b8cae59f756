// Package directory answers the class and student lookups the attendance core
// needs from the school records it does not own.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrStudentNotFound is returned when a user has no student profile.
var ErrStudentNotFound = errors.New("student profile not found")

// Postgres reads the collaborator tables.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed directory.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// ClassExists reports whether a class id is known.
func (p *Postgres) ClassExists(ctx context.Context, classID string) (bool, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return false, nil
	}
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1)`, classID).Scan(&exists)
	return exists, err
}

// ClassHasSubject reports whether the subject is taught in the class.
func (p *Postgres) ClassHasSubject(ctx context.Context, classID, subjectID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM class_subjects WHERE class_id = $1 AND subject_id = $2)
	`, classID, subjectID).Scan(&exists)
	return exists, err
}

// StudentClass returns the class the student user is enrolled in. An empty
// string means the profile exists without a class.
func (p *Postgres) StudentClass(ctx context.Context, userID string) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", ErrStudentNotFound
	}
	var classID sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT class_id FROM students WHERE user_id = $1`, userID).Scan(&classID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrStudentNotFound
	}
	if err != nil {
		return "", err
	}
	return classID.String, nil
}

// Memory is an in-process directory for tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	classes  map[string]map[string]bool
	students map[string]string
}

// NewMemory creates an empty directory.
func NewMemory() *Memory {
	return &Memory{classes: make(map[string]map[string]bool), students: make(map[string]string)}
}

// AddClass registers a class and the subjects taught in it.
func (m *Memory) AddClass(classID string, subjectIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subjects := m.classes[classID]
	if subjects == nil {
		subjects = make(map[string]bool)
		m.classes[classID] = subjects
	}
	for _, s := range subjectIDs {
		subjects[s] = true
	}
}

// Enroll places a student user in a class.
func (m *Memory) Enroll(userID, classID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[userID] = classID
}

func (m *Memory) ClassExists(_ context.Context, classID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.classes[classID]
	return ok, nil
}

func (m *Memory) ClassHasSubject(_ context.Context, classID, subjectID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.classes[classID][subjectID], nil
}

func (m *Memory) StudentClass(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	classID, ok := m.students[userID]
	if !ok {
		return "", ErrStudentNotFound
	}
	return classID, nil
}
