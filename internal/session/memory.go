package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps sessions in process; used by tests and local runs.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) MarkClosed(ctx context.Context, id string, endAt time.Time) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	closed, err := s.Close(endAt)
	if err != nil {
		return Session{}, err
	}
	r.sessions[id] = closed
	return closed, nil
}

func (r *MemoryRepository) List(ctx context.Context, teacherID string, limit, offset int) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Session
	for _, s := range r.sessions {
		if teacherID == "" || s.TeacherID == teacherID {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}
