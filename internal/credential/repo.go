package credential

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when no credential matches.
	ErrNotFound = errors.New("credential not found")
	// ErrNotActive is returned when flipping a credential that is no longer active.
	ErrNotActive = errors.New("credential not active")
)

// Repository is the durable credential store.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	FindByNonce(ctx context.Context, nonce, sessionID string) (Record, error)
	// MarkUsed flips ACTIVE to USED; any other stored state yields ErrNotActive.
	MarkUsed(ctx context.Context, id string) error
}

// PGRepository persists credentials in Postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (p *PGRepository) Insert(ctx context.Context, r Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO qrcode_tokens (id, session_id, token_id, jwt_payload, nonce, created_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.SessionID, r.TokenID, r.Payload, r.Nonce, r.CreatedAt, r.ExpiresAt, r.Status)
	return err
}

func (p *PGRepository) FindByNonce(ctx context.Context, nonce, sessionID string) (Record, error) {
	var r Record
	err := p.db.QueryRowContext(ctx, `
		SELECT id, session_id, token_id, jwt_payload, nonce, created_at, expires_at, status
		FROM qrcode_tokens
		WHERE nonce = $1 AND session_id = $2
	`, nonce, sessionID).Scan(&r.ID, &r.SessionID, &r.TokenID, &r.Payload, &r.Nonce, &r.CreatedAt, &r.ExpiresAt, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (p *PGRepository) MarkUsed(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE qrcode_tokens SET status = 'used' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotActive
	}
	return nil
}

// MemoryRepository keeps credentials in process and enforces the same unique
// constraints as the table.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]Record
	nonces  map[string]string
	tokenID map[string]string
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]Record),
		nonces:  make(map[string]string),
		tokenID: make(map[string]string),
	}
}

// ErrDuplicate mirrors a unique-constraint violation in the memory store.
var ErrDuplicate = errors.New("duplicate credential nonce or token id")

func (m *MemoryRepository) Insert(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nonces[r.Nonce]; ok {
		return ErrDuplicate
	}
	if _, ok := m.tokenID[r.TokenID]; ok {
		return ErrDuplicate
	}
	m.byID[r.ID] = r
	m.nonces[r.Nonce] = r.ID
	m.tokenID[r.TokenID] = r.ID
	return nil
}

func (m *MemoryRepository) FindByNonce(_ context.Context, nonce, sessionID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.nonces[nonce]
	if !ok {
		return Record{}, ErrNotFound
	}
	r := m.byID[id]
	if r.SessionID != sessionID {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepository) MarkUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok || r.Status != StatusActive {
		return ErrNotActive
	}
	r.Status = StatusUsed
	m.byID[id] = r
	return nil
}

// Len reports how many credentials exist.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Get returns a credential by id.
func (m *MemoryRepository) Get(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	return r, ok
}
