package attendance

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when (session, student) already has a record.
var ErrDuplicate = errors.New("attendance already registered")

const uniqueViolation = "23505"

// Repository persists attendance records.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	Exists(ctx context.Context, sessionID, studentID string) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
	ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]Record, error)
}

const recordColumns = `id, session_id, student_id, timestamp, method, device_id, geo_lat, geo_lon`

// PGRepository persists attendance data in Postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// Insert writes a record; the unique_session_student constraint is reported
// as ErrDuplicate.
func (p *PGRepository) Insert(ctx context.Context, r Record) error {
	var lat, lon sql.NullFloat64
	if r.Geo != nil {
		lat = sql.NullFloat64{Float64: r.Geo.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: r.Geo.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendances (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.SessionID, r.StudentID, r.Timestamp, r.Method, r.DeviceID, lat, lon)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (p *PGRepository) Exists(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendances WHERE session_id = $1 AND student_id = $2)
	`, sessionID, studentID).Scan(&exists)
	return exists, err
}

func (p *PGRepository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendances
		WHERE session_id = $1
		ORDER BY timestamp
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (p *PGRepository) ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendances
		WHERE student_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`, studentID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var (
			r        Record
			deviceID sql.NullString
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.StudentID, &r.Timestamp, &r.Method, &deviceID, &lat, &lon); err != nil {
			return nil, err
		}
		if deviceID.Valid {
			r.DeviceID = &deviceID.String
		}
		if lat.Valid && lon.Valid {
			r.Geo = &GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

type pairKey struct{ session, student string }

// MemoryRepository keeps records in process with the same uniqueness rule as
// the table.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[pairKey]Record
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[pairKey]Record)}
}

func (m *MemoryRepository) Insert(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{r.SessionID, r.StudentID}
	if _, ok := m.records[k]; ok {
		return ErrDuplicate
	}
	m.records[k] = r
	return nil
}

func (m *MemoryRepository) Exists(_ context.Context, sessionID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[pairKey{sessionID, studentID}]
	return ok, nil
}

func (m *MemoryRepository) ListBySession(_ context.Context, sessionID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for k, r := range m.records {
		if k.session == sessionID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

func (m *MemoryRepository) ListByStudent(_ context.Context, studentID string, limit, offset int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for k, r := range m.records {
		if k.student == studentID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

// Len reports how many records are stored.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
