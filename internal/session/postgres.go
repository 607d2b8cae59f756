package session

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const sessionColumns = `id, class_id, teacher_id, subject_id, start_at, end_at, status, created_at`

// PGRepository persists sessions in Postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) Create(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, class_id, teacher_id, subject_id, start_at, end_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.ClassID, s.TeacherID, s.SubjectID, s.StartAt, s.EndAt, s.Status, s.CreatedAt)
	return err
}

func (r *PGRepository) Get(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

func (r *PGRepository) MarkClosed(ctx context.Context, id string, endAt time.Time) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE sessions SET status = 'closed', end_at = $2
		WHERE id = $1 AND status = 'open'
		RETURNING `+sessionColumns, id, endAt)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either missing or already closed; tell them apart.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return Session{}, getErr
		}
		return Session{}, ErrAlreadyClosed
	}
	return s, err
}

func (r *PGRepository) List(ctx context.Context, teacherID string, limit, offset int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []any{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1`
		args = append(args, teacherID)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		s         Session
		subjectID sql.NullString
		endAt     sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.ClassID, &s.TeacherID, &subjectID, &s.StartAt, &endAt, &s.Status, &s.CreatedAt); err != nil {
		return Session{}, err
	}
	if subjectID.Valid {
		s.SubjectID = &subjectID.String
	}
	if endAt.Valid {
		t := endAt.Time
		s.EndAt = &t
	}
	return s, nil
}
