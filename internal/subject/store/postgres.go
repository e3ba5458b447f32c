package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Postgres persists subjects.
//
// Schema:
//
//	CREATE TABLE subjects (
//	    id            UUID PRIMARY KEY,
//	    kind          TEXT NOT NULL,
//	    name          TEXT NOT NULL,
//	    date_of_birth DATE,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Save(ctx context.Context, subject *models.Subject) error {
	const query = `
        INSERT INTO subjects (id, kind, name, date_of_birth, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, date_of_birth = EXCLUDED.date_of_birth`

	_, err := s.pool.Exec(ctx, query,
		subject.ID.String(),
		string(subject.Kind),
		subject.Name,
		subject.DateOfBirth,
		subject.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	const query = `
        SELECT id, kind, name, date_of_birth, created_at
        FROM subjects WHERE id = $1`

	var (
		subject        models.Subject
		rawID, rawKind string
	)
	err := s.pool.QueryRow(ctx, query, subjectID.String()).Scan(
		&rawID,
		&rawKind,
		&subject.Name,
		&subject.DateOfBirth,
		&subject.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	parsed, err := id.ParseSubjectID(rawID)
	if err != nil {
		return nil, err
	}
	subject.ID = parsed
	subject.Kind = models.Kind(rawKind)
	return &subject, nil
}
