package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rollcall/internal/activity/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Postgres persists activities.
//
// Schema:
//
//	CREATE TABLE activities (
//	    id            UUID PRIMARY KEY,
//	    kind          TEXT NOT NULL,
//	    name          TEXT NOT NULL,
//	    capacity      INT,
//	    age_min       INT,
//	    age_max       INT,
//	    accepting     BOOLEAN NOT NULL DEFAULT TRUE,
//	    window_start  TIMESTAMPTZ,
//	    window_end    TIMESTAMPTZ,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Save(ctx context.Context, activity *models.Activity) error {
	const query = `
        INSERT INTO activities (id, kind, name, capacity, age_min, age_max, accepting, window_start, window_end, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            capacity = EXCLUDED.capacity,
            age_min = EXCLUDED.age_min,
            age_max = EXCLUDED.age_max,
            accepting = EXCLUDED.accepting,
            window_start = EXCLUDED.window_start,
            window_end = EXCLUDED.window_end`

	var ageMin, ageMax *int
	if activity.AgeRange != nil {
		ageMin, ageMax = &activity.AgeRange.Min, &activity.AgeRange.Max
	}
	_, err := s.pool.Exec(ctx, query,
		activity.ID.String(),
		string(activity.Kind),
		activity.Name,
		activity.Capacity,
		ageMin,
		ageMax,
		activity.AcceptingCheckIn,
		activity.WindowStart,
		activity.WindowEnd,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save activity: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, activityID id.ActivityID) (*models.Activity, error) {
	const query = `
        SELECT id, kind, name, capacity, age_min, age_max, accepting, window_start, window_end, created_at
        FROM activities WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, activityID.String())
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return activity, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Activity, error) {
	const query = `
        SELECT id, kind, name, capacity, age_min, age_max, accepting, window_start, window_end, created_at
        FROM activities ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []*models.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, activity)
	}
	return out, rows.Err()
}

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var (
		activity       models.Activity
		rawID, rawKind string
		ageMin, ageMax *int
	)
	if err := row.Scan(
		&rawID,
		&rawKind,
		&activity.Name,
		&activity.Capacity,
		&ageMin,
		&ageMax,
		&activity.AcceptingCheckIn,
		&activity.WindowStart,
		&activity.WindowEnd,
		&activity.CreatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := id.ParseActivityID(rawID)
	if err != nil {
		return nil, err
	}
	activity.ID = parsed
	activity.Kind = models.Kind(rawKind)
	if ageMin != nil && ageMax != nil {
		activity.AgeRange = &models.AgeRange{Min: *ageMin, Max: *ageMax}
	}
	return &activity, nil
}
