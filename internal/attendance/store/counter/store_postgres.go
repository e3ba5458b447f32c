package counter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	id "rollcall/pkg/domain"
)

// Postgres implements ports.CounterStore on a counters table.
//
// Schema:
//
//	CREATE TABLE occupancy_counters (
//	    activity_id UUID PRIMARY KEY,
//	    current     INT NOT NULL DEFAULT 0 CHECK (current >= 0)
//	);
//
// Admission is a single conditional statement; the affected-row count is the
// success signal. Row-level locking serializes admits per activity while
// different activities proceed independently.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) TryAdmit(ctx context.Context, activityID id.ActivityID, max *int) (int, bool, error) {
	// Unlimited capacity: plain upsert-increment, admission always succeeds.
	if max == nil {
		const query = `
            INSERT INTO occupancy_counters (activity_id, current) VALUES ($1, 1)
            ON CONFLICT (activity_id) DO UPDATE SET current = occupancy_counters.current + 1
            RETURNING current`
		var current int
		if err := s.pool.QueryRow(ctx, query, activityID.String()).Scan(&current); err != nil {
			return 0, false, fmt.Errorf("admit unlimited: %w", err)
		}
		return current, true, nil
	}

	// Bounded capacity: insert-or-conditionally-increment in one statement.
	// The WHERE clause on the conflict arm is the atomic test-and-increment;
	// when it does not match, no row comes back and admission is denied.
	const query = `
        INSERT INTO occupancy_counters (activity_id, current) VALUES ($1, 1)
        ON CONFLICT (activity_id) DO UPDATE SET current = occupancy_counters.current + 1
        WHERE occupancy_counters.current < $2
        RETURNING current`

	var current int
	err := s.pool.QueryRow(ctx, query, activityID.String(), *max).Scan(&current)
	if err == nil {
		return current, true, nil
	}
	if !isNoRows(err) {
		return 0, false, fmt.Errorf("admit: %w", err)
	}

	// Denied; read the counter for the rejection report.
	current, readErr := s.Current(ctx, activityID)
	if readErr != nil {
		return 0, false, readErr
	}
	return current, false, nil
}

func (s *Postgres) Release(ctx context.Context, activityID id.ActivityID) (int, error) {
	const query = `
        UPDATE occupancy_counters
        SET current = GREATEST(current - 1, 0)
        WHERE activity_id = $1
        RETURNING current`

	var current int
	err := s.pool.QueryRow(ctx, query, activityID.String()).Scan(&current)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("release: %w", err)
	}
	return current, nil
}

func (s *Postgres) Current(ctx context.Context, activityID id.ActivityID) (int, error) {
	const query = `SELECT current FROM occupancy_counters WHERE activity_id = $1`

	var current int
	err := s.pool.QueryRow(ctx, query, activityID.String()).Scan(&current)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return current, nil
}

func (s *Postgres) Tracked(ctx context.Context) ([]id.ActivityID, error) {
	const query = `SELECT activity_id FROM occupancy_counters`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	var ids []id.ActivityID
	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			return nil, fmt.Errorf("scan counter row: %w", err)
		}
		activityID, err := id.ParseActivityID(rawID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, activityID)
	}
	return ids, rows.Err()
}

func (s *Postgres) Reset(ctx context.Context, activityID id.ActivityID, current int) error {
	const query = `
        INSERT INTO occupancy_counters (activity_id, current) VALUES ($1, $2)
        ON CONFLICT (activity_id) DO UPDATE SET current = EXCLUDED.current`

	if _, err := s.pool.Exec(ctx, query, activityID.String(), current); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}
