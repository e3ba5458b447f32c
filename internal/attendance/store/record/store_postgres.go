package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	activitymodels "rollcall/internal/activity/models"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	subjectmodels "rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres implements ports.RecordStore.
//
// Schema:
//
//	CREATE TABLE attendance_records (
//	    id             UUID PRIMARY KEY,
//	    activity_kind  TEXT NOT NULL,
//	    activity_id    UUID NOT NULL,
//	    subject_kind   TEXT NOT NULL,
//	    subject_id     UUID NOT NULL,
//	    status         TEXT NOT NULL,
//	    check_in_time  TIMESTAMPTZ NOT NULL,
//	    check_out_time TIMESTAMPTZ,
//	    checked_in_by  UUID NOT NULL,
//	    checked_out_by UUID,
//	    notes          TEXT NOT NULL DEFAULT ''
//	);
//	CREATE UNIQUE INDEX ux_attendance_active
//	    ON attendance_records (subject_id, activity_id)
//	    WHERE status = 'CHECKED_IN';
//
// The partial unique index is the database half of the uniqueness invariant;
// CreateCheckedIn translates its violation into sentinel.ErrAlreadyUsed so
// the ledger treats memory and Postgres identically.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const recordColumns = `id, activity_kind, activity_id, subject_kind, subject_id, status,
    check_in_time, check_out_time, checked_in_by, checked_out_by, notes`

func (s *Postgres) CreateCheckedIn(ctx context.Context, record *models.AttendanceRecord) error {
	if !record.IsCheckedIn() {
		return sentinel.ErrInvalidState
	}

	const query = `
        INSERT INTO attendance_records
            (id, activity_kind, activity_id, subject_kind, subject_id, status,
             check_in_time, check_out_time, checked_in_by, checked_out_by, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var checkedOutBy *string
	if record.CheckedOutBy != nil {
		v := record.CheckedOutBy.String()
		checkedOutBy = &v
	}
	_, err := s.pool.Exec(ctx, query,
		record.ID.String(),
		string(record.Activity.Kind),
		record.Activity.ID.String(),
		string(record.Subject.Kind),
		record.Subject.ID.String(),
		string(record.Status),
		record.CheckInTime,
		record.CheckOutTime,
		record.CheckedInBy.String(),
		checkedOutBy,
		record.Notes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	record, err := scanRecord(s.pool.QueryRow(ctx, query, recordID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return record, nil
}

func (s *Postgres) FindActive(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef) (*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records
        WHERE subject_id = $1 AND activity_id = $2 AND status = $3`
	record, err := scanRecord(s.pool.QueryRow(ctx, query,
		subject.ID.String(), activity.ID.String(), string(models.StatusCheckedIn)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active record: %w", err)
	}
	return record, nil
}

// Execute loads the record FOR UPDATE, runs validate then apply, and writes
// the result back inside one transaction. Concurrent transitions on the same
// record serialize on the row lock.
func (s *Postgres) Execute(ctx context.Context, recordID id.RecordID,
	validate func(*models.AttendanceRecord) error,
	apply func(*models.AttendanceRecord)) (*models.AttendanceRecord, error) {

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1 FOR UPDATE`
	record, err := scanRecord(tx.QueryRow(ctx, query, recordID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load record for update: %w", err)
	}

	if err := validate(record); err != nil {
		return nil, err
	}
	apply(record)

	const update = `
        UPDATE attendance_records
        SET status = $2, check_out_time = $3, checked_out_by = $4, notes = $5
        WHERE id = $1`

	var checkedOutBy *string
	if record.CheckedOutBy != nil {
		v := record.CheckedOutBy.String()
		checkedOutBy = &v
	}
	if _, err := tx.Exec(ctx, update,
		record.ID.String(),
		string(record.Status),
		record.CheckOutTime,
		checkedOutBy,
		record.Notes,
	); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}
	return record, nil
}

func (s *Postgres) ListByActivity(ctx context.Context, activity models.ActivityRef, status *models.Status) ([]*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records
        WHERE activity_id = $1 AND ($2::text IS NULL OR status = $2)
        ORDER BY check_in_time`

	var rawStatus *string
	if status != nil {
		v := string(*status)
		rawStatus = &v
	}
	rows, err := s.pool.Query(ctx, query, activity.ID.String(), rawStatus)
	if err != nil {
		return nil, fmt.Errorf("list by activity: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Postgres) ListBySubject(ctx context.Context, subject models.SubjectRef, window ports.TimeWindow) ([]*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records
        WHERE subject_id = $1
          AND ($2::timestamptz IS NULL OR check_in_time >= $2)
          AND ($3::timestamptz IS NULL OR check_in_time <= $3)
        ORDER BY check_in_time DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, subject.ID.String(), window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("list by subject: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListBySubjectPage uses keyset pagination on (check_in_time, id) so each call
// restarts cleanly from the cursor without offset scans.
func (s *Postgres) ListBySubjectPage(ctx context.Context, subject models.SubjectRef, window ports.TimeWindow, cursor *ports.Cursor, limit int) ([]*models.AttendanceRecord, *ports.Cursor, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + recordColumns + ` FROM attendance_records
        WHERE subject_id = $1
          AND ($2::timestamptz IS NULL OR check_in_time >= $2)
          AND ($3::timestamptz IS NULL OR check_in_time <= $3)
          AND ($4::timestamptz IS NULL OR (check_in_time, id) < ($4::timestamptz, $5::uuid))
        ORDER BY check_in_time DESC, id DESC
        LIMIT $6`

	var cursorTime any
	var cursorID any
	if cursor != nil {
		cursorTime = cursor.CheckInTime
		cursorID = cursor.ID.String()
	}
	rows, err := s.pool.Query(ctx, query,
		subject.ID.String(), window.From, window.To, cursorTime, cursorID, limit+1)
	if err != nil {
		return nil, nil, fmt.Errorf("page by subject: %w", err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *ports.Cursor
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		next = &ports.Cursor{CheckInTime: last.CheckInTime, ID: last.ID}
	}
	return records, next, nil
}

func (s *Postgres) Aggregate(ctx context.Context, activity models.ActivityRef) (*models.ActivityStats, error) {
	const query = `
        SELECT status, COUNT(*) FROM attendance_records
        WHERE activity_id = $1
        GROUP BY status`

	rows, err := s.pool.Query(ctx, query, activity.ID.String())
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	defer rows.Close()

	stats := &models.ActivityStats{Activity: activity}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		for range count {
			stats.Add(models.Status(status))
		}
	}
	return stats, rows.Err()
}

func (s *Postgres) ActiveCounts(ctx context.Context) (map[id.ActivityID]int, error) {
	const query = `
        SELECT activity_id, COUNT(*) FROM attendance_records
        WHERE status = $1
        GROUP BY activity_id`

	rows, err := s.pool.Query(ctx, query, string(models.StatusCheckedIn))
	if err != nil {
		return nil, fmt.Errorf("active counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.ActivityID]int)
	for rows.Next() {
		var rawID string
		var count int
		if err := rows.Scan(&rawID, &count); err != nil {
			return nil, fmt.Errorf("scan active count: %w", err)
		}
		activityID, err := id.ParseActivityID(rawID)
		if err != nil {
			return nil, err
		}
		counts[activityID] = count
	}
	return counts, rows.Err()
}

func scanRecord(row pgx.Row) (*models.AttendanceRecord, error) {
	var (
		record                 models.AttendanceRecord
		rawID, rawActivityKind string
		rawActivityID          string
		rawSubjectKind         string
		rawSubjectID           string
		rawStatus              string
		rawCheckedInBy         string
		rawCheckedOutBy        *string
	)
	if err := row.Scan(
		&rawID,
		&rawActivityKind,
		&rawActivityID,
		&rawSubjectKind,
		&rawSubjectID,
		&rawStatus,
		&record.CheckInTime,
		&record.CheckOutTime,
		&rawCheckedInBy,
		&rawCheckedOutBy,
		&record.Notes,
	); err != nil {
		return nil, err
	}

	recordID, err := id.ParseRecordID(rawID)
	if err != nil {
		return nil, err
	}
	activityID, err := id.ParseActivityID(rawActivityID)
	if err != nil {
		return nil, err
	}
	subjectID, err := id.ParseSubjectID(rawSubjectID)
	if err != nil {
		return nil, err
	}
	checkedInBy, err := id.ParseOperatorID(rawCheckedInBy)
	if err != nil {
		return nil, err
	}

	record.ID = recordID
	record.Activity = models.ActivityRef{Kind: activitymodels.Kind(rawActivityKind), ID: activityID}
	record.Subject = models.SubjectRef{Kind: subjectmodels.Kind(rawSubjectKind), ID: subjectID}
	record.Status = models.Status(rawStatus)
	record.CheckedInBy = checkedInBy
	if rawCheckedOutBy != nil {
		checkedOutBy, err := id.ParseOperatorID(*rawCheckedOutBy)
		if err != nil {
			return nil, err
		}
		record.CheckedOutBy = &checkedOutBy
	}
	return &record, nil
}

func collectRecords(rows pgx.Rows) ([]*models.AttendanceRecord, error) {
	var out []*models.AttendanceRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
