package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// CreateAttendanceRecord stores a punch.
func (db *DB) CreateAttendanceRecord(ctx context.Context, r *models.AttendanceRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO attendance_records (id, subdomain, worker_id, presence, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.Subdomain, r.WorkerID, r.Presence, r.RecordedAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// ListAttendance returns a worker's punches in [from, to), newest first.
// Zero bounds are open.
func (db *DB) ListAttendance(ctx context.Context, subdomain string, workerID uuid.UUID, from, to time.Time) ([]*models.AttendanceRecord, error) {
	b := psql.Select(
		"a.id", "a.subdomain", "a.worker_id", "a.presence", "a.recorded_at", "a.created_at",
		"w.name", "d.id", "d.name",
	).
		From("attendance_records a").
		Join("workers w ON w.id = a.worker_id").
		LeftJoin("departments d ON d.id = w.department_id").
		Where(sq.Eq{"a.subdomain": subdomain, "a.worker_id": workerID}).
		OrderBy("a.recorded_at DESC")
	if !from.IsZero() {
		b = b.Where(sq.GtOrEq{"a.recorded_at": from})
	}
	if !to.IsZero() {
		b = b.Where(sq.Lt{"a.recorded_at": to})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attendance query: %w", err)
	}
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []*models.AttendanceRecord
	for rows.Next() {
		var r models.AttendanceRecord
		var name string
		var deptID *uuid.UUID
		var deptName *string
		if err := rows.Scan(&r.ID, &r.Subdomain, &r.WorkerID, &r.Presence,
			&r.RecordedAt, &r.CreatedAt, &name, &deptID, &deptName); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		wid := r.WorkerID
		r.Worker = &models.WorkerRef{ID: &wid, Name: name}
		if deptName != nil {
			r.Worker.Department = &models.DepartmentRef{ID: deptID, Name: *deptName}
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
