package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
)

// Department methods

// CreateDepartment creates a new department.
func (db *DB) CreateDepartment(ctx context.Context, d *models.Department) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO departments (id, subdomain, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, d.ID, d.Subdomain, d.Name, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// GetDepartmentByName returns a tenant's department by name.
func (db *DB) GetDepartmentByName(ctx context.Context, subdomain, name string) (*models.Department, error) {
	var d models.Department
	err := db.Pool.QueryRow(ctx, `
		SELECT id, subdomain, name, created_at
		FROM departments
		WHERE subdomain = $1 AND name = $2
	`, subdomain, name).Scan(&d.ID, &d.Subdomain, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err, "department")
	}
	return &d, nil
}

// Worker methods

const workerColumns = `id, subdomain, name, username, photo, department_id, password_hash, created_at, updated_at`

func scanWorker(row interface{ Scan(...any) error }) (*models.Worker, error) {
	var w models.Worker
	err := row.Scan(&w.ID, &w.Subdomain, &w.Name, &w.Username, &w.Photo,
		&w.DepartmentID, &w.PasswordHash, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWorker creates a new worker.
func (db *DB) CreateWorker(ctx context.Context, w *models.Worker) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO workers (`+workerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.ID, w.Subdomain, w.Name, w.Username, w.Photo,
		w.DepartmentID, w.PasswordHash, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	return nil
}

// GetWorkerByID returns a worker by ID.
func (db *DB) GetWorkerByID(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	w, err := scanWorker(db.Pool.QueryRow(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "worker")
	}
	return w, nil
}

// GetWorkerByUsername returns a tenant's worker by login name.
func (db *DB) GetWorkerByUsername(ctx context.Context, subdomain, username string) (*models.Worker, error) {
	w, err := scanWorker(db.Pool.QueryRow(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE subdomain = $1 AND username = $2`,
		subdomain, username))
	if err != nil {
		return nil, notFound(err, "worker")
	}
	return w, nil
}

// ListWorkers returns all workers of a tenant ordered by name.
func (db *DB) ListWorkers(ctx context.Context, subdomain string) ([]*models.Worker, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE subdomain = $1 ORDER BY name`, subdomain)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workers: %w", err)
	}
	return workers, nil
}

// DeleteWorker removes a worker. Their comments remain with a NULL worker.
func (db *DB) DeleteWorker(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete worker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker: %w", ErrNotFound)
	}
	return nil
}

// Admin methods

// CreateAdmin creates a new admin account.
func (db *DB) CreateAdmin(ctx context.Context, a *models.Admin) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO admins (id, subdomain, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Subdomain, a.Name, a.Email, a.PasswordHash, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// GetAdminByEmail returns a tenant's admin by email.
func (db *DB) GetAdminByEmail(ctx context.Context, subdomain, email string) (*models.Admin, error) {
	var a models.Admin
	err := db.Pool.QueryRow(ctx, `
		SELECT id, subdomain, name, email, password_hash, created_at, updated_at
		FROM admins
		WHERE subdomain = $1 AND email = $2
	`, subdomain, email).Scan(&a.ID, &a.Subdomain, &a.Name, &a.Email,
		&a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "admin")
	}
	return &a, nil
}
