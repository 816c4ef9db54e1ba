// Package models defines the domain models for the task tracker.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of a conversation an account is on.
type Role string

const (
	// RoleAdmin manages a tenant and answers worker comments.
	RoleAdmin Role = "admin"
	// RoleWorker records attendance and opens comment threads.
	RoleWorker Role = "worker"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleWorker
}

// MainSubdomain is the sentinel subdomain of the marketing/landing site.
// It never identifies a tenant.
const MainSubdomain = "main"

// IsTenantSubdomain reports whether subdomain identifies a real tenant.
func IsTenantSubdomain(subdomain string) bool {
	return subdomain != "" && subdomain != MainSubdomain
}

// Department groups workers inside a tenant.
type Department struct {
	ID        uuid.UUID `json:"id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDepartment creates a new Department.
func NewDepartment(subdomain, name string) *Department {
	return &Department{
		ID:        uuid.New(),
		Subdomain: subdomain,
		Name:      name,
		CreatedAt: time.Now(),
	}
}

// Worker is an employee account of a tenant.
type Worker struct {
	ID           uuid.UUID  `json:"id"`
	Subdomain    string     `json:"subdomain"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Photo        string     `json:"photo,omitempty"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewWorker creates a new Worker.
func NewWorker(subdomain, name, username string, departmentID *uuid.UUID) *Worker {
	now := time.Now()
	return &Worker{
		ID:           uuid.New(),
		Subdomain:    subdomain,
		Name:         name,
		Username:     username,
		DepartmentID: departmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Admin is a tenant administrator account.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Subdomain    string    `json:"subdomain"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAdmin creates a new Admin.
func NewAdmin(subdomain, name, email string) *Admin {
	now := time.Now()
	return &Admin{
		ID:        uuid.New(),
		Subdomain: subdomain,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Subdomain string `json:"subdomain" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Role      Role   `json:"role" binding:"required,oneof=admin worker"`
}

// LoginResponse carries an issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Subdomain string    `json:"subdomain"`
}
