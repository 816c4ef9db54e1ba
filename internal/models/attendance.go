package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceRecord is a single in or out punch of a worker.
type AttendanceRecord struct {
	ID         uuid.UUID  `json:"id"`
	Subdomain  string     `json:"subdomain"`
	WorkerID   uuid.UUID  `json:"worker_id"`
	Worker     *WorkerRef `json:"worker,omitempty"`
	Presence   bool       `json:"presence"`
	RecordedAt time.Time  `json:"recorded_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewAttendanceRecord creates a punch recorded now.
func NewAttendanceRecord(subdomain string, workerID uuid.UUID, presence bool) *AttendanceRecord {
	now := time.Now()
	return &AttendanceRecord{
		ID:         uuid.New(),
		Subdomain:  subdomain,
		WorkerID:   workerID,
		Presence:   presence,
		RecordedAt: now,
		CreatedAt:  now,
	}
}

// RecordAttendanceRequest is the request body for POST /attendance.
type RecordAttendanceRequest struct {
	Presence *bool `json:"presence" binding:"required"`
}
