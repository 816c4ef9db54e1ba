package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/api/middleware"
	"github.com/MacJediWizard/tasktracker/internal/attendance"
	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttendanceStore defines the persistence used by AttendanceHandler.
type AttendanceStore interface {
	CreateAttendanceRecord(ctx context.Context, r *models.AttendanceRecord) error
	ListAttendance(ctx context.Context, subdomain string, workerID uuid.UUID, from, to time.Time) ([]*models.AttendanceRecord, error)
}

// AttendanceHandler handles attendance punches and the per-day report.
type AttendanceHandler struct {
	store        AttendanceStore
	productivity attendance.ProductivityCalculator
	loc          *time.Location
	logger       zerolog.Logger
}

// NewAttendanceHandler creates a new AttendanceHandler. Days are cut in loc;
// nil means UTC.
func NewAttendanceHandler(store AttendanceStore, loc *time.Location, logger zerolog.Logger) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{
		store:  store,
		loc:    loc,
		logger: logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// WithProductivity attaches a calculator whose report is included in
// GET responses.
func (h *AttendanceHandler) WithProductivity(calc attendance.ProductivityCalculator) *AttendanceHandler {
	h.productivity = calc
	return h
}

// RegisterRoutes registers attendance routes on the given router group.
func (h *AttendanceHandler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/attendance")
	{
		a.POST("", middleware.RequireRole(models.RoleWorker), h.Record)
		a.GET("/workers/:workerId", middleware.RequireRole(models.RoleAdmin), h.Report)
	}
}

// Record stores an in or out punch for the calling worker.
// POST /api/v1/attendance
func (h *AttendanceHandler) Record(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}
	var req models.RecordAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	rec := models.NewAttendanceRecord(user.Subdomain, user.ID, *req.Presence)
	if err := h.store.CreateAttendanceRecord(c.Request.Context(), rec); err != nil {
		h.logger.Error().Err(err).Str("worker_id", user.ID.String()).Msg("failed to record attendance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attendance"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// Report returns a worker's punches grouped per day, newest day first.
// GET /api/v1/attendance/workers/:workerId?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AttendanceHandler) Report(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	rng, err := attendance.ParseRange(c.Query("from"), c.Query("to"), h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.store.ListAttendance(c.Request.Context(), user.Subdomain, workerID, rng.From, rng.To)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Worker not found"})
			return
		}
		h.logger.Error().Err(err).Str("worker_id", workerID.String()).Msg("failed to list attendance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance"})
		return
	}

	report := attendance.Report{Rows: attendance.GroupByDay(records, h.loc)}
	if h.productivity != nil {
		p, err := h.productivity.Calculate(c.Request.Context(), records, rng)
		if err != nil {
			h.logger.Warn().Err(err).Str("worker_id", workerID.String()).Msg("productivity calculation failed")
		} else {
			report.Productivity = p
		}
	}
	c.JSON(http.StatusOK, report)
}
