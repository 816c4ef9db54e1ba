package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MacJediWizard/tasktracker/internal/api/middleware"
	"github.com/MacJediWizard/tasktracker/internal/comments"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CommentService is the comment API used by CommentsHandler.
type CommentService interface {
	ListByWorker(ctx context.Context, caller comments.Caller, workerID uuid.UUID) ([]*models.Comment, error)
	ListMine(ctx context.Context, caller comments.Caller) ([]*models.Comment, error)
	ListByTenant(ctx context.Context, caller comments.Caller, subdomain string) ([]*models.Comment, error)
	ListUnreadAdminReplies(ctx context.Context, caller comments.Caller) ([]*models.Comment, error)
	Create(ctx context.Context, caller comments.Caller, req models.CreateCommentRequest) (*models.Comment, error)
	Attachment(ctx context.Context, caller comments.Caller, id uuid.UUID) (*models.Attachment, error)
	AddReply(ctx context.Context, caller comments.Caller, id uuid.UUID, text string) (*models.Comment, error)
	MarkRead(ctx context.Context, caller comments.Caller, id uuid.UUID) (*models.Comment, error)
	MarkCommentAdminRepliesRead(ctx context.Context, caller comments.Caller, id uuid.UUID) (*models.Comment, error)
	MarkAllAdminRepliesRead(ctx context.Context, caller comments.Caller) (int64, error)
}

// CommentsHandler handles comment-related HTTP endpoints.
type CommentsHandler struct {
	svc    CommentService
	logger zerolog.Logger
}

// NewCommentsHandler creates a new CommentsHandler.
func NewCommentsHandler(svc CommentService, logger zerolog.Logger) *CommentsHandler {
	return &CommentsHandler{
		svc:    svc,
		logger: logger.With().Str("component", "comments_handler").Logger(),
	}
}

// RegisterRoutes registers comment routes on the given router group.
// GET /comments/:id lists a tenant: the segment is a subdomain there and a
// comment ID on the nested routes, so both share one wildcard name.
func (h *CommentsHandler) RegisterRoutes(r *gin.RouterGroup) {
	worker := middleware.RequireRole(models.RoleWorker)
	admin := middleware.RequireRole(models.RoleAdmin)

	c := r.Group("/comments")
	{
		c.POST("", h.Create)
		c.GET("/me", worker, h.ListMine)
		c.GET("/unread-admin-replies", worker, h.ListUnreadAdminReplies)
		c.PUT("/mark-admin-replies-read", h.MarkAllAdminRepliesRead)
		c.GET("/worker/:workerId", admin, h.ListByWorker)
		c.GET("/:id", admin, h.ListByTenant)
		c.POST("/:id/replies", h.AddReply)
		c.PUT("/:id/read", h.MarkRead)
		c.PUT("/:id/mark-admin-replies-read", h.MarkCommentAdminRepliesRead)
		c.GET("/:id/attachment", h.Attachment)
	}
}

func (h *CommentsHandler) commentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into dst, answering 413 for oversized bodies and
// 400 for anything else.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		if errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body is required"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

// Create stores a new comment for the calling worker.
// POST /api/v1/comments
func (h *CommentsHandler) Create(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	var req models.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.svc.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListMine returns the calling worker's comments, newest first.
// GET /api/v1/comments/me
func (h *CommentsHandler) ListMine(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListMine(c.Request.Context(), caller)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListUnreadAdminReplies returns the calling worker's comments that carry
// unread admin replies.
// GET /api/v1/comments/unread-admin-replies
func (h *CommentsHandler) ListUnreadAdminReplies(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListUnreadAdminReplies(c.Request.Context(), caller)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListByWorker returns every comment of one worker.
// GET /api/v1/comments/worker/:workerId
func (h *CommentsHandler) ListByWorker(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	workerID, err := uuid.Parse(c.Param("workerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker ID"})
		return
	}
	list, err := h.svc.ListByWorker(c.Request.Context(), caller, workerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListByTenant returns every comment of a tenant with the worker joined.
// GET /api/v1/comments/:subdomain
func (h *CommentsHandler) ListByTenant(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListByTenant(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// AddReply appends a reply to a comment.
// POST /api/v1/comments/:id/replies
func (h *CommentsHandler) AddReply(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	id, ok := h.commentID(c)
	if !ok {
		return
	}
	var req models.AddReplyRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.svc.AddReply(c.Request.Context(), caller, id, req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// MarkRead clears the new flags of a comment and all its replies.
// PUT /api/v1/comments/:id/read
func (h *CommentsHandler) MarkRead(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	id, ok := h.commentID(c)
	if !ok {
		return
	}
	if _, err := h.svc.MarkRead(c.Request.Context(), caller, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Comment marked as read"})
}

// MarkCommentAdminRepliesRead clears the new flag of a comment's admin replies.
// PUT /api/v1/comments/:id/mark-admin-replies-read
func (h *CommentsHandler) MarkCommentAdminRepliesRead(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	id, ok := h.commentID(c)
	if !ok {
		return
	}
	if _, err := h.svc.MarkCommentAdminRepliesRead(c.Request.Context(), caller, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Admin replies marked as read for this comment"})
}

// MarkAllAdminRepliesRead clears every unread admin reply of the caller.
// PUT /api/v1/comments/mark-admin-replies-read
func (h *CommentsHandler) MarkAllAdminRepliesRead(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	if _, err := h.svc.MarkAllAdminRepliesRead(c.Request.Context(), caller); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Admin replies marked as read"})
}

// Attachment streams a comment's attachment.
// GET /api/v1/comments/:id/attachment
func (h *CommentsHandler) Attachment(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	id, ok := h.commentID(c)
	if !ok {
		return
	}
	att, err := h.svc.Attachment(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	contentType := att.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(att.Name))
	c.Data(http.StatusOK, contentType, att.Data)
}
