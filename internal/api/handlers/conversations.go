package handlers

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/tasktracker/internal/api/middleware"
	"github.com/MacJediWizard/tasktracker/internal/comments"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConversationService is the admin inbox used by ConversationsHandler.
type ConversationService interface {
	List(ctx context.Context, caller comments.Caller, includeHidden bool) ([]*models.ConversationSummary, error)
	MarkRead(ctx context.Context, caller comments.Caller, workerID uuid.UUID) error
	MarkAllRead(ctx context.Context, caller comments.Caller) (int64, error)
	SetHidden(ctx context.Context, caller comments.Caller, workerID uuid.UUID, hidden bool) error
	Reply(ctx context.Context, caller comments.Caller, workerID uuid.UUID, req models.AdminReplyRequest) (*models.Comment, error)
	Groups(ctx context.Context, caller comments.Caller) ([]*models.ChatGroup, error)
	CreateGroup(ctx context.Context, caller comments.Caller, req models.CreateChatGroupRequest) (*models.ChatGroup, error)
	DeleteGroup(ctx context.Context, caller comments.Caller, id uuid.UUID) error
}

// ConversationsHandler serves the admin inbox and chat groups.
type ConversationsHandler struct {
	inbox  ConversationService
	logger zerolog.Logger
}

// NewConversationsHandler creates a new ConversationsHandler.
func NewConversationsHandler(inbox ConversationService, logger zerolog.Logger) *ConversationsHandler {
	return &ConversationsHandler{
		inbox:  inbox,
		logger: logger.With().Str("component", "conversations_handler").Logger(),
	}
}

// RegisterRoutes registers conversation and chat group routes. All of them
// are admin only.
func (h *ConversationsHandler) RegisterRoutes(r *gin.RouterGroup) {
	conv := r.Group("/conversations", middleware.RequireRole(models.RoleAdmin))
	{
		conv.GET("", h.List)
		conv.PUT("/read-all", h.MarkAllRead)
		conv.PUT("/:workerId/read", h.MarkRead)
		conv.PUT("/:workerId/hide", h.Hide)
		conv.DELETE("/:workerId/hide", h.Unhide)
		conv.POST("/:workerId/replies", h.Reply)
	}

	groups := r.Group("/chat-groups", middleware.RequireRole(models.RoleAdmin))
	{
		groups.GET("", h.ListGroups)
		groups.POST("", h.CreateGroup)
		groups.DELETE("/:id", h.DeleteGroup)
	}
}

func workerParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("workerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker ID"})
		return uuid.Nil, false
	}
	return id, true
}

// List returns the caller's conversations.
// GET /api/v1/conversations?include_hidden=true
func (h *ConversationsHandler) List(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	list, err := h.inbox.List(c.Request.Context(), caller, c.Query("include_hidden") == "true")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

// MarkAllRead moves every read cursor of the caller to now.
// PUT /api/v1/conversations/read-all
func (h *ConversationsHandler) MarkAllRead(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	n, err := h.inbox.MarkAllRead(c.Request.Context(), caller)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All conversations marked as read", "updated": n})
}

// MarkRead moves the caller's read cursor for one worker to now.
// PUT /api/v1/conversations/:workerId/read
func (h *ConversationsHandler) MarkRead(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), caller, workerID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Conversation marked as read"})
}

// Hide removes a worker's conversation from the caller's list.
// PUT /api/v1/conversations/:workerId/hide
func (h *ConversationsHandler) Hide(c *gin.Context) {
	h.setHidden(c, true, "Conversation hidden")
}

// Unhide restores a hidden conversation.
// DELETE /api/v1/conversations/:workerId/hide
func (h *ConversationsHandler) Unhide(c *gin.Context) {
	h.setHidden(c, false, "Conversation restored")
}

func (h *ConversationsHandler) setHidden(c *gin.Context, hidden bool, msg string) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	if err := h.inbox.SetHidden(c.Request.Context(), caller, workerID, hidden); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: msg})
}

// Reply answers a worker in their most recent thread, or in comment_id.
// POST /api/v1/conversations/:workerId/replies
func (h *ConversationsHandler) Reply(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	var req models.AdminReplyRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.inbox.Reply(c.Request.Context(), caller, workerID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListGroups returns the tenant's chat groups.
// GET /api/v1/chat-groups
func (h *ConversationsHandler) ListGroups(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	groups, err := h.inbox.Groups(c.Request.Context(), caller)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// CreateGroup creates a chat group.
// POST /api/v1/chat-groups
func (h *ConversationsHandler) CreateGroup(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	var req models.CreateChatGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	g, err := h.inbox.CreateGroup(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// DeleteGroup deletes a chat group.
// DELETE /api/v1/chat-groups/:id
func (h *ConversationsHandler) DeleteGroup(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}
	if err := h.inbox.DeleteGroup(c.Request.Context(), caller, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Chat group deleted"})
}
