package models

import (
	"time"

	"github.com/google/uuid"
)

// ReadCursor records how far an admin has read a worker's conversation.
// Unread messages are those created after LastReadAt.
type ReadCursor struct {
	ReaderID   uuid.UUID `json:"reader_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	Subdomain  string    `json:"subdomain"`
	LastReadAt time.Time `json:"last_read_at"`
	Hidden     bool      `json:"hidden"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConversationSummary is one entry of an admin's conversation list.
type ConversationSummary struct {
	Worker          *WorkerRef `json:"worker"`
	LatestCommentID uuid.UUID  `json:"latest_comment_id"`
	LastMessageAt   time.Time  `json:"last_message_at"`
	LastReadAt      *time.Time `json:"last_read_at,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	Hidden          bool       `json:"hidden"`
}

// ChatGroup is a named set of workers an admin wants to see together.
type ChatGroup struct {
	ID        uuid.UUID   `json:"id"`
	Subdomain string      `json:"subdomain"`
	Name      string      `json:"name"`
	CreatedBy uuid.UUID   `json:"created_by"`
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewChatGroup creates a new ChatGroup.
func NewChatGroup(subdomain, name string, createdBy uuid.UUID, members []uuid.UUID) *ChatGroup {
	if members == nil {
		members = []uuid.UUID{}
	}
	return &ChatGroup{
		ID:        uuid.New(),
		Subdomain: subdomain,
		Name:      name,
		CreatedBy: createdBy,
		MemberIDs: members,
		CreatedAt: time.Now(),
	}
}

// CreateChatGroupRequest is the request body for creating a chat group.
type CreateChatGroupRequest struct {
	Name      string   `json:"name" binding:"required,min=1,max=100"`
	MemberIDs []string `json:"member_ids"`
}

// AdminReplyRequest is the request body for replying into a worker's
// conversation. CommentID pins a specific thread; when empty the worker's
// most recent comment is used.
type AdminReplyRequest struct {
	Text      string `json:"text"`
	CommentID string `json:"comment_id,omitempty"`
}
