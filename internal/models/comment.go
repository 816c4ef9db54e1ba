package models

import (
	"time"

	"github.com/google/uuid"
)

// Placeholder values used when a comment's worker no longer exists.
const (
	UnknownWorkerName    = "Unknown Worker"
	UnassignedDepartment = "Unassigned"
)

// DepartmentRef is the department projection embedded in a WorkerRef.
type DepartmentRef struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
}

// WorkerRef is the worker projection joined into comment responses.
type WorkerRef struct {
	ID         *uuid.UUID     `json:"id,omitempty"`
	Name       string         `json:"name"`
	Username   string         `json:"username,omitempty"`
	Photo      string         `json:"photo,omitempty"`
	Department *DepartmentRef `json:"department,omitempty"`
}

// UnknownWorker returns the placeholder used for orphaned comments.
func UnknownWorker() *WorkerRef {
	return &WorkerRef{
		Name:       UnknownWorkerName,
		Department: &DepartmentRef{Name: UnassignedDepartment},
	}
}

// IsPlaceholder reports whether w is the orphaned-comment placeholder.
func (w *WorkerRef) IsPlaceholder() bool {
	return w == nil || w.ID == nil
}

// Attachment is an optional file attached to a comment.
// Data is encoded as base64 in JSON. StorageKey is set when the bytes
// live in the object store instead of the database row.
type Attachment struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Data       []byte `json:"data,omitempty"`
	Size       int64  `json:"size"`
	StorageKey string `json:"-"`
}

// Reply is a message appended to a comment thread by either role.
type Reply struct {
	ID           uuid.UUID `json:"id"`
	CommentID    uuid.UUID `json:"-"`
	AuthorID     uuid.UUID `json:"author_id"`
	Text         string    `json:"text"`
	IsAdminReply bool      `json:"is_admin_reply"`
	IsNew        bool      `json:"is_new"`
	Subdomain    string    `json:"subdomain"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a worker-initiated thread with the tenant's admins.
type Comment struct {
	ID                  uuid.UUID   `json:"id"`
	WorkerID            *uuid.UUID  `json:"-"`
	Worker              *WorkerRef  `json:"worker"`
	Subdomain           string      `json:"subdomain"`
	Text                string      `json:"text"`
	Attachment          *Attachment `json:"attachment,omitempty"`
	IsNew               bool        `json:"is_new"`
	HasUnreadAdminReply bool        `json:"has_unread_admin_reply"`
	LastReplyTimestamp  *time.Time  `json:"last_reply_timestamp,omitempty"`
	Replies             []*Reply    `json:"replies"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// NewComment creates a new Comment owned by workerID.
func NewComment(workerID uuid.UUID, subdomain, text string) *Comment {
	now := time.Now()
	return &Comment{
		ID:        uuid.New(),
		WorkerID:  &workerID,
		Subdomain: subdomain,
		Text:      text,
		IsNew:     true,
		Replies:   []*Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewReply creates a reply for c. The reply inherits the comment's subdomain.
func NewReply(c *Comment, authorID uuid.UUID, text string, role Role) *Reply {
	return &Reply{
		ID:           uuid.New(),
		CommentID:    c.ID,
		AuthorID:     authorID,
		Text:         text,
		IsAdminReply: role == RoleAdmin,
		IsNew:        true,
		Subdomain:    c.Subdomain,
		CreatedAt:    time.Now(),
	}
}

// ApplyReply appends r and updates the comment's unread bookkeeping.
func (c *Comment) ApplyReply(r *Reply) {
	c.Replies = append(c.Replies, r)
	if r.IsAdminReply {
		c.HasUnreadAdminReply = true
		ts := r.CreatedAt
		c.LastReplyTimestamp = &ts
	}
	c.IsNew = true
	c.UpdatedAt = r.CreatedAt
}

// MarkRead clears the new flag on the comment and every reply.
func (c *Comment) MarkRead() {
	c.IsNew = false
	for _, r := range c.Replies {
		r.IsNew = false
	}
	c.HasUnreadAdminReply = false
	c.UpdatedAt = time.Now()
}

// MarkAdminRepliesRead clears the new flag on admin replies only.
func (c *Comment) MarkAdminRepliesRead() {
	for _, r := range c.Replies {
		if r.IsAdminReply {
			r.IsNew = false
		}
	}
	c.HasUnreadAdminReply = false
	c.UpdatedAt = time.Now()
}

// UnreadAdminReplies counts admin replies still flagged new.
func (c *Comment) UnreadAdminReplies() int {
	n := 0
	for _, r := range c.Replies {
		if r.IsAdminReply && r.IsNew {
			n++
		}
	}
	return n
}

// EnsureWorker substitutes the placeholder when the worker join came back empty.
func (c *Comment) EnsureWorker() {
	if c.Worker == nil {
		c.Worker = UnknownWorker()
	}
	if c.Worker.Department == nil {
		c.Worker.Department = &DepartmentRef{Name: UnassignedDepartment}
	}
}

// AttachmentInput is the attachment part of CreateCommentRequest.
type AttachmentInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Text       string           `json:"text"`
	Subdomain  string           `json:"subdomain"`
	Attachment *AttachmentInput `json:"attachment,omitempty"`
}

// AddReplyRequest is the request body for replying to a comment.
type AddReplyRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the body returned by mark-read style operations.
type MessageResponse struct {
	Message string `json:"message"`
}
