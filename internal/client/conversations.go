package client

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
)

func conversationPath(workerID uuid.UUID, suffix string) string {
	return "/api/v1/conversations/" + workerID.String() + suffix
}

// Conversations lists the admin's per-worker conversations.
func (c *Client) Conversations(ctx context.Context, includeHidden bool) ([]*models.ConversationSummary, error) {
	path := "/api/v1/conversations"
	if includeHidden {
		path += "?include_hidden=true"
	}
	var out struct {
		Conversations []*models.ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "Failed to fetch conversations"); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// MarkConversationRead moves the admin's cursor for a worker to now.
func (c *Client) MarkConversationRead(ctx context.Context, workerID uuid.UUID) error {
	return c.do(ctx, http.MethodPut, conversationPath(workerID, "/read"), nil, nil, "Failed to mark conversation as read")
}

// MarkAllConversationsRead moves every cursor of the admin to now.
func (c *Client) MarkAllConversationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/v1/conversations/read-all", nil, nil, "Failed to mark conversations as read")
}

// SetConversationHidden hides or restores a worker's conversation.
func (c *Client) SetConversationHidden(ctx context.Context, workerID uuid.UUID, hidden bool) error {
	method := http.MethodPut
	if !hidden {
		method = http.MethodDelete
	}
	return c.do(ctx, method, conversationPath(workerID, "/hide"), nil, nil, "Failed to update conversation")
}

// ReplyToWorker answers a worker. An empty commentID targets the worker's
// most recent thread.
func (c *Client) ReplyToWorker(ctx context.Context, workerID uuid.UUID, text string, commentID *uuid.UUID) (*models.Comment, error) {
	req := models.AdminReplyRequest{Text: text}
	if commentID != nil {
		req.CommentID = commentID.String()
	}
	var out models.Comment
	if err := c.do(ctx, http.MethodPost, conversationPath(workerID, "/replies"), req, &out, "Failed to add reply"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatGroups lists the tenant's chat groups.
func (c *Client) ChatGroups(ctx context.Context) ([]*models.ChatGroup, error) {
	var out struct {
		Groups []*models.ChatGroup `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chat-groups", nil, &out, "Failed to fetch chat groups"); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// CreateChatGroup creates a chat group.
func (c *Client) CreateChatGroup(ctx context.Context, name string, members []uuid.UUID) (*models.ChatGroup, error) {
	req := models.CreateChatGroupRequest{Name: name, MemberIDs: make([]string, 0, len(members))}
	for _, id := range members {
		req.MemberIDs = append(req.MemberIDs, id.String())
	}
	var out models.ChatGroup
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat-groups", req, &out, "Failed to create chat group"); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChatGroup deletes a chat group.
func (c *Client) DeleteChatGroup(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/chat-groups/"+id.String(), nil, nil, "Failed to delete chat group")
}
