package client

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
)

// GetAllComments lists every comment of a tenant (admin).
func (c *Client) GetAllComments(ctx context.Context, subdomain string) ([]*models.Comment, error) {
	if !models.IsTenantSubdomain(subdomain) {
		return nil, &Error{Message: "Subdomain is missing, check the URL"}
	}
	var out []*models.Comment
	if err := c.do(ctx, http.MethodGet, "/api/v1/comments/"+url.PathEscape(subdomain), nil, &out, "Failed to fetch comments"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkerComments lists one worker's comments (admin).
func (c *Client) GetWorkerComments(ctx context.Context, workerID uuid.UUID) ([]*models.Comment, error) {
	var out []*models.Comment
	if err := c.do(ctx, http.MethodGet, "/api/v1/comments/worker/"+workerID.String(), nil, &out, "Failed to fetch comments"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMyComments lists the caller's comments (worker).
func (c *Client) GetMyComments(ctx context.Context) ([]*models.Comment, error) {
	var out []*models.Comment
	if err := c.do(ctx, http.MethodGet, "/api/v1/comments/me", nil, &out, "Failed to fetch comments"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUnreadAdminReplies lists the caller's comments with unread admin replies.
func (c *Client) GetUnreadAdminReplies(ctx context.Context) ([]*models.Comment, error) {
	var out []*models.Comment
	if err := c.do(ctx, http.MethodGet, "/api/v1/comments/unread-admin-replies", nil, &out, "Failed to fetch comments"); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComment opens a new thread (worker).
func (c *Client) CreateComment(ctx context.Context, req models.CreateCommentRequest) (*models.Comment, error) {
	var out models.Comment
	if err := c.do(ctx, http.MethodPost, "/api/v1/comments", req, &out, "Failed to create comment"); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddReply appends a reply to a thread.
func (c *Client) AddReply(ctx context.Context, commentID uuid.UUID, text string) (*models.Comment, error) {
	var out models.Comment
	if err := c.do(ctx, http.MethodPost, commentPath(commentID, "/replies"), models.AddReplyRequest{Text: text}, &out, "Failed to add reply"); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkCommentRead clears the new flags of a thread.
func (c *Client) MarkCommentRead(ctx context.Context, commentID uuid.UUID) (string, error) {
	var out models.MessageResponse
	if err := c.do(ctx, http.MethodPut, commentPath(commentID, "/read"), nil, &out, "Failed to mark comment as read"); err != nil {
		return "", err
	}
	return out.Message, nil
}

// MarkAdminRepliesRead clears every unread admin reply of the caller.
func (c *Client) MarkAdminRepliesRead(ctx context.Context) (string, error) {
	var out models.MessageResponse
	if err := c.do(ctx, http.MethodPut, "/api/v1/comments/mark-admin-replies-read", nil, &out, "Failed to mark admin replies as read"); err != nil {
		return "", err
	}
	return out.Message, nil
}

// MarkCommentAdminRepliesRead clears the unread admin replies of one thread.
func (c *Client) MarkCommentAdminRepliesRead(ctx context.Context, commentID uuid.UUID) (string, error) {
	var out models.MessageResponse
	if err := c.do(ctx, http.MethodPut, commentPath(commentID, "/mark-admin-replies-read"), nil, &out, "Failed to mark comment admin replies as read"); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Attachment downloads a thread's attachment and returns its bytes and
// content type.
func (c *Client) Attachment(ctx context.Context, commentID uuid.UUID) ([]byte, string, error) {
	const fallback = "Failed to download attachment"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+commentPath(commentID, "/attachment"), nil)
	if err != nil {
		return nil, "", &Error{Message: fallback, Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &Error{Message: fallback, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", c.responseError(resp, fallback)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Status: resp.StatusCode, Message: fallback, Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}
