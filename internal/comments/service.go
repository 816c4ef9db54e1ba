// Package comments implements the worker/admin comment threads: creation,
// replies, read-state transitions and tenant-scoped listing.
package comments

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxAttachmentBytes bounds the decoded size of a comment attachment.
const MaxAttachmentBytes = 5 << 20

// Store is the persistence the service needs.
type Store interface {
	ListComments(ctx context.Context, f db.CommentFilter) ([]*models.Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	GetCommentAttachment(ctx context.Context, id uuid.UUID) (*models.Attachment, string, error)
	AddReply(ctx context.Context, r *models.Reply) (*models.Comment, error)
	MarkCommentRead(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	MarkCommentAdminRepliesRead(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	MarkAllAdminRepliesRead(ctx context.Context, workerID uuid.UUID) (int64, error)
}

// AttachmentStore keeps attachment bytes outside the database.
type AttachmentStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Recorder receives domain events for instrumentation.
type Recorder interface {
	CommentCreated()
	ReplyAdded(role models.Role)
	MarkedRead(kind string)
}

type nopRecorder struct{}

func (nopRecorder) CommentCreated()        {}
func (nopRecorder) ReplyAdded(models.Role) {}
func (nopRecorder) MarkedRead(string)      {}

// Caller identifies the authenticated account performing an operation.
type Caller struct {
	ID        uuid.UUID
	Role      models.Role
	Subdomain string
	Name      string
}

// IsAdmin reports whether the caller has the admin role.
func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

// Service implements the comment operations on top of a Store.
type Service struct {
	store       Store
	attachments AttachmentStore
	recorder    Recorder
	logger      zerolog.Logger
}

// NewService creates a new Service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		recorder: nopRecorder{},
		logger:   logger.With().Str("component", "comments").Logger(),
	}
}

// WithRecorder reports domain events to r.
func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithAttachmentStore moves attachment bytes to s instead of the database.
func (s *Service) WithAttachmentStore(a AttachmentStore) *Service {
	s.attachments = a
	return s
}

func (s *Service) storeErr(msg string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound("Comment not found")
	}
	s.logger.Error().Err(err).Msg(msg)
	return internal(msg, err)
}

// load fetches a comment and applies the tenant guard. A comment of another
// tenant is reported as missing.
func (s *Service) load(ctx context.Context, caller Caller, id uuid.UUID) (*models.Comment, error) {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, s.storeErr("Failed to fetch comment", err)
	}
	if c.Subdomain != caller.Subdomain {
		return nil, notFound("Comment not found")
	}
	return c, nil
}

func ownedBy(c *models.Comment, caller Caller) bool {
	return c.WorkerID != nil && *c.WorkerID == caller.ID
}

func requireRole(caller Caller, role models.Role) error {
	if caller.Role != role {
		return forbidden(fmt.Sprintf("%s access required", role))
	}
	return nil
}

func validTenant(subdomain string) error {
	if !models.IsTenantSubdomain(subdomain) {
		return validation("Company name is missing, login again.")
	}
	return nil
}

// ListByWorker returns all comments of a worker in the caller's tenant,
// newest first. Admin only.
func (s *Service) ListByWorker(ctx context.Context, caller Caller, workerID uuid.UUID) ([]*models.Comment, error) {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.list(ctx, db.CommentFilter{Subdomain: caller.Subdomain, WorkerID: &workerID})
}

// ListMine returns the caller's own comments, newest first. Worker only.
func (s *Service) ListMine(ctx context.Context, caller Caller) ([]*models.Comment, error) {
	if err := requireRole(caller, models.RoleWorker); err != nil {
		return nil, err
	}
	return s.list(ctx, db.CommentFilter{Subdomain: caller.Subdomain, WorkerID: &caller.ID})
}

// ListByTenant returns every comment of subdomain, newest first. Comments
// whose worker was deleted carry the placeholder worker. Admin only.
func (s *Service) ListByTenant(ctx context.Context, caller Caller, subdomain string) ([]*models.Comment, error) {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validTenant(subdomain); err != nil {
		return nil, err
	}
	if subdomain != caller.Subdomain {
		return nil, forbidden("Not authorized for this company")
	}
	return s.list(ctx, db.CommentFilter{Subdomain: subdomain})
}

// ListUnreadAdminReplies returns the caller's comments that have an admin
// reply the caller has not read. Worker only.
func (s *Service) ListUnreadAdminReplies(ctx context.Context, caller Caller) ([]*models.Comment, error) {
	if err := requireRole(caller, models.RoleWorker); err != nil {
		return nil, err
	}
	return s.list(ctx, db.CommentFilter{
		Subdomain:          caller.Subdomain,
		WorkerID:           &caller.ID,
		UnreadAdminReplies: true,
	})
}

func (s *Service) list(ctx context.Context, f db.CommentFilter) ([]*models.Comment, error) {
	list, err := s.store.ListComments(ctx, f)
	if err != nil {
		return nil, s.storeErr("Failed to fetch comments", err)
	}
	if list == nil {
		list = []*models.Comment{}
	}
	for _, c := range list {
		c.EnsureWorker()
	}
	return list, nil
}

// Create opens a new thread owned by the calling worker.
func (s *Service) Create(ctx context.Context, caller Caller, req models.CreateCommentRequest) (*models.Comment, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, validation("Comment text is missing")
	}
	if err := validTenant(req.Subdomain); err != nil {
		return nil, err
	}
	if err := requireRole(caller, models.RoleWorker); err != nil {
		return nil, err
	}
	if req.Subdomain != caller.Subdomain {
		return nil, forbidden("Not authorized for this company")
	}

	c := models.NewComment(caller.ID, req.Subdomain, req.Text)
	if in := req.Attachment; in != nil {
		att, err := s.attachment(ctx, c, in)
		if err != nil {
			return nil, err
		}
		c.Attachment = att
	}

	created, err := s.store.CreateComment(ctx, c)
	if err != nil {
		s.logger.Error().Err(err).Str("subdomain", c.Subdomain).Msg("failed to create comment")
		return nil, internal("Failed to create comment", err)
	}
	created.EnsureWorker()
	s.recorder.CommentCreated()

	s.logger.Info().
		Str("comment_id", created.ID.String()).
		Str("worker_id", caller.ID.String()).
		Str("subdomain", created.Subdomain).
		Msg("comment created")
	return created, nil
}

func (s *Service) attachment(ctx context.Context, c *models.Comment, in *models.AttachmentInput) (*models.Attachment, error) {
	if strings.TrimSpace(in.Name) == "" || len(in.Data) == 0 {
		return nil, validation("Attachment name and data are required")
	}
	if len(in.Data) > MaxAttachmentBytes {
		return nil, validation("Attachment is too large")
	}

	att := &models.Attachment{
		Name: path.Base(in.Name),
		Type: in.Type,
		Size: int64(len(in.Data)),
		Data: in.Data,
	}
	if s.attachments == nil {
		return att, nil
	}

	key := path.Join(c.Subdomain, c.ID.String(), att.Name)
	if err := s.attachments.Put(ctx, key, att.Type, in.Data); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to store attachment")
		return nil, internal("Failed to create comment", err)
	}
	att.StorageKey = key
	att.Data = nil
	return att, nil
}

// Attachment returns a comment's attachment with its bytes.
func (s *Service) Attachment(ctx context.Context, caller Caller, id uuid.UUID) (*models.Attachment, error) {
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !ownedBy(c, caller) {
		return nil, notFound("Comment not found")
	}

	att, _, err := s.store.GetCommentAttachment(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Attachment not found")
		}
		return nil, s.storeErr("Failed to fetch attachment", err)
	}
	if att.StorageKey != "" {
		if s.attachments == nil {
			return nil, internal("Failed to fetch attachment", fmt.Errorf("no attachment store for key %s", att.StorageKey))
		}
		data, err := s.attachments.Get(ctx, att.StorageKey)
		if err != nil {
			return nil, s.storeErr("Failed to fetch attachment", err)
		}
		att.Data = data
	}
	return att, nil
}

// AddReply appends a reply from the caller. Admin replies raise the
// comment's unread-admin-reply flag; any reply marks the comment new.
func (s *Service) AddReply(ctx context.Context, caller Caller, id uuid.UUID, text string) (*models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validation("Please add text to your reply")
	}
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !ownedBy(c, caller) {
		return nil, notFound("Comment not found")
	}

	updated, err := s.store.AddReply(ctx, models.NewReply(c, caller.ID, text, caller.Role))
	if err != nil {
		return nil, s.storeErr("Failed to add reply", err)
	}
	updated.EnsureWorker()
	s.recorder.ReplyAdded(caller.Role)

	s.logger.Info().
		Str("comment_id", id.String()).
		Str("role", string(caller.Role)).
		Msg("reply added")
	return updated, nil
}

// MarkRead clears the new flag on a comment and all of its replies.
func (s *Service) MarkRead(ctx context.Context, caller Caller, id uuid.UUID) (*models.Comment, error) {
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !ownedBy(c, caller) {
		return nil, notFound("Comment not found")
	}
	updated, err := s.store.MarkCommentRead(ctx, id)
	if err != nil {
		return nil, s.storeErr("Failed to mark comment as read", err)
	}
	updated.EnsureWorker()
	s.recorder.MarkedRead("comment")
	return updated, nil
}

// MarkCommentAdminRepliesRead clears the new flag on one comment's admin
// replies. Worker replies are left untouched.
func (s *Service) MarkCommentAdminRepliesRead(ctx context.Context, caller Caller, id uuid.UUID) (*models.Comment, error) {
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !ownedBy(c, caller) {
		return nil, notFound("Comment not found")
	}
	updated, err := s.store.MarkCommentAdminRepliesRead(ctx, id)
	if err != nil {
		return nil, s.storeErr("Failed to mark comment admin replies as read", err)
	}
	updated.EnsureWorker()
	s.recorder.MarkedRead("comment_admin_replies")
	return updated, nil
}

// MarkAllAdminRepliesRead clears admin reply flags across all of the
// caller's comments and returns how many comments changed. Admins own no
// comments, so for them it is a no-op.
func (s *Service) MarkAllAdminRepliesRead(ctx context.Context, caller Caller) (int64, error) {
	if caller.IsAdmin() {
		return 0, nil
	}
	n, err := s.store.MarkAllAdminRepliesRead(ctx, caller.ID)
	if err != nil {
		return 0, s.storeErr("Failed to mark admin replies as read", err)
	}
	s.recorder.MarkedRead("all_admin_replies")
	return n, nil
}
