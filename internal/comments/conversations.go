package comments

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConversationStore persists per-admin read cursors and chat groups.
type ConversationStore interface {
	ListReadCursors(ctx context.Context, readerID uuid.UUID, subdomain string) ([]*models.ReadCursor, error)
	AdvanceReadCursor(ctx context.Context, readerID, workerID uuid.UUID, subdomain string, at time.Time) error
	AdvanceAllReadCursors(ctx context.Context, readerID uuid.UUID, subdomain string, at time.Time) (int64, error)
	SetConversationHidden(ctx context.Context, readerID, workerID uuid.UUID, subdomain string, hidden bool) error
	CreateChatGroup(ctx context.Context, g *models.ChatGroup) error
	ListChatGroups(ctx context.Context, subdomain string) ([]*models.ChatGroup, error)
	DeleteChatGroup(ctx context.Context, id uuid.UUID, subdomain string) error
}

// Inbox serves an admin's view of the tenant: one conversation per
// commenting worker with server-side unread counts.
type Inbox struct {
	svc    *Service
	store  ConversationStore
	now    func() time.Time
	logger zerolog.Logger
}

// NewInbox creates an Inbox backed by svc for comment access.
func NewInbox(svc *Service, store ConversationStore, logger zerolog.Logger) *Inbox {
	return &Inbox{
		svc:    svc,
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "inbox").Logger(),
	}
}

func (i *Inbox) fail(msg, missing string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound(missing)
	}
	i.logger.Error().Err(err).Msg(msg)
	return internal(msg, err)
}

// Summarize folds a tenant's comments into per-worker conversation
// summaries. Unread counts include comments and worker replies created
// after the reader's cursor; admin replies never count. Orphaned comments
// are skipped. The result is ordered by most recent activity.
func Summarize(comments []*models.Comment, cursors []*models.ReadCursor) []*models.ConversationSummary {
	byWorker := make(map[uuid.UUID]*models.ReadCursor, len(cursors))
	for _, rc := range cursors {
		byWorker[rc.WorkerID] = rc
	}

	summaries := make(map[uuid.UUID]*models.ConversationSummary)
	newest := make(map[uuid.UUID]time.Time)
	var order []uuid.UUID
	for _, c := range comments {
		if c.WorkerID == nil {
			continue
		}
		wid := *c.WorkerID
		s, ok := summaries[wid]
		if !ok {
			s = &models.ConversationSummary{Worker: c.Worker, LatestCommentID: c.ID}
			if rc, ok := byWorker[wid]; ok {
				ts := rc.LastReadAt
				s.LastReadAt = &ts
				s.Hidden = rc.Hidden
			}
			summaries[wid] = s
			newest[wid] = c.CreatedAt
			order = append(order, wid)
		}
		if c.CreatedAt.After(newest[wid]) {
			newest[wid] = c.CreatedAt
			s.LatestCommentID = c.ID
		}

		last := c.CreatedAt
		if unreadAfter(s.LastReadAt, c.CreatedAt) {
			s.UnreadCount++
		}
		for _, r := range c.Replies {
			if r.CreatedAt.After(last) {
				last = r.CreatedAt
			}
			if !r.IsAdminReply && unreadAfter(s.LastReadAt, r.CreatedAt) {
				s.UnreadCount++
			}
		}
		if last.After(s.LastMessageAt) {
			s.LastMessageAt = last
		}
	}

	out := make([]*models.ConversationSummary, 0, len(order))
	for _, wid := range order {
		out = append(out, summaries[wid])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].LastMessageAt.After(out[b].LastMessageAt)
	})
	return out
}

func unreadAfter(lastRead *time.Time, at time.Time) bool {
	return lastRead == nil || at.After(*lastRead)
}

// List returns the caller's conversations. Hidden conversations are left
// out unless includeHidden is set.
func (i *Inbox) List(ctx context.Context, caller Caller, includeHidden bool) ([]*models.ConversationSummary, error) {
	comments, err := i.svc.ListByTenant(ctx, caller, caller.Subdomain)
	if err != nil {
		return nil, err
	}
	cursors, err := i.store.ListReadCursors(ctx, caller.ID, caller.Subdomain)
	if err != nil {
		return nil, i.fail("Failed to fetch conversations", "Worker not found", err)
	}

	all := Summarize(comments, cursors)
	if includeHidden {
		return all, nil
	}
	visible := make([]*models.ConversationSummary, 0, len(all))
	for _, s := range all {
		if !s.Hidden {
			visible = append(visible, s)
		}
	}
	return visible, nil
}

// MarkRead moves the caller's cursor for workerID to now.
func (i *Inbox) MarkRead(ctx context.Context, caller Caller, workerID uuid.UUID) error {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := i.store.AdvanceReadCursor(ctx, caller.ID, workerID, caller.Subdomain, i.now()); err != nil {
		return i.fail("Failed to mark conversation as read", "Worker not found", err)
	}
	return nil
}

// MarkAllRead moves every cursor of the caller to now.
func (i *Inbox) MarkAllRead(ctx context.Context, caller Caller) (int64, error) {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return 0, err
	}
	n, err := i.store.AdvanceAllReadCursors(ctx, caller.ID, caller.Subdomain, i.now())
	if err != nil {
		return 0, i.fail("Failed to mark conversations as read", "Worker not found", err)
	}
	return n, nil
}

// SetHidden hides or restores a worker's conversation in the caller's list.
// Comments are not touched.
func (i *Inbox) SetHidden(ctx context.Context, caller Caller, workerID uuid.UUID, hidden bool) error {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := i.store.SetConversationHidden(ctx, caller.ID, workerID, caller.Subdomain, hidden); err != nil {
		return i.fail("Failed to update conversation", "Worker not found", err)
	}
	i.logger.Info().
		Str("worker_id", workerID.String()).
		Bool("hidden", hidden).
		Msg("conversation visibility changed")
	return nil
}

// Reply adds an admin reply to a worker's conversation. The target thread
// is commentID when given, otherwise the worker's most recent comment. The
// caller's cursor advances past the reply.
func (i *Inbox) Reply(ctx context.Context, caller Caller, workerID uuid.UUID, req models.AdminReplyRequest) (*models.Comment, error) {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}

	var target uuid.UUID
	if req.CommentID != "" {
		id, err := uuid.Parse(req.CommentID)
		if err != nil {
			return nil, validation("Invalid comment ID")
		}
		c, err := i.svc.load(ctx, caller, id)
		if err != nil {
			return nil, err
		}
		if !ownedBy(c, Caller{ID: workerID}) {
			return nil, notFound("Comment not found")
		}
		target = id
	} else {
		list, err := i.svc.ListByWorker(ctx, caller, workerID)
		if err != nil {
			return nil, err
		}
		newest := LatestComment(list)
		if newest == nil {
			return nil, notFound("No conversation with this worker")
		}
		target = newest.ID
	}

	c, err := i.svc.AddReply(ctx, caller, target, req.Text)
	if err != nil {
		return nil, err
	}
	if err := i.store.AdvanceReadCursor(ctx, caller.ID, workerID, caller.Subdomain, i.now()); err != nil {
		i.logger.Warn().Err(err).Str("worker_id", workerID.String()).Msg("failed to advance read cursor after reply")
	}
	return c, nil
}

// LatestComment returns the comment with the newest creation time, or nil.
func LatestComment(list []*models.Comment) *models.Comment {
	var latest *models.Comment
	for _, c := range list {
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest
}

// Groups returns the tenant's chat groups.
func (i *Inbox) Groups(ctx context.Context, caller Caller) ([]*models.ChatGroup, error) {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	groups, err := i.store.ListChatGroups(ctx, caller.Subdomain)
	if err != nil {
		return nil, i.fail("Failed to fetch chat groups", "Chat group not found", err)
	}
	if groups == nil {
		groups = []*models.ChatGroup{}
	}
	return groups, nil
}

// CreateGroup stores a new chat group. Unknown member IDs are dropped.
func (i *Inbox) CreateGroup(ctx context.Context, caller Caller, req models.CreateChatGroupRequest) (*models.ChatGroup, error) {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, validation("Group name is required")
	}
	members := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, validation("Invalid member ID: " + raw)
		}
		members = append(members, id)
	}

	g := models.NewChatGroup(caller.Subdomain, req.Name, caller.ID, members)
	if err := i.store.CreateChatGroup(ctx, g); err != nil {
		return nil, i.fail("Failed to create chat group", "Chat group not found", err)
	}
	i.logger.Info().Str("group_id", g.ID.String()).Int("members", len(g.MemberIDs)).Msg("chat group created")
	return g, nil
}

// DeleteGroup removes a chat group of the caller's tenant.
func (i *Inbox) DeleteGroup(ctx context.Context, caller Caller, id uuid.UUID) error {
	if err := requireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := i.store.DeleteChatGroup(ctx, id, caller.Subdomain); err != nil {
		return i.fail("Failed to delete chat group", "Chat group not found", err)
	}
	return nil
}
