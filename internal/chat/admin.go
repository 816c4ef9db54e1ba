package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
)

// Filter selects which chats the admin sidebar shows.
type Filter string

const (
	FilterAll    Filter = "All"
	FilterUnread Filter = "Unread"
	FilterGroups Filter = "Groups"
)

// ParseFilter parses a filter name case-insensitively. Empty means All.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "unread":
		return FilterUnread, nil
	case "groups", "group":
		return FilterGroups, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// ErrEmptyMessage is returned when composing a blank message.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Chat is one row of the admin sidebar: a worker conversation or a group.
type Chat struct {
	ID            uuid.UUID
	Name          string
	IsGroup       bool
	Worker        *models.WorkerRef
	Members       []uuid.UUID
	Unread        int
	LastMessageAt time.Time
	LastReadAt    *time.Time
	Hidden        bool
}

// AdminAPI is the part of the API client the admin inbox uses.
type AdminAPI interface {
	GetAllComments(ctx context.Context, subdomain string) ([]*models.Comment, error)
	Conversations(ctx context.Context, includeHidden bool) ([]*models.ConversationSummary, error)
	ChatGroups(ctx context.Context) ([]*models.ChatGroup, error)
	MarkConversationRead(ctx context.Context, workerID uuid.UUID) error
	MarkAllConversationsRead(ctx context.Context) error
	SetConversationHidden(ctx context.Context, workerID uuid.UUID, hidden bool) error
	ReplyToWorker(ctx context.Context, workerID uuid.UUID, text string, commentID *uuid.UUID) (*models.Comment, error)
}

// AdminInbox is the admin's view of every worker conversation in a tenant.
type AdminInbox struct {
	subdomain string
	byWorker  map[uuid.UUID][]*models.Comment
	chats     []Chat
	fold      cases.Caser
	degraded  bool
}

// NewAdminInbox builds the inbox. Server summaries are authoritative for
// unread counts and hidden state; hints fill in last-read times for workers
// the server did not summarise, e.g. when the summaries could not be fetched.
func NewAdminInbox(subdomain string, list []*models.Comment, summaries []*models.ConversationSummary, groups []*models.ChatGroup, hints map[uuid.UUID]time.Time) *AdminInbox {
	in := &AdminInbox{
		subdomain: subdomain,
		byWorker:  make(map[uuid.UUID][]*models.Comment),
		fold:      cases.Fold(),
	}

	workers := make(map[uuid.UUID]*models.WorkerRef)
	var order []uuid.UUID
	for _, c := range list {
		if c.Worker.IsPlaceholder() || c.Worker.Name == models.UnknownWorkerName {
			continue
		}
		id := *c.Worker.ID
		if _, ok := workers[id]; !ok {
			workers[id] = c.Worker
			order = append(order, id)
		}
		in.byWorker[id] = append(in.byWorker[id], c)
	}

	bySummary := make(map[uuid.UUID]*models.ConversationSummary, len(summaries))
	for _, s := range summaries {
		if s.Worker != nil && s.Worker.ID != nil {
			bySummary[*s.Worker.ID] = s
		}
	}

	var workerChats []Chat
	for _, id := range order {
		ch := Chat{ID: id, Name: workers[id].Name, Worker: workers[id]}
		ch.LastMessageAt = lastActivity(in.byWorker[id])
		if s, ok := bySummary[id]; ok {
			ch.Unread = s.UnreadCount
			ch.LastReadAt = s.LastReadAt
			ch.Hidden = s.Hidden
		} else {
			var lastRead time.Time
			if t, ok := hints[id]; ok {
				lastRead = t
				ch.LastReadAt = &t
			}
			ch.Unread = UnreadSince(in.byWorker[id], lastRead)
		}
		workerChats = append(workerChats, ch)
	}
	sort.SliceStable(workerChats, func(i, j int) bool {
		return workerChats[i].LastMessageAt.After(workerChats[j].LastMessageAt)
	})

	// Groups are listed first and never carry an unread count.
	for _, g := range groups {
		ch := Chat{ID: g.ID, Name: g.Name, IsGroup: true, Members: g.MemberIDs}
		for _, m := range g.MemberIDs {
			if t := lastActivity(in.byWorker[m]); t.After(ch.LastMessageAt) {
				ch.LastMessageAt = t
			}
		}
		in.chats = append(in.chats, ch)
	}
	in.chats = append(in.chats, workerChats...)
	return in
}

// Subdomain returns the tenant the inbox was loaded for.
func (in *AdminInbox) Subdomain() string { return in.subdomain }

// UnreadSince counts the comments and worker replies created after lastRead.
// Admin replies never count.
func UnreadSince(list []*models.Comment, lastRead time.Time) int {
	n := 0
	for _, c := range list {
		if c.CreatedAt.After(lastRead) {
			n++
		}
		for _, r := range c.Replies {
			if !r.IsAdminReply && r.CreatedAt.After(lastRead) {
				n++
			}
		}
	}
	return n
}

func lastActivity(list []*models.Comment) time.Time {
	var last time.Time
	for _, c := range list {
		if c.CreatedAt.After(last) {
			last = c.CreatedAt
		}
		for _, r := range c.Replies {
			if r.CreatedAt.After(last) {
				last = r.CreatedAt
			}
		}
	}
	return last
}

// Chats returns the sidebar rows matching filter and a case-insensitive
// search on the chat name. Hidden conversations are left out unless
// showHidden is set.
func (in *AdminInbox) Chats(filter Filter, search string, showHidden bool) []Chat {
	needle := in.fold.String(strings.TrimSpace(search))
	out := make([]Chat, 0, len(in.chats))
	for _, ch := range in.chats {
		if ch.Hidden && !showHidden {
			continue
		}
		switch filter {
		case FilterUnread:
			if ch.IsGroup || ch.Unread == 0 {
				continue
			}
		case FilterGroups:
			if !ch.IsGroup {
				continue
			}
		}
		if needle != "" && !strings.Contains(in.fold.String(ch.Name), needle) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Chat looks up a sidebar row by ID.
func (in *AdminInbox) Chat(id uuid.UUID) (Chat, bool) {
	for _, ch := range in.chats {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chat{}, false
}

// TotalUnread sums the unread counts of visible worker chats.
func (in *AdminInbox) TotalUnread() int {
	n := 0
	for _, ch := range in.chats {
		if !ch.IsGroup && !ch.Hidden {
			n += ch.Unread
		}
	}
	return n
}

// Messages returns the merged chronological conversation of a chat. A group
// merges the conversations of its members.
func (in *AdminInbox) Messages(id uuid.UUID) []Message {
	ch, ok := in.Chat(id)
	if !ok {
		return nil
	}
	if !ch.IsGroup {
		return Flatten(in.byWorker[id])
	}
	var list []*models.Comment
	for _, m := range ch.Members {
		list = append(list, in.byWorker[m]...)
	}
	return Flatten(list)
}

// ReplyTarget returns the worker's most recent comment, the thread an admin
// reply is attached to.
func (in *AdminInbox) ReplyTarget(workerID uuid.UUID) (*models.Comment, bool) {
	var latest *models.Comment
	for _, c := range in.byWorker[workerID] {
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest, latest != nil
}

func (in *AdminInbox) update(id uuid.UUID, fn func(*Chat)) {
	for i := range in.chats {
		if in.chats[i].ID == id {
			fn(&in.chats[i])
			return
		}
	}
}

// LoadAdminInbox fetches the tenant's comments, conversation summaries and
// chat groups. Summaries or groups failing to load degrade to hint-based
// unread counts and no groups, and the inbox reports itself Degraded;
// comments failing to load is an error.
func LoadAdminInbox(ctx context.Context, api AdminAPI, subdomain string, hints map[uuid.UUID]time.Time, logger zerolog.Logger) (*AdminInbox, error) {
	log := logger.With().Str("component", "admin_inbox").Logger()

	list, err := api.GetAllComments(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	degraded := false
	summaries, err := api.Conversations(ctx, true)
	if err != nil {
		log.Warn().Err(err).Msg("conversation summaries unavailable, using local unread hints")
		summaries = nil
		degraded = true
	}
	groups, err := api.ChatGroups(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("chat groups unavailable")
		groups = nil
		degraded = true
	}
	in := NewAdminInbox(subdomain, list, summaries, groups, hints)
	in.degraded = degraded
	return in, nil
}

// Degraded reports whether the inbox was built without server summaries or
// groups, so unread counts come from local hints.
func (in *AdminInbox) Degraded() bool {
	return in.degraded
}

// MarkRead marks a worker chat read on the server and locally.
func (in *AdminInbox) MarkRead(ctx context.Context, api AdminAPI, workerID uuid.UUID, now time.Time) error {
	if err := api.MarkConversationRead(ctx, workerID); err != nil {
		return err
	}
	in.update(workerID, func(ch *Chat) {
		ch.Unread = 0
		ch.LastReadAt = &now
	})
	return nil
}

// MarkAllRead marks every worker chat read.
func (in *AdminInbox) MarkAllRead(ctx context.Context, api AdminAPI, now time.Time) error {
	if err := api.MarkAllConversationsRead(ctx); err != nil {
		return err
	}
	for i := range in.chats {
		if !in.chats[i].IsGroup {
			in.chats[i].Unread = 0
			in.chats[i].LastReadAt = &now
		}
	}
	return nil
}

// SetHidden hides or restores worker chats.
func (in *AdminInbox) SetHidden(ctx context.Context, api AdminAPI, hidden bool, workerIDs ...uuid.UUID) error {
	for _, id := range workerIDs {
		if err := api.SetConversationHidden(ctx, id, hidden); err != nil {
			return err
		}
		in.update(id, func(ch *Chat) { ch.Hidden = hidden })
	}
	return nil
}

// Reply answers a worker on their most recent thread.
func (in *AdminInbox) Reply(ctx context.Context, api AdminAPI, workerID uuid.UUID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	target, ok := in.ReplyTarget(workerID)
	if !ok {
		return nil, fmt.Errorf("no comments from worker %s to reply to", workerID)
	}
	updated, err := api.ReplyToWorker(ctx, workerID, text, &target.ID)
	if err != nil {
		return nil, err
	}
	in.replace(workerID, updated)
	return updated, nil
}

func (in *AdminInbox) replace(workerID uuid.UUID, c *models.Comment) {
	list := in.byWorker[workerID]
	for i := range list {
		if list[i].ID == c.ID {
			if c.Worker == nil {
				c.Worker = list[i].Worker
			}
			list[i] = c
			break
		}
	}
	in.update(workerID, func(ch *Chat) { ch.LastMessageAt = lastActivity(list) })
}
