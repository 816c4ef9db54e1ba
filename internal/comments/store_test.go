package comments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
)

// memStore is an in-memory Store and ConversationStore that follows the
// same bookkeeping rules as the Postgres store.
type memStore struct {
	mu       sync.Mutex
	comments map[uuid.UUID]*models.Comment
	workers  map[uuid.UUID]*models.WorkerRef
	cursors  map[[2]uuid.UUID]*models.ReadCursor
	groups   map[uuid.UUID]*models.ChatGroup
	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		comments: make(map[uuid.UUID]*models.Comment),
		workers:  make(map[uuid.UUID]*models.WorkerRef),
		cursors:  make(map[[2]uuid.UUID]*models.ReadCursor),
		groups:   make(map[uuid.UUID]*models.ChatGroup),
	}
}

func (m *memStore) addWorker(name string) uuid.UUID {
	id := uuid.New()
	m.workers[id] = &models.WorkerRef{
		ID:         &id,
		Name:       name,
		Department: &models.DepartmentRef{Name: "Support"},
	}
	return id
}

func (m *memStore) deleteWorker(id uuid.UUID) {
	delete(m.workers, id)
	for _, c := range m.comments {
		if c.WorkerID != nil && *c.WorkerID == id {
			c.WorkerID = nil
		}
	}
}

// seed stores a comment directly with a fixed creation time.
func (m *memStore) seed(workerID uuid.UUID, subdomain, text string, at time.Time) *models.Comment {
	c := models.NewComment(workerID, subdomain, text)
	c.CreatedAt, c.UpdatedAt = at, at
	m.comments[c.ID] = c
	return c
}

func (m *memStore) view(c *models.Comment) *models.Comment {
	out := *c
	out.Replies = make([]*models.Reply, 0, len(c.Replies))
	for _, r := range c.Replies {
		cp := *r
		out.Replies = append(out.Replies, &cp)
	}
	out.Worker = nil
	if c.WorkerID != nil {
		if w, ok := m.workers[*c.WorkerID]; ok {
			cp := *w
			out.Worker = &cp
		}
	}
	out.EnsureWorker()
	return &out
}

func (m *memStore) ListComments(_ context.Context, f db.CommentFilter) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*models.Comment
	for _, c := range m.comments {
		if f.Subdomain != "" && c.Subdomain != f.Subdomain {
			continue
		}
		if f.WorkerID != nil && (c.WorkerID == nil || *c.WorkerID != *f.WorkerID) {
			continue
		}
		if f.UnreadAdminReplies && !c.HasUnreadAdminReply {
			continue
		}
		out = append(out, m.view(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetComment(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment: %w", db.ErrNotFound)
	}
	return m.view(c), nil
}

func (m *memStore) CreateComment(_ context.Context, c *models.Comment) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	stored := *c
	if c.Attachment != nil {
		att := *c.Attachment
		stored.Attachment = &att
	}
	m.comments[c.ID] = &stored
	out := m.view(&stored)
	if out.Attachment != nil {
		att := *out.Attachment
		att.Data = nil
		att.StorageKey = ""
		out.Attachment = &att
	}
	return out, nil
}

func (m *memStore) GetCommentAttachment(_ context.Context, id uuid.UUID) (*models.Attachment, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, "", fmt.Errorf("comment: %w", db.ErrNotFound)
	}
	if c.Attachment == nil {
		return nil, c.Subdomain, fmt.Errorf("attachment: %w", db.ErrNotFound)
	}
	att := *c.Attachment
	return &att, c.Subdomain, nil
}

func (m *memStore) AddReply(_ context.Context, r *models.Reply) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[r.CommentID]
	if !ok {
		return nil, fmt.Errorf("comment: %w", db.ErrNotFound)
	}
	r.Subdomain = c.Subdomain
	cp := *r
	c.ApplyReply(&cp)
	return m.view(c), nil
}

func (m *memStore) MarkCommentRead(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment: %w", db.ErrNotFound)
	}
	c.MarkRead()
	return m.view(c), nil
}

func (m *memStore) MarkCommentAdminRepliesRead(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment: %w", db.ErrNotFound)
	}
	c.MarkAdminRepliesRead()
	return m.view(c), nil
}

func (m *memStore) MarkAllAdminRepliesRead(_ context.Context, workerID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.comments {
		if c.WorkerID == nil || *c.WorkerID != workerID {
			continue
		}
		if c.HasUnreadAdminReply {
			n++
		}
		c.MarkAdminRepliesRead()
	}
	return n, nil
}

func (m *memStore) ListReadCursors(_ context.Context, readerID uuid.UUID, subdomain string) ([]*models.ReadCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ReadCursor
	for k, rc := range m.cursors {
		if k[0] == readerID && rc.Subdomain == subdomain {
			cp := *rc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) cursor(readerID, workerID uuid.UUID, subdomain string) (*models.ReadCursor, error) {
	if _, ok := m.workers[workerID]; !ok {
		return nil, fmt.Errorf("worker: %w", db.ErrNotFound)
	}
	key := [2]uuid.UUID{readerID, workerID}
	rc, ok := m.cursors[key]
	if !ok {
		rc = &models.ReadCursor{ReaderID: readerID, WorkerID: workerID, Subdomain: subdomain}
		m.cursors[key] = rc
	}
	return rc, nil
}

func (m *memStore) AdvanceReadCursor(_ context.Context, readerID, workerID uuid.UUID, subdomain string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, err := m.cursor(readerID, workerID, subdomain)
	if err != nil {
		return err
	}
	if at.After(rc.LastReadAt) {
		rc.LastReadAt = at
	}
	return nil
}

func (m *memStore) AdvanceAllReadCursors(_ context.Context, readerID uuid.UUID, subdomain string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	for _, c := range m.comments {
		if c.Subdomain != subdomain || c.WorkerID == nil || seen[*c.WorkerID] {
			continue
		}
		seen[*c.WorkerID] = true
		rc, err := m.cursor(readerID, *c.WorkerID, subdomain)
		if err != nil {
			return 0, err
		}
		if at.After(rc.LastReadAt) {
			rc.LastReadAt = at
		}
	}
	return int64(len(seen)), nil
}

func (m *memStore) SetConversationHidden(_ context.Context, readerID, workerID uuid.UUID, subdomain string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, err := m.cursor(readerID, workerID, subdomain)
	if err != nil {
		return err
	}
	rc.Hidden = hidden
	return nil
}

func (m *memStore) CreateChatGroup(_ context.Context, g *models.ChatGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := []uuid.UUID{}
	for _, id := range g.MemberIDs {
		if _, ok := m.workers[id]; ok {
			kept = append(kept, id)
		}
	}
	g.MemberIDs = kept
	cp := *g
	m.groups[g.ID] = &cp
	return nil
}

func (m *memStore) ListChatGroups(_ context.Context, subdomain string) ([]*models.ChatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatGroup
	for _, g := range m.groups {
		if g.Subdomain == subdomain {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) DeleteChatGroup(_ context.Context, id uuid.UUID, subdomain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok || g.Subdomain != subdomain {
		return fmt.Errorf("chat group: %w", db.ErrNotFound)
	}
	delete(m.groups, id)
	return nil
}

// memAttachments is an in-memory AttachmentStore.
type memAttachments struct {
	objects map[string][]byte
	putErr  error
}

func (a *memAttachments) Put(_ context.Context, key, _ string, data []byte) error {
	if a.putErr != nil {
		return a.putErr
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = append([]byte(nil), data...)
	return nil
}

func (a *memAttachments) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}
