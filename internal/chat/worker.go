package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PollSchedule is how often the worker view re-fetches its thread.
const PollSchedule = "@every 30s"

// ErrInvalidSubdomain is returned when composing without a tenant.
var ErrInvalidSubdomain = errors.New("invalid subdomain")

// WorkerAPI is the part of the API client the worker view uses.
type WorkerAPI interface {
	GetMyComments(ctx context.Context) ([]*models.Comment, error)
	CreateComment(ctx context.Context, req models.CreateCommentRequest) (*models.Comment, error)
	AddReply(ctx context.Context, commentID uuid.UUID, text string) (*models.Comment, error)
	MarkCommentAdminRepliesRead(ctx context.Context, commentID uuid.UUID) (string, error)
	MarkAdminRepliesRead(ctx context.Context) (string, error)
}

// WorkerThread is a worker's own comments and their replies as one
// conversation.
type WorkerThread struct {
	Comments []*models.Comment
	Messages []Message
}

// NewWorkerThread builds the thread from the worker's comments.
func NewWorkerThread(list []*models.Comment) *WorkerThread {
	return &WorkerThread{Comments: list, Messages: Flatten(list)}
}

// UnreadBadge counts admin replies still flagged new.
func (t *WorkerThread) UnreadBadge() int {
	n := 0
	for _, m := range t.Messages {
		if m.Sender == SenderAdmin && m.IsNew {
			n++
		}
	}
	return n
}

// UnreadComments returns the IDs of comments holding unread admin replies.
func (t *WorkerThread) UnreadComments() []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range t.Comments {
		if c.UnreadAdminReplies() > 0 {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Latest returns the most recently created comment of the thread.
func (t *WorkerThread) Latest() (*models.Comment, bool) {
	var latest *models.Comment
	for _, c := range t.Comments {
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest, latest != nil
}

// Compose validates and sends a new top-level comment.
func Compose(ctx context.Context, api WorkerAPI, subdomain, text string, attachment *models.AttachmentInput) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !models.IsTenantSubdomain(subdomain) {
		return nil, ErrInvalidSubdomain
	}
	return api.CreateComment(ctx, models.CreateCommentRequest{
		Text:       text,
		Subdomain:  subdomain,
		Attachment: attachment,
	})
}

// FollowUp adds a worker reply to an existing comment.
func FollowUp(ctx context.Context, api WorkerAPI, commentID uuid.UUID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	return api.AddReply(ctx, commentID, text)
}

// Update is delivered by the Poller after each successful fetch. Added holds
// the messages not seen by the previous fetch; it is empty on the first one.
type Update struct {
	Thread *WorkerThread
	Added  []Message
}

// Poller re-fetches a worker's thread on a fixed schedule.
type Poller struct {
	api      WorkerAPI
	schedule string
	onUpdate func(Update)
	cron     *cron.Cron
	logger   zerolog.Logger

	mu      sync.Mutex
	seen    map[string]bool
	primed  bool
	running bool
	done    chan struct{}
	entry   cron.EntryID
}

// NewPoller creates a Poller. An empty schedule means PollSchedule.
func NewPoller(api WorkerAPI, schedule string, onUpdate func(Update), logger zerolog.Logger) *Poller {
	if schedule == "" {
		schedule = PollSchedule
	}
	return &Poller{
		api:      api,
		schedule: schedule,
		onUpdate: onUpdate,
		cron:     cron.New(),
		logger:   logger.With().Str("component", "chat_poller").Logger(),
		seen:     make(map[string]bool),
	}
}

// Start fetches once and then on every tick until Stop or ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	entry, err := p.cron.AddFunc(p.schedule, func() {
		if err := p.Poll(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("poll failed")
		}
	})
	if err != nil {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return err
	}
	p.mu.Lock()
	p.entry = entry
	p.mu.Unlock()

	if err := p.Poll(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("initial poll failed")
	}
	p.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-done:
		}
	}()

	p.logger.Debug().Str("schedule", p.schedule).Msg("poller started")
	return nil
}

// Stop stops the schedule and waits for a running poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	entry := p.entry
	p.mu.Unlock()

	<-p.cron.Stop().Done()
	p.cron.Remove(entry)
}

// Poll fetches the thread once and reports it.
func (p *Poller) Poll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	list, err := p.api.GetMyComments(ctx)
	if err != nil {
		return err
	}
	thread := NewWorkerThread(list)

	p.mu.Lock()
	var added []Message
	for _, m := range thread.Messages {
		if !p.seen[m.ID] {
			p.seen[m.ID] = true
			if p.primed {
				added = append(added, m)
			}
		}
	}
	p.primed = true
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(Update{Thread: thread, Added: added})
	}
	return nil
}
