// Package chat builds the admin inbox and worker thread views shown by the
// terminal client from comment data fetched over the API.
package chat

import (
	"sort"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
)

// Sender identifies which side wrote a message.
type Sender string

const (
	SenderWorker Sender = "worker"
	SenderAdmin  Sender = "admin"
)

// Message is one entry of a merged conversation. A comment and each of its
// replies become separate messages.
type Message struct {
	ID         string
	CommentID  uuid.UUID
	WorkerID   uuid.UUID
	Sender     Sender
	Text       string
	CreatedAt  time.Time
	IsNew      bool
	Attachment *models.Attachment
}

// Flatten turns comments into a chronological message list. Ties keep
// comment-before-reply order.
func Flatten(list []*models.Comment) []Message {
	var msgs []Message
	for _, c := range list {
		var workerID uuid.UUID
		if c.WorkerID != nil {
			workerID = *c.WorkerID
		} else if c.Worker != nil && c.Worker.ID != nil {
			workerID = *c.Worker.ID
		}
		msgs = append(msgs, Message{
			ID:         c.ID.String(),
			CommentID:  c.ID,
			WorkerID:   workerID,
			Sender:     SenderWorker,
			Text:       c.Text,
			CreatedAt:  c.CreatedAt,
			IsNew:      c.IsNew,
			Attachment: c.Attachment,
		})
		for _, r := range c.Replies {
			sender := SenderWorker
			if r.IsAdminReply {
				sender = SenderAdmin
			}
			msgs = append(msgs, Message{
				ID:        c.ID.String() + "-" + r.ID.String(),
				CommentID: c.ID,
				WorkerID:  workerID,
				Sender:    sender,
				Text:      r.Text,
				CreatedAt: r.CreatedAt,
				IsNew:     r.IsNew,
			})
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

// DayGroup is a run of messages sharing a date header.
type DayGroup struct {
	Label    string
	Messages []Message
}

// GroupByDay splits chronological messages under date headers produced by
// label. Message order is preserved.
func GroupByDay(msgs []Message, label func(time.Time) string) []DayGroup {
	var groups []DayGroup
	for _, m := range msgs {
		l := label(m.CreatedAt)
		if n := len(groups); n > 0 && groups[n-1].Label == l {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DayGroup{Label: l, Messages: []Message{m}})
	}
	return groups
}

// RelativeDayLabel returns "Today", "Yesterday" or a date like
// "02 Jan 2006", relative to now in now's location.
func RelativeDayLabel(now time.Time) func(time.Time) string {
	loc := now.Location()
	today := startOfDay(now)
	yesterday := today.AddDate(0, 0, -1)
	return func(t time.Time) string {
		day := startOfDay(t.In(loc))
		switch {
		case day.Equal(today):
			return "Today"
		case day.Equal(yesterday):
			return "Yesterday"
		default:
			return day.Format("02 Jan 2006")
		}
	}
}

// LongDayLabel formats a date header like "January 02, 2006" in loc.
func LongDayLabel(loc *time.Location) func(time.Time) string {
	if loc == nil {
		loc = time.Local
	}
	return func(t time.Time) string {
		return t.In(loc).Format("January 02, 2006")
	}
}

// ClockTime formats the time of a message like "3:04 PM".
func ClockTime(t time.Time) string {
	return t.Format("3:04 PM")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
