package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/chat"
	"github.com/MacJediWizard/tasktracker/internal/models"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiCyan  = "\033[36m"
	ansiGreen = "\033[32m"
)

// palette colours output by theme. Light keeps plain text.
type palette struct {
	header, admin, worker, dim, reset string
}

func paletteFor(theme string) palette {
	if theme != chat.ThemeDark {
		return palette{}
	}
	return palette{
		header: ansiBold,
		admin:  ansiCyan,
		worker: ansiGreen,
		dim:    ansiDim,
		reset:  ansiReset,
	}
}

func renderMessages(out io.Writer, groups []chat.DayGroup, p palette, you chat.Sender) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(out, "\n%s── %s ──%s\n", p.header, g.Label, p.reset)
		for _, m := range g.Messages {
			renderMessage(out, m, p, you)
		}
	}
}

func renderMessage(out io.Writer, m chat.Message, p palette, you chat.Sender) {
	who, colour := "Admin", p.admin
	if m.Sender == chat.SenderWorker {
		who, colour = "Worker", p.worker
	}
	if m.Sender == you {
		who = "You"
	}
	marker := " "
	if m.IsNew && m.Sender != you {
		marker = "*"
	}
	fmt.Fprintf(out, "%s %s%-6s%s %s%s%s  %s\n",
		marker, colour, who, p.reset, p.dim, chat.ClockTime(m.CreatedAt.Local()), p.reset, m.Text)
	if m.Attachment != nil {
		fmt.Fprintf(out, "         %s[attachment %s, %s] id %s%s\n",
			p.dim, m.Attachment.Name, humanSize(m.Attachment.Size), m.CommentID, p.reset)
	}
}

func renderChats(out io.Writer, chats []chat.Chat, p palette) {
	if len(chats) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return
	}
	for _, ch := range chats {
		kind := "worker"
		if ch.IsGroup {
			kind = fmt.Sprintf("group of %d", len(ch.Members))
		}
		unread := ""
		if ch.Unread > 0 {
			unread = fmt.Sprintf(" %s(%d unread)%s", p.header, ch.Unread, p.reset)
		}
		hidden := ""
		if ch.Hidden {
			hidden = " [hidden]"
		}
		last := "never"
		if !ch.LastMessageAt.IsZero() {
			last = ch.LastMessageAt.Local().Format("02 Jan 15:04")
		}
		fmt.Fprintf(out, "%s  %-24s %-12s %s%s%s\n", ch.ID, ch.Name, kind, last, unread, hidden)
		if ch.Worker != nil && ch.Worker.Department != nil {
			fmt.Fprintf(out, "%s%38s%s%s\n", p.dim, "", departmentName(ch.Worker), p.reset)
		}
	}
}

func departmentName(w *models.WorkerRef) string {
	if w.Department == nil || strings.TrimSpace(w.Department.Name) == "" {
		return models.UnassignedDepartment
	}
	return w.Department.Name
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func now() time.Time { return time.Now() }
