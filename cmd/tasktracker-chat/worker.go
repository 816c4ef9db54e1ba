package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MacJediWizard/tasktracker/internal/chat"
	"github.com/MacJediWizard/tasktracker/internal/comments"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newWorkerCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worker",
		Aliases: []string{"w"},
		Short:   "Worker commands: your thread with the admins",
	}
	cmd.AddCommand(
		newWorkerThreadCmd(opts),
		newWorkerSendCmd(opts),
		newWorkerReplyCmd(opts),
		newWorkerReadCmd(opts),
		newWorkerWatchCmd(opts),
	)
	return cmd
}

func showThread(cmd *cobra.Command, s *session, thread *chat.WorkerThread) {
	theme := s.theme(cmd.Context())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)", s.cfg.Name, s.cfg.Subdomain)
	if n := thread.UnreadBadge(); n > 0 {
		fmt.Fprintf(out, " - %d unread admin repl%s", n, plural(n, "y", "ies"))
	}
	fmt.Fprintln(out)
	renderMessages(out, chat.GroupByDay(thread.Messages, chat.RelativeDayLabel(now())), paletteFor(theme), chat.SenderWorker)
}

func newWorkerThreadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "thread",
		Short: "Show your conversation with the admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(models.RoleWorker)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			list, err := s.api.GetMyComments(ctx)
			if err != nil {
				return err
			}
			showThread(cmd, s, chat.NewWorkerThread(list))
			return nil
		},
	}
}

func newWorkerSendCmd(opts *globalOptions) *cobra.Command {
	var attach string

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Start a new comment thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(models.RoleWorker)
			if err != nil {
				return err
			}
			defer s.Close()

			var attachment *models.AttachmentInput
			if attach != "" {
				if attachment, err = readAttachment(attach); err != nil {
					return err
				}
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			c, err := chat.Compose(ctx, s.api, s.cfg.Subdomain, args[0], attachment)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent (comment %s).\n", c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "", "file to attach")
	return cmd
}

func readAttachment(path string) (*models.AttachmentInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	if info.Size() > comments.MaxAttachmentBytes {
		return nil, fmt.Errorf("attachment is larger than %d bytes", comments.MaxAttachmentBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.AttachmentInput{Name: filepath.Base(path), Type: contentType, Data: data}, nil
}

func newWorkerReplyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <message> [comment-id]",
		Short: "Add to an existing thread, the latest one by default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(models.RoleWorker)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var target uuid.UUID
			if len(args) == 2 {
				if target, err = uuid.Parse(args[1]); err != nil {
					return fmt.Errorf("invalid comment id: %w", err)
				}
			} else {
				list, err := s.api.GetMyComments(ctx)
				if err != nil {
					return err
				}
				latest, ok := chat.NewWorkerThread(list).Latest()
				if !ok {
					return errors.New("no thread yet, use 'worker send' to start one")
				}
				target = latest.ID
			}

			if _, err := chat.FollowUp(ctx, s.api, target, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reply sent.")
			return nil
		},
	}
}

func newWorkerReadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read [comment-id]",
		Short: "Mark admin replies read, on one thread or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(models.RoleWorker)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var msg string
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid comment id: %w", err)
				}
				msg, err = s.api.MarkCommentAdminRepliesRead(ctx, id)
				if err != nil {
					return err
				}
			} else if msg, err = s.api.MarkAdminRepliesRead(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newWorkerWatchCmd(opts *globalOptions) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the thread and print new messages as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(models.RoleWorker)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			theme := s.theme(ctx)
			p := paletteFor(theme)
			out := cmd.OutOrStdout()
			first := true

			poller := chat.NewPoller(s.api, schedule, func(u chat.Update) {
				if first {
					first = false
					showThread(cmd, s, u.Thread)
					fmt.Fprintln(out, "\nWatching for new messages, Ctrl-C to stop.")
					return
				}
				for _, m := range u.Added {
					renderMessage(out, m, p, chat.SenderWorker)
				}
			}, opts.logger())

			if err := poller.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			poller.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "every", chat.PollSchedule, "poll schedule")
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
