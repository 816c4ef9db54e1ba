package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/chat"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAdminCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "admin",
		Aliases: []string{"a"},
		Short:   "Admin commands: the tenant inbox",
	}
	cmd.AddCommand(
		newAdminInboxCmd(opts),
		newAdminShowCmd(opts),
		newAdminReplyCmd(opts),
		newAdminReadCmd(opts),
		newAdminHideCmd(opts, true),
		newAdminHideCmd(opts, false),
		newAdminGroupsCmd(opts),
		newAdminAttachmentCmd(opts),
	)
	return cmd
}

// loadInbox fetches the inbox using cached cursors as unread hints and
// refreshes the cache from the server's answer.
func loadInbox(cmd *cobra.Command, s *session) (*chat.AdminInbox, error) {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	hints, err := s.store.Cursors(ctx, s.cfg.Subdomain)
	if err != nil {
		return nil, err
	}
	inbox, err := chat.LoadAdminInbox(ctx, s.api, s.cfg.Subdomain, hints, s.logger)
	if err != nil {
		return nil, err
	}
	for _, ch := range inbox.Chats(chat.FilterAll, "", true) {
		if !ch.IsGroup && ch.LastReadAt != nil {
			if err := s.store.SaveCursor(ctx, s.cfg.Subdomain, ch.ID, *ch.LastReadAt); err != nil {
				return nil, err
			}
		}
	}
	return inbox, nil
}

func newAdminInboxCmd(opts *globalOptions) *cobra.Command {
	var (
		filter     string
		search     string
		showHidden bool
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List worker conversations and chat groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := chat.ParseFilter(filter)
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			inbox, err := loadInbox(cmd, s)
			if err != nil {
				return err
			}
			theme := s.theme(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s inbox - %d unread\n", s.cfg.Subdomain, inbox.TotalUnread())
			if inbox.Degraded() {
				fmt.Fprintln(out, "(conversation summaries unavailable: unread counts from local hints)")
			}
			fmt.Fprintln(out)
			renderChats(out, inbox.Chats(f, search, showHidden), paletteFor(theme))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", string(chat.FilterAll), "All, Unread or Groups")
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by name")
	cmd.Flags().BoolVar(&showHidden, "hidden", false, "include hidden conversations")
	return cmd
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newAdminShowCmd(opts *globalOptions) *cobra.Command {
	var keepUnread bool

	cmd := &cobra.Command{
		Use:   "show <worker-or-group-id>",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			inbox, err := loadInbox(cmd, s)
			if err != nil {
				return err
			}
			ch, ok := inbox.Chat(ids[0])
			if !ok {
				return errors.New("no such conversation")
			}

			theme := s.theme(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s", ch.Name)
			if ch.Worker != nil {
				fmt.Fprintf(out, " - %s", departmentName(ch.Worker))
			}
			fmt.Fprintln(out)
			renderMessages(out, chat.GroupByDay(inbox.Messages(ch.ID), chat.LongDayLabel(nil)), paletteFor(theme), chat.SenderAdmin)

			if ch.IsGroup || keepUnread || ch.Unread == 0 {
				return nil
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			at := now()
			if err := inbox.MarkRead(ctx, s.api, ch.ID, at); err != nil {
				return err
			}
			return s.store.SaveCursor(ctx, s.cfg.Subdomain, ch.ID, at)
		},
	}
	cmd.Flags().BoolVar(&keepUnread, "keep-unread", false, "do not mark the conversation read")
	return cmd
}

func newAdminReplyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <worker-id> <message>",
		Short: "Reply on the worker's most recent thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			inbox, err := loadInbox(cmd, s)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			c, err := inbox.Reply(ctx, s.api, ids[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reply sent on comment %s.\n", c.ID)
			return nil
		},
	}
}

func newAdminReadCmd(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "read [worker-id...]",
		Short: "Mark conversations read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("give worker ids or --all")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			inbox, err := loadInbox(cmd, s)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			at := now()

			if all {
				if err := inbox.MarkAllRead(ctx, s.api, at); err != nil {
					return err
				}
				ids = ids[:0]
				for _, ch := range inbox.Chats(chat.FilterAll, "", true) {
					if !ch.IsGroup {
						ids = append(ids, ch.ID)
					}
				}
			} else {
				for _, id := range ids {
					if err := inbox.MarkRead(ctx, s.api, id, at); err != nil {
						return err
					}
				}
			}
			if err := s.store.SaveCursors(ctx, s.cfg.Subdomain, ids, at); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d conversation%s read.\n", len(ids), plural(len(ids), "", "s"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "mark every conversation read")
	return cmd
}

func newAdminHideCmd(opts *globalOptions, hide bool) *cobra.Command {
	use, short := "hide", "Hide worker conversations from the inbox"
	if !hide {
		use, short = "unhide", "Restore hidden worker conversations"
	}
	return &cobra.Command{
		Use:   use + " <worker-id...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			inbox, err := loadInbox(cmd, s)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := inbox.SetHidden(ctx, s.api, hide, ids...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d conversation%s.\n", len(ids), plural(len(ids), "", "s"))
			return nil
		},
	}
}

func newAdminGroupsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List chat groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			groups, err := s.api.ChatGroups(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No chat groups.")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s  %-24s %d member%s\n", g.ID, g.Name, len(g.MemberIDs), plural(len(g.MemberIDs), "", "s"))
			}
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <name> <worker-id...>",
		Short: "Create a chat group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			g, err := s.api.CreateChatGroup(ctx, strings.TrimSpace(args[0]), members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created group %s (%s).\n", g.Name, g.ID)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <group-id>",
		Short: "Delete a chat group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := opts.openSession(models.RoleAdmin)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := s.api.DeleteChatGroup(ctx, ids[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Group deleted.")
			return nil
		},
	}

	cmd.AddCommand(create, del)
	return cmd
}

func newAdminAttachmentCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "attachment <comment-id>",
		Short: "Download a comment's attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := opts.openSession("")
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			data, contentType, err := s.api.Attachment(ctx, ids[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = ids[0].String()
			}
			if err := os.WriteFile(filepath.Clean(output), data, 0600); err != nil {
				return fmt.Errorf("write attachment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %s).\n", output, contentType, humanSize(int64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: the comment id)")
	return cmd
}
