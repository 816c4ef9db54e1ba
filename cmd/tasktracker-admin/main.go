// Package main provides tenant account administration against the server
// database.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	dbURL     string
	subdomain string
}

func (o *rootOptions) open(ctx context.Context) (*db.DB, error) {
	url := o.dbURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, errors.New("database URL required: use --db or set DATABASE_URL")
	}
	if !models.IsTenantSubdomain(o.subdomain) {
		return nil, errors.New("--subdomain is required and cannot be \"main\"")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).
		With().
		Timestamp().
		Logger()

	cfg := db.DefaultConfig(url)
	cfg.MaxConns = 2
	cfg.MinConns = 1
	return db.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "tasktracker-admin",
		Short:        "Manage tenant accounts of a task tracker database",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbURL, "db", "", "database URL (or set DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.subdomain, "subdomain", "", "tenant subdomain")

	rootCmd.AddCommand(
		newCreateAdminCmd(opts),
		newCreateDepartmentCmd(opts),
		newCreateWorkerCmd(opts),
		newListWorkersCmd(opts),
		newDeleteWorkerCmd(opts),
	)
	return rootCmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return auth.HashPassword(strings.TrimSpace(line))
}

func newCreateAdminCmd(opts *rootOptions) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account; the password is read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := readPassword(cmd)
			if err != nil {
				return err
			}
			database, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			a := models.NewAdmin(opts.subdomain, strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email)))
			a.PasswordHash = hash
			if err := database.CreateAdmin(cmd.Context(), a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s <%s> (%s)\n", a.Name, a.Email, a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newCreateDepartmentCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-department <name>",
		Short: "Create a department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			d := models.NewDepartment(opts.subdomain, strings.TrimSpace(args[0]))
			if err := database.CreateDepartment(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created department %s (%s)\n", d.Name, d.ID)
			return nil
		},
	}
}

func newCreateWorkerCmd(opts *rootOptions) *cobra.Command {
	var name, username, department string

	cmd := &cobra.Command{
		Use:   "create-worker",
		Short: "Create a worker account; the password is read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := readPassword(cmd)
			if err != nil {
				return err
			}
			database, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			var departmentID *uuid.UUID
			if department != "" {
				d, err := database.GetDepartmentByName(cmd.Context(), opts.subdomain, department)
				if err != nil {
					if errors.Is(err, db.ErrNotFound) {
						return fmt.Errorf("department %q does not exist, create it first", department)
					}
					return err
				}
				departmentID = &d.ID
			}

			w := models.NewWorker(opts.subdomain, strings.TrimSpace(name), strings.TrimSpace(username), departmentID)
			w.PasswordHash = hash
			if err := database.CreateWorker(cmd.Context(), w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created worker %s (%s)\n", w.Username, w.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&department, "department", "", "department name")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newListWorkersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-workers",
		Short: "List the tenant's workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			workers, err := database.ListWorkers(cmd.Context(), opts.subdomain)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tCREATED")
			for _, w := range workers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.ID, w.Username, w.Name, w.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}

func newDeleteWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-worker <worker-id>",
		Short: "Delete a worker; their comments stay under \"Unknown Worker\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid worker id: %w", err)
			}
			database, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			w, err := database.GetWorkerByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if w.Subdomain != opts.subdomain {
				return fmt.Errorf("worker %s does not belong to %s", id, opts.subdomain)
			}
			if err := database.DeleteWorker(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted worker %s\n", w.Username)
			return nil
		},
	}
}
