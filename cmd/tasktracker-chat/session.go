package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/chat"
	"github.com/MacJediWizard/tasktracker/internal/client"
	"github.com/MacJediWizard/tasktracker/internal/config"
	"github.com/MacJediWizard/tasktracker/internal/httpclient"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

// session is the loaded config plus the clients built from it.
type session struct {
	path   string
	cfg    *config.ClientConfig
	api    *client.Client
	store  *chat.LocalStore
	logger zerolog.Logger
	closer func()
}

func (o *globalOptions) resolvedConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.DefaultConfigPath()
}

func (o *globalOptions) loadConfig() (string, *config.ClientConfig, error) {
	path, err := o.resolvedConfigPath()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}

func cachePath(path string, cfg *config.ClientConfig) string {
	if cfg.CacheDB != "" {
		return cfg.CacheDB
	}
	return filepath.Join(filepath.Dir(path), "cache.db")
}

// openSession loads a logged-in session with the given role.
func (o *globalOptions) openSession(role models.Role) (*session, error) {
	path, cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsLoggedIn() {
		return nil, errors.New("not logged in, run 'tasktracker-chat login'")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if role != "" && cfg.Role != role {
		return nil, fmt.Errorf("this command needs a %s login, current session is %s", role, cfg.Role)
	}

	logger := o.logger()
	api, err := client.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := chat.OpenLocalStore(cachePath(path, cfg), logger)
	if err != nil {
		return nil, err
	}
	return &session{
		path:   path,
		cfg:    cfg,
		api:    api,
		store:  store,
		logger: logger,
		closer: func() { store.Close() },
	}, nil
}

// theme returns the saved colour theme, falling back to the default when
// the cache cannot be read.
func (s *session) theme(ctx context.Context) string {
	theme, err := s.store.Theme(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("failed to read theme preference")
		return chat.ThemeLight
	}
	return theme
}

func (s *session) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

func validateServerURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("server URL must use http or https scheme")
	}
	return strings.TrimSuffix(raw, "/"), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var (
		serverURL string
		subdomain string
		username  string
		role      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a worker or an admin",
		Long: `Log in to a tenant and save the session token.

Workers log in with their username, admins with their email. The password
is read from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if serverURL != "" {
				if cfg.ServerURL, err = validateServerURL(serverURL); err != nil {
					return err
				}
			}
			if cfg.ServerURL == "" {
				return errors.New("--server is required on first login")
			}
			if !models.IsTenantSubdomain(subdomain) {
				return errors.New("subdomain is missing, check the URL")
			}
			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("role must be %s or %s", models.RoleWorker, models.RoleAdmin)
			}

			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			password, err := readLine(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}

			httpClient, err := httpclient.New(httpclient.Options{Proxy: cfg.Proxy})
			if err != nil {
				return err
			}
			api, err := client.New(cfg.ServerURL, "", httpClient, opts.logger())
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			resp, err := api.Login(ctx, models.LoginRequest{
				Subdomain: subdomain,
				Username:  username,
				Password:  password,
				Role:      r,
			})
			if err != nil {
				return err
			}

			cfg.Token = resp.Token
			cfg.Subdomain = resp.Subdomain
			cfg.Role = resp.Role
			cfg.Name = resp.Name
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nLogged in to %s as %s (%s). Session expires %s.\n",
				resp.Subdomain, resp.Name, resp.Role, resp.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "server URL")
	cmd.Flags().StringVar(&subdomain, "subdomain", "", "tenant subdomain (required)")
	cmd.Flags().StringVarP(&username, "user", "u", "", "username, or email for admins (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleWorker), "worker or admin")
	_ = cmd.MarkFlagRequired("subdomain")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Logout()
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", path)
			fmt.Fprintf(out, "Server URL:  %s\n", orNone(cfg.ServerURL))
			fmt.Fprintf(out, "Subdomain:   %s\n", orNone(cfg.Subdomain))
			fmt.Fprintf(out, "Logged in:   %v\n", cfg.IsLoggedIn())
			if cfg.IsLoggedIn() {
				fmt.Fprintf(out, "User:        %s (%s)\n", cfg.Name, cfg.Role)
			}
			fmt.Fprintf(out, "Cache:       %s\n", cachePath(path, cfg))
			fmt.Fprintf(out, "Proxy:       %s\n", httpclient.Describe(cfg.Proxy))
			return nil
		},
	}

	setServer := &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the server URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, err := validateServerURL(args[0])
			if err != nil {
				return err
			}
			path, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.ServerURL = serverURL
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server URL set to: %s\n", cfg.ServerURL)
			return nil
		},
	}

	var proxy config.ProxyConfig
	setProxy := &cobra.Command{
		Use:   "set-proxy",
		Short: "Route requests through a proxy; no flags clears it",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if proxy.HasProxy() {
				p := proxy
				cfg.Proxy = &p
			} else {
				cfg.Proxy = nil
			}
			if _, err := httpclient.New(httpclient.Options{Proxy: cfg.Proxy}); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Proxy: %s\n", httpclient.Describe(cfg.Proxy))
			return nil
		},
	}
	setProxy.Flags().StringVar(&proxy.HTTPProxy, "http", "", "HTTP proxy URL")
	setProxy.Flags().StringVar(&proxy.HTTPSProxy, "https", "", "HTTPS proxy URL")
	setProxy.Flags().StringVar(&proxy.SOCKS5Proxy, "socks5", "", "SOCKS5 proxy address")
	setProxy.Flags().StringVar(&proxy.NoProxy, "no-proxy", "", "comma-separated hosts to reach directly")

	cmd.AddCommand(show, setServer, setProxy)
	return cmd
}

func newThemeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [light|dark]",
		Short: "Show or set the chat theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := chat.OpenLocalStore(cachePath(path, cfg), opts.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				if err := store.SetTheme(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			theme, err := store.Theme(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme: %s\n", theme)
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
