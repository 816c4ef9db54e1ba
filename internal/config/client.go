package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir returns the default client config directory (~/.tasktracker).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".tasktracker"), nil
}

// DefaultConfigPath returns the default config file path (~/.tasktracker/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// ClientConfig holds the chat client's saved session.
type ClientConfig struct {
	ServerURL string      `yaml:"server_url,omitempty"`
	Token     string      `yaml:"token,omitempty"`
	Subdomain string      `yaml:"subdomain,omitempty"`
	Role      models.Role `yaml:"role,omitempty"`
	Name      string      `yaml:"name,omitempty"`
	Theme     string      `yaml:"theme,omitempty"`

	// CacheDB is the local sqlite cache; empty means cache.db next to the config.
	CacheDB string       `yaml:"cache_db,omitempty"`
	Proxy   *ProxyConfig `yaml:"proxy,omitempty"`
}

// ProxyConfig routes client traffic through a forward proxy.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http_proxy,omitempty"`
	HTTPSProxy  string `yaml:"https_proxy,omitempty"`
	SOCKS5Proxy string `yaml:"socks5_proxy,omitempty"`
	NoProxy     string `yaml:"no_proxy,omitempty"`
}

// HasProxy reports whether any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	return p != nil && (p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != "")
}

// Validate checks that the configuration has required fields for operation.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url %q is not an absolute URL", c.ServerURL)
	}
	if !models.IsTenantSubdomain(c.Subdomain) {
		return errors.New("subdomain is missing, log in again")
	}
	return nil
}

// IsLoggedIn returns true if a token has been saved.
func (c *ClientConfig) IsLoggedIn() bool {
	return c.ServerURL != "" && c.Token != ""
}

// Logout clears the saved session but keeps the server and preferences.
func (c *ClientConfig) Logout() {
	c.Token = ""
	c.Role = ""
	c.Name = ""
}

// BaseURL returns ServerURL without a trailing slash.
func (c *ClientConfig) BaseURL() string {
	return strings.TrimRight(c.ServerURL, "/")
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClientConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the given path, creating directories as needed.
// The file holds a bearer token so it is written user-only.
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
