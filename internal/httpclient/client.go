// Package httpclient builds the HTTP client used by the chat client, with
// optional forward proxy support.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/config"
	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds a whole request including reading the body.
const DefaultTimeout = 30 * time.Second

// Options configures the HTTP client.
type Options struct {
	Timeout time.Duration
	Proxy   *config.ProxyConfig
}

// New creates an HTTP client. A SOCKS5 proxy takes precedence over HTTP(S)
// proxies when both are configured.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.Proxy.HasProxy() {
		if opts.Proxy.SOCKS5Proxy != "" {
			if err := useSOCKS5(transport, opts.Proxy.SOCKS5Proxy); err != nil {
				return nil, err
			}
		} else {
			cfg := opts.Proxy
			transport.Proxy = func(req *http.Request) (*url.URL, error) {
				return proxyFor(req, cfg)
			}
		}
	}

	return &http.Client{Timeout: opts.Timeout, Transport: transport}, nil
}

func useSOCKS5(transport *http.Transport, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse SOCKS5 proxy URL: %w", err)
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return fmt.Errorf("create SOCKS5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
		return nil
	}
	transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	return nil
}

func proxyFor(req *http.Request, cfg *config.ProxyConfig) (*url.URL, error) {
	if bypassProxy(req.URL.Host, cfg.NoProxy) {
		return nil, nil
	}

	raw := cfg.HTTPProxy
	if req.URL.Scheme == "https" && cfg.HTTPSProxy != "" {
		raw = cfg.HTTPSProxy
	}
	if raw == "" {
		return nil, nil
	}
	return url.Parse(raw)
}

// bypassProxy matches host against a comma separated no_proxy list. Entries
// match exactly, as a ".suffix", as a parent domain, or "*" for everything.
func bypassProxy(host, noProxy string) bool {
	if noProxy == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	for _, pattern := range strings.Split(noProxy, ",") {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
		case pattern == "*", host == pattern:
			return true
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(host, pattern) {
				return true
			}
		case strings.HasSuffix(host, "."+pattern):
			return true
		}
	}
	return false
}

// Describe summarizes the proxy settings with credentials masked.
func Describe(cfg *config.ProxyConfig) string {
	if !cfg.HasProxy() {
		return "direct"
	}

	var parts []string
	if cfg.SOCKS5Proxy != "" {
		parts = append(parts, "socks5="+maskURL(cfg.SOCKS5Proxy))
	}
	if cfg.HTTPProxy != "" {
		parts = append(parts, "http="+maskURL(cfg.HTTPProxy))
	}
	if cfg.HTTPSProxy != "" {
		parts = append(parts, "https="+maskURL(cfg.HTTPSProxy))
	}
	if cfg.NoProxy != "" {
		parts = append(parts, "no_proxy="+cfg.NoProxy)
	}
	return strings.Join(parts, " ")
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User == nil {
		return u.String()
	}
	user := u.User.Username()
	_, hasPassword := u.User.Password()
	u.User = nil
	s := u.String()
	if !hasPassword && user == "" {
		return s
	}
	cred := user
	if hasPassword {
		cred += ":****"
	}
	// url.String would percent-encode the mask.
	if scheme, rest, ok := strings.Cut(s, "://"); ok {
		return scheme + "://" + cred + "@" + rest
	}
	return cred + "@" + s
}
