// Package client is the HTTP client for the task tracker API. Every failed
// call returns a *Error carrying a message fit for display.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/config"
	"github.com/MacJediWizard/tasktracker/internal/httpclient"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/rs/zerolog"
)

// Error is returned by every Client method. Status is zero when the request
// never got a response.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

// Client talks to one task tracker server with one bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a Client. httpClient may be nil.
func New(baseURL, token string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid server URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "api_client").Logger(),
	}, nil
}

// FromConfig creates a Client for a saved session, honouring its proxy
// settings.
func FromConfig(cfg *config.ClientConfig, logger zerolog.Logger) (*Client, error) {
	httpClient, err := httpclient.New(httpclient.Options{Proxy: cfg.Proxy})
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	logger.Debug().Str("proxy", httpclient.Describe(cfg.Proxy)).Msg("api client configured")
	return New(cfg.BaseURL(), cfg.Token, httpClient, logger)
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// do sends a request and decodes a 2xx JSON body into out. Any failure is
// reported as *Error with fallback as the message unless the server sent one.
func (c *Client) do(ctx context.Context, method, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Message: fallback, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Message: fallback, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return &Error{Message: fallback, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(resp, fallback)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Message: fallback, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) responseError(resp *http.Response, fallback string) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := fallback
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("path", resp.Request.URL.Path).
		Str("error", msg).
		Msg("request rejected")
	return &Error{Status: resp.StatusCode, Message: msg}
}

// Login exchanges credentials for a bearer token. The returned client is
// not modified; use WithToken to authenticate subsequent calls.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out, "Login failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

func commentPath(id fmt.Stringer, suffix string) string {
	return "/api/v1/comments/" + url.PathEscape(id.String()) + suffix
}
