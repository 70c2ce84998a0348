package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds every widget request unless overridden with
// WithTimeout. A zero timeout disables the bound.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 512

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the four widget endpoints of one backend origin.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client. The client's own Timeout
// is overwritten by the configured widget timeout.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// NewClient builds a client for the given origin, e.g. "https://chat.example.com".
// Any path on baseURL is dropped: the widget API always lives at the origin root.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("base url %q: missing host", baseURL)
	}
	c := &Client{
		baseURL:    &url.URL{Scheme: u.Scheme, Host: u.Host},
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.httpClient
	hc.Timeout = c.timeout
	c.httpClient = &hc
	return c, nil
}

// BaseURL returns the origin the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// LoadConfig fetches the tenant's presentation config.
func (c *Client) LoadConfig(ctx context.Context, tenantID, sessionID string) (*TenantConfig, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	var cfg TenantConfig
	if err := c.do(ctx, http.MethodGet, "config", tenantID, q, nil, &cfg); err != nil {
		return nil, errors.Wrap(err, "load widget config")
	}
	return &cfg, nil
}

// SendMessage posts one visitor message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, tenantID, sessionID, text string) (*ChatResponse, error) {
	var resp ChatResponse
	body := ChatRequest{Message: text, SessionID: sessionID}
	if err := c.do(ctx, http.MethodPost, "chat", tenantID, nil, body, &resp); err != nil {
		return nil, errors.Wrap(err, "send message")
	}
	if resp.Reply == "" {
		return nil, errors.New("send message: response has no reply")
	}
	return &resp, nil
}

// RecordUsage reports one conversation episode. The response body is ignored.
func (c *Client) RecordUsage(ctx context.Context, tenantID, sessionID string) error {
	body := UsageRequest{SessionID: sessionID}
	return errors.Wrap(c.do(ctx, http.MethodPost, "usage", tenantID, nil, body, nil), "record usage")
}

// SubmitReview posts a satisfaction rating. The response body is ignored.
func (c *Client) SubmitReview(ctx context.Context, tenantID, sessionID string, rating int, comment string) error {
	body := ReviewRequest{Rating: rating, Comment: comment, SessionID: sessionID}
	return errors.Wrap(c.do(ctx, http.MethodPost, "review", tenantID, nil, body, nil), "submit review")
}

func (c *Client) endpoint(kind, tenantID string, q url.Values) *url.URL {
	u := *c.baseURL
	u.Path = "/api/widget/" + kind + "/" + tenantID
	u.RawPath = "/api/widget/" + kind + "/" + url.PathEscape(tenantID)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return &u
}

func (c *Client) do(ctx context.Context, method, kind, tenantID string, q url.Values, in any, out any) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.New("tenant id is empty")
	}
	u := c.endpoint(kind, tenantID, q)

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Str("component", "widget_api").
		Str("method", method).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("widget request finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
