package imageapi

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
)

// JobAPI defines the generation server endpoints the poller needs.
// It is implemented by *Client and can be replaced in tests.
type JobAPI interface {
	CreateJob(ctx context.Context, req GenerationRequest) (string, error)
	FetchJob(ctx context.Context, jobID string) (*JobStatus, error)
}

// Ensure Client implements JobAPI at compile time.
var _ JobAPI = (*Client)(nil)

// Client talks to the generation server's HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	interval  time.Duration
	timeout   time.Duration
}

const (
	defaultAPIBind      = "127.0.0.1:5001"
	defaultUserAgent    = "easel/0.1"
	defaultPollInterval = 2 * time.Second
	requestTimeout      = 30 * time.Second
)

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithJobTimeout bounds how long Generate waits for a job. Zero disables the
// bound; the caller's context still applies.
func WithJobTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string, opts ...ClientOption) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		interval:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// CreateJob submits a generation request and returns the server's job id.
func (c *Client) CreateJob(ctx context.Context, req GenerationRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	var payload CreateJobResponse
	if err := c.do(ctx, http.MethodPost, "/text_to_image", body, &payload); err != nil {
		return "", err
	}
	id := strings.TrimSpace(payload.JobID)
	if id == "" {
		return "", fmt.Errorf("%w: api /text_to_image returned no job id", ErrRequestFailed)
	}
	return id, nil
}

// FetchJob retrieves the status of a job.
func (c *Client) FetchJob(ctx context.Context, jobID string) (*JobStatus, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id required")
	}
	var payload JobStatus
	if strings.Contains(jobID, "/") {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Alive reports whether anything answers HTTP at the base URL. Any status
// code counts; only transport failures mean the server is down.
func (c *Client) Alive(ctx context.Context) bool {
	if c == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL.String(), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, dest any) error {
	rel := &url.URL{Path: path}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", transportError(ctx, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &RequestError{Path: rel.Path, Status: resp.StatusCode}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
