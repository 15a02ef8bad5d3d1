package engagement

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
	"time"

	"github.com/five82/scout/internal/observe"
)

// API defines the engagement endpoints Scout uses.
// This interface is implemented by *Client and can be used for testing.
type API interface {
	Health(ctx context.Context) error
	CreateEngagement(ctx context.Context, req CreateRequest) (*Engagement, error)
	GetEngagement(ctx context.Context, id string) (*Engagement, error)
	FetchPageData(ctx context.Context, id string) (observe.Snapshot, error)
	MergePageData(ctx context.Context, id string, req MergeRequest) (observe.Snapshot, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the engagement HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	DefaultBaseURL   = "http://127.0.0.1:8000"
	defaultUserAgent = "scout/0.1"
	requestTimeout   = 5 * time.Second
)

// APIError is returned for responses with status >= 400. Detail carries the
// backend's JSON "detail" message when it sent one.
type APIError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient builds a Client for the given base URL. A bare host:port is
// treated as http.
func NewClient(baseURL string) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Health checks that the backend reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	var payload HealthResponse
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/health"}, nil, &payload); err != nil {
		return err
	}
	if payload.Status != statusHealthy {
		return fmt.Errorf("backend unhealthy: status %q", payload.Status)
	}
	return nil
}

// CreateEngagement registers a new engagement.
func (c *Client) CreateEngagement(ctx context.Context, req CreateRequest) (*Engagement, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload Engagement
	if err := c.do(ctx, http.MethodPost, &url.URL{Path: "/engagement/"}, req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetEngagement retrieves an engagement by id.
func (c *Client) GetEngagement(ctx context.Context, id string) (*Engagement, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	rel, err := engagementPath(id, "")
	if err != nil {
		return nil, err
	}
	var payload Engagement
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchPageData retrieves the engagement's observation log. A body that is
// not a valid page-data document yields an empty snapshot.
func (c *Client) FetchPageData(ctx context.Context, id string) (observe.Snapshot, error) {
	if c == nil {
		return observe.Empty(), fmt.Errorf("client is nil")
	}
	rel, err := engagementPath(id, "/page-data")
	if err != nil {
		return observe.Empty(), err
	}
	body, err := c.raw(ctx, http.MethodGet, rel, nil)
	if err != nil {
		return observe.Empty(), err
	}
	return observe.FromJSON(body), nil
}

// MergePageData appends new material to the engagement's observation log
// and returns the merged log.
func (c *Client) MergePageData(ctx context.Context, id string, req MergeRequest) (observe.Snapshot, error) {
	if c == nil {
		return observe.Empty(), fmt.Errorf("client is nil")
	}
	rel, err := engagementPath(id, "/page-data")
	if err != nil {
		return observe.Empty(), err
	}
	if req.Delta == nil {
		req.Delta = []observe.Page{}
	}
	body, err := c.raw(ctx, http.MethodPost, rel, req)
	if err != nil {
		return observe.Empty(), err
	}
	return observe.FromJSON(body), nil
}

func engagementPath(id, suffix string) (*url.URL, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("engagement id required")
	}
	return &url.URL{
		Path:    "/engagement/" + id + suffix,
		RawPath: "/engagement/" + url.PathEscape(id) + suffix,
	}, nil
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	data, err := c.raw(ctx, method, rel, body)
	if err != nil {
		return err
	}
	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method string, rel *url.URL, body any) ([]byte, error) {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Path: rel.EscapedPath(), StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return data, nil
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	// Validation errors carry structured detail; show it compactly.
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err != nil {
		return ""
	}
	return compact.String()
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_base_url %q: missing host", raw)
	}
	u.Path = ""
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
