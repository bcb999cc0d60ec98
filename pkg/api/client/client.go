package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client reads the operational endpoints of a running storefront process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at base. A listen address such as ":8080"
// is accepted and taken to mean localhost.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8080"
	}
	if strings.HasPrefix(trimmed, ":") {
		trimmed = "localhost" + trimmed
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the process.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

// Component is the health of one dependency.
type Component struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReport mirrors the /healthz payload.
type HealthReport struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
	Timestamp  string               `json:"timestamp"`
}

// Health fetches /healthz. A degraded process returns its report together
// with an APIError naming the failing components.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var report HealthReport
	if err := json.Unmarshal(data, &report); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &report, APIError{Status: resp.StatusCode, Message: failing(report)}
	}
	return &report, nil
}

func failing(report HealthReport) string {
	var parts []string
	for name, comp := range report.Components {
		if comp.Status == "up" {
			continue
		}
		if comp.Error != "" {
			parts = append(parts, name+": "+comp.Error)
		} else {
			parts = append(parts, name+": "+comp.Status)
		}
	}
	if len(parts) == 0 {
		return report.Status
	}
	return strings.Join(parts, "; ")
}
