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
	"time"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// ErrTransport marks failures where no response was received
var ErrTransport = errors.New("upstream unreachable")

// APIError is a non-2xx response from the application endpoint
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Client talks to the university catalog provider and the application endpoint
type Client struct {
	catalogBaseURL string
	applyBaseURL   string
	httpClient     *http.Client
	observe        func(op string, status int, d time.Duration)
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithApplyBaseURL sends applications to a different host than the catalog
func WithApplyBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.applyBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithObserver registers a callback invoked after every upstream call.
// status is 0 when no response was received.
func WithObserver(fn func(op string, status int, d time.Duration)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a new upstream client
func NewClient(catalogBaseURL string, opts ...Option) *Client {
	base := strings.TrimRight(catalogBaseURL, "/")
	c := &Client{
		catalogBaseURL: base,
		applyBaseURL:   base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListUniversities fetches the catalog. Filters are always sent, empty when
// unconstrained; the provider does the filtering.
func (c *Client) ListUniversities(ctx context.Context, q models.CatalogQuery) ([]models.University, error) {
	params := url.Values{}
	params.Set("maxFee", q.MaxFee)
	params.Set("country", q.Country)
	params.Set("degree", q.Degree)

	status, body, err := c.doRequest(ctx, "catalog", http.MethodGet, c.catalogBaseURL+"/api/universities?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{Status: status, Message: decodeMessage(body, status)}
	}

	var universities []models.University
	if err := json.Unmarshal(body, &universities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	if universities == nil {
		universities = []models.University{}
	}

	return universities, nil
}

// SubmitApplication posts an application. A non-2xx status yields *APIError
// carrying the server message; no response yields an error wrapping ErrTransport.
func (c *Client) SubmitApplication(ctx context.Context, req models.ApplyRequest) (*models.ApplyResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, body, err := c.doRequest(ctx, "apply", http.MethodPost, c.applyBaseURL+"/api/apply", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{Status: status, Message: decodeMessage(body, status)}
	}

	result := &models.ApplyResult{Status: status}
	var decoded struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		result.Message = decoded.Message
	}

	return result, nil
}

// Ping checks that the catalog provider answers
func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.doRequest(ctx, "ping", http.MethodHead, c.catalogBaseURL+"/api/universities", nil)
	if err != nil {
		return err
	}
	if status >= 500 {
		return fmt.Errorf("catalog provider returned HTTP %d", status)
	}
	return nil
}

// HealthCheck adapts Ping for readiness registries
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx)
}

// doRequest performs an HTTP request and returns status and body
func (c *Client) doRequest(ctx context.Context, op, method, rawURL string, body io.Reader) (int, []byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.report(op, 0, start)
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.report(op, 0, start)
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	c.report(op, resp.StatusCode, start)
	return resp.StatusCode, respBody, nil
}

func (c *Client) report(op string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(op, status, time.Since(start))
	}
}

// decodeMessage extracts {"message": "..."} or falls back to the status text
func decodeMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}
