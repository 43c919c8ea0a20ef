// Package upstream implements the client for the remote message source.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kensaku/internal/models"
	"go.uber.org/zap"
)

// Client fetches one page of messages from the remote source.
type Client interface {
	GetPage(ctx context.Context, offset, limit int) (*models.Page, error)
}

// HTTPClient is the production Client over the upstream's skip/limit API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithLogger attaches a logger for per-request debug output.
func WithLogger(logger *zap.Logger) HTTPClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client for the message source at baseURL. The
// timeout bounds one HTTP exchange; callers layer their own per-attempt
// deadlines on top via context.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pageResponse is the upstream's wire format for a message listing.
type pageResponse struct {
	Items []*models.Record `json:"items"`
	Total int              `json:"total"`
}

// GetPage requests limit messages starting at offset. HTTP and network
// failures are classified into the rate-limited / transient / fatal taxonomy
// so the fetcher can decide whether to retry.
func (c *HTTPClient) GetPage(ctx context.Context, offset, limit int) (*models.Page, error) {
	u := fmt.Sprintf("%s/messages/?%s", c.baseURL, url.Values{
		"skip":  {strconv.Itoa(offset)},
		"limit": {strconv.Itoa(limit)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FatalError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts, connection resets, and DNS failures are all retryable.
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		c.logger.Debug("upstream returned error status",
			zap.Int("offset", offset),
			zap.Int("status", resp.StatusCode))
		return nil, err
	}

	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("decode page at offset %d: %w", offset, err)}
	}

	next := offset + len(body.Items)
	hasMore := len(body.Items) == limit
	if body.Total > 0 && next >= body.Total {
		hasMore = false
	}
	if len(body.Items) == 0 {
		hasMore = false
	}
	return &models.Page{
		Items:      body.Items,
		NextOffset: next,
		HasMore:    hasMore,
		Total:      body.Total,
	}, nil
}

// classifyStatus maps a non-2xx response to the error taxonomy. The upstream
// answers assorted 4xx codes while throttling, so the whole throttle family
// is treated as rate-limited rather than fatal.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusPaymentRequired,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusMethodNotAllowed:
		return &RateLimitedError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode >= 500 {
		return &TransientError{Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}
	return &FatalError{Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
}

// parseRetryAfter parses a Retry-After header in seconds form; 0 if absent
// or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
