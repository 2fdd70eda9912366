package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/port"
)

// Client posts JSON bodies over HTTP
type Client struct {
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewClient creates a webhook client. A nil httpClient uses a fresh
// http.Client; timeouts are applied per request.
func NewClient(httpClient *http.Client, userAgent string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:      httpClient,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Post implements port.WebhookPoster
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body []byte, timeout time.Duration) (*port.HTTPResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	c.logger.Debug("Webhook delivered",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))

	return &port.HTTPResponse{StatusCode: resp.StatusCode}, nil
}

// Verify interface compliance
var _ port.WebhookPoster = (*Client)(nil)
