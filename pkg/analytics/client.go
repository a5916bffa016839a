// Package analytics carries performance reports between a monitor and the
// analytics collector: Client posts them and Sink receives them.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sevadaan/perfmon/pkg/perfmon"
)

// Path is the collector endpoint reports are posted to.
const Path = "/api/analytics/performance"

var (
	// httpClient is a shared HTTP client with reasonable timeout
	httpClient = &http.Client{
		Timeout: 30 * time.Second,
	}
)

// Client posts analytics events to a collector.
type Client struct {
	url string
}

// Ensure Client implements perfmon.Sender
var _ perfmon.Sender = (*Client)(nil)

// NewClient creates a client for the collector at baseURL, for example
// "http://localhost:8001". A trailing slash is ignored.
func NewClient(baseURL string) *Client {
	return &Client{url: strings.TrimSuffix(baseURL, "/") + Path}
}

// Send posts event as JSON. Any non-2xx answer is returned as an error.
func (c *Client) Send(ctx context.Context, event perfmon.AnalyticsEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
