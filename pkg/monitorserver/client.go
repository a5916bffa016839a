package monitorserver

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

var (
	// httpClient is a shared HTTP client with reasonable timeout
	httpClient = &http.Client{
		Timeout: 30 * time.Second,
	}
)

// Client reads from and controls a running monitor server.
type Client struct {
	url string
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:8000".
func NewClient(baseURL string) *Client {
	return &Client{url: strings.TrimSuffix(baseURL, "/")}
}

// do performs a request and returns the response body. Statuses other than
// validStatuses are returned as errors.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, validStatuses ...int) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	for _, status := range validStatuses {
		if resp.StatusCode == status {
			return b, resp.StatusCode, nil
		}
	}
	return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

// Report returns the JSON performance report.
func (c *Client) Report(ctx context.Context) ([]byte, error) {
	b, _, err := c.do(ctx, http.MethodGet, apiPrefix+"/report", nil, http.StatusOK)
	return b, err
}

func (c *Client) Summary(ctx context.Context) (perfmon.Summary, error) {
	var summary perfmon.Summary
	b, _, err := c.do(ctx, http.MethodGet, apiPrefix+"/summary", nil, http.StatusOK)
	if err != nil {
		return summary, err
	}
	return summary, json.Unmarshal(b, &summary)
}

// Budget returns the budget check. A failed check is not an error.
func (c *Client) Budget(ctx context.Context) (perfmon.BudgetReport, error) {
	var report perfmon.BudgetReport
	b, _, err := c.do(ctx, http.MethodGet, apiPrefix+"/budget", nil, http.StatusOK, http.StatusExpectationFailed)
	if err != nil {
		return report, err
	}
	return report, json.Unmarshal(b, &report)
}

// Ingest posts one batch of entries.
func (c *Client) Ingest(ctx context.Context, entryType perfmon.EntryType, entries []perfmon.Entry, page *perfmon.PageContext) error {
	body, err := json.Marshal(map[string]interface{}{
		"type":    entryType,
		"entries": entries,
		"page":    page,
	})
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodPost, apiPrefix+"/entries", body, http.StatusAccepted)
	return err
}

// Reset clears the monitor buffers.
func (c *Client) Reset(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodPost, apiPrefix+"/reset", nil, http.StatusNoContent)
	return err
}
