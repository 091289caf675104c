package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsbot/types"
)

// Client is a thin HTTP client for the admin API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetStatus fetches the status board
func (c *Client) GetStatus(ctx context.Context) (*types.StatusResponse, error) {
	var status types.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", &status); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &status, nil
}

// Poll runs one cycle of the channel on the server and returns its report
func (c *Client) Poll(ctx context.Context, channel string) (*types.CycleReport, error) {
	var report types.CycleReport
	if err := c.do(ctx, http.MethodPost, "/api/manual/poll/"+url.PathEscape(channel), &report); err != nil {
		return nil, fmt.Errorf("failed to poll %s: %w", channel, err)
	}
	return &report, nil
}

// ResetSpamKeywords clears the keyword counters on the server
func (c *Client) ResetSpamKeywords(ctx context.Context) (int64, error) {
	var body struct {
		Removed int64 `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/manual/spam-keywords", &body); err != nil {
		return 0, fmt.Errorf("failed to reset keywords: %w", err)
	}
	return body.Removed, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
