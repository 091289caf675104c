package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"newsbot/types"
)

const maxBodyBytes = 2048

// Result is the outcome of a delivery after retries
type Result struct {
	Success    bool   `json:"success"`
	HTTPStatus int    `json:"http_status"`
	Body       string `json:"body,omitempty"`
	Attempts   int    `json:"attempts"`
}

// Client posts messages to incoming webhooks
type Client struct {
	httpClient *http.Client
	policy     RetryPolicy
	logger     *slog.Logger
	rnd        func() float64
	sleep      func(context.Context, time.Duration) error
}

// NewClient creates a webhook client with a per-request timeout
func NewClient(timeout time.Duration, policy RetryPolicy, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy.withDefaults(),
		logger:     logger,
		rnd:        rand.Float64,
		sleep:      sleepCtx,
	}
}

// Send delivers msg to the channel's webhook. It never returns an error: every
// failure is folded into the Result.
func (c *Client) Send(ctx context.Context, ch types.Channel, msg *Message) Result {
	if ch.WebhookURL == "" {
		return Result{Body: "no webhook configured for channel " + ch.Name}
	}
	return c.Post(ctx, ch.WebhookURL, msg)
}

// Post delivers msg to webhookURL, retrying transient failures per the policy
func (c *Client) Post(ctx context.Context, webhookURL string, msg *Message) Result {
	body, err := json.Marshal(msg)
	if err != nil {
		return Result{Body: fmt.Sprintf("failed to encode message: %v", err)}
	}

	var res Result
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.policy.Backoff(attempt-1, c.rnd)
			c.logger.Warn("slack: retrying webhook",
				"attempt", attempt, "max_attempts", c.policy.MaxAttempts,
				"backoff_ms", wait.Milliseconds(), "status", res.HTTPStatus)
			if err := c.sleep(ctx, wait); err != nil {
				res.Body = fmt.Sprintf("aborted before retry: %v", err)
				return res
			}
		}

		var retryable bool
		res, retryable = c.postOnce(ctx, webhookURL, body)
		res.Attempts = attempt
		if res.Success || !retryable {
			break
		}
	}

	if !res.Success {
		c.logger.Error("slack: delivery failed",
			"status", res.HTTPStatus, "attempts", res.Attempts, "body", res.Body)
	}
	return res
}

func (c *Client) postOnce(ctx context.Context, webhookURL string, body []byte) (Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return Result{Body: fmt.Sprintf("failed to create request: %v", err)}, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Body: err.Error()}, ctx.Err() == nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	res := Result{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		HTTPStatus: resp.StatusCode,
		Body:       string(respBody),
	}
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return res, retryable
}
