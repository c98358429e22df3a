package gentext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUpstreamTimeout marks a generative-text call that exceeded its deadline
// after exhausting retries. Callers treat it as retryable at their own level;
// roles surface it as a structured error result, never as a fault.
var ErrUpstreamTimeout = errors.New("gentext: upstream timeout")

// ErrUpstreamFault marks a non-timeout upstream failure after retries.
var ErrUpstreamFault = errors.New("gentext: upstream fault")

// DefaultTimeout bounds a single generative-text request.
const DefaultTimeout = 30 * time.Second

// Client calls the external generative-text service. Payloads are opaque
// structured documents; this core never inspects their schemas.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

// NewClient creates a client. timeout <= 0 uses DefaultTimeout; maxRetries is
// the number of retries after the first attempt.
func NewClient(baseURL string, timeout time.Duration, maxRetries uint64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// Analyze returns structured insight for a structured input.
func (c *Client) Analyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	return c.post(ctx, "/v1/analyze", map[string]any{"input": input})
}

// GenerateContent returns structured marketing content for a lead profile.
func (c *Client) GenerateContent(ctx context.Context, profile map[string]any, campaignType, tone string) (map[string]any, error) {
	return c.post(ctx, "/v1/content", map[string]any{
		"profile":      profile,
		"campaignType": campaignType,
		"tone":         tone,
	})
}

// OptimizeStrategy returns structured recommendations for campaign data and
// its metrics.
func (c *Client) OptimizeStrategy(ctx context.Context, campaignData, metrics map[string]any) (map[string]any, error) {
	return c.post(ctx, "/v1/optimize", map[string]any{
		"campaignData": campaignData,
		"metrics":      metrics,
	})
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gentext request: %w", err)
	}

	var result map[string]any
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("gentext: status %d: %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			// Client errors do not heal with retries.
			return backoff.Permanent(fmt.Errorf("gentext: status %d: %s", resp.StatusCode, string(respBody)))
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return backoff.Permanent(fmt.Errorf("decode gentext response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFault, err)
	}
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
