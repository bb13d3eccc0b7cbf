// Package oracle provides the price and yield reference-data client used
// to sanity check venue quotes.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// Reading is one oracle observation for a feed.
type Reading struct {
	// FeedID identifies the feed, e.g. "usdc/usd" or "aave-v3/supply-apy".
	FeedID string `json:"feed_id"`

	// ValueBps is the observed value in basis points.
	ValueBps int64 `json:"value_bps"`

	// UpdatedAt is the Unix timestamp of the observation.
	UpdatedAt int64 `json:"updated_at"`
}

// Client fetches oracle readings and enforces the staleness window.
type Client struct {
	baseURL    string
	apiKey     string
	maxAge     time.Duration
	clock      types.Clock
	httpClient *http.Client
}

// New creates an oracle client. Readings older than maxAge are rejected
// as stale.
func New(baseURL, apiKey string, maxAge time.Duration, clock types.Clock) *Client {
	if clock == nil {
		clock = time.Now
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxAge:     maxAge,
		clock:      clock,
		httpClient: retryClient.StandardClient(),
	}
}

// Latest fetches the newest reading for a feed. A reading outside the
// staleness window fails with a stale-data error rather than being
// returned.
func (c *Client) Latest(ctx context.Context, feedID string) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/feeds/"+feedID+"/latest", nil)
	if err != nil {
		return Reading{}, fmt.Errorf("error creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	logrus.Debugf("Fetching oracle feed %s", feedID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("error fetching oracle feed %s: %w", feedID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Reading{}, fmt.Errorf("%w: oracle feed %s", model.ErrNotFound, feedID)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Reading{}, fmt.Errorf("oracle API error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var reading Reading
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return Reading{}, fmt.Errorf("error decoding response: %w", err)
	}
	if reading.FeedID == "" {
		reading.FeedID = feedID
	}

	age := c.clock().Sub(time.Unix(reading.UpdatedAt, 0))
	if age > c.maxAge {
		return Reading{}, fmt.Errorf("%w: oracle feed %s is %s old (max %s)",
			model.ErrStaleData, feedID, age.Truncate(time.Second), c.maxAge)
	}
	return reading, nil
}
