// Package fipe proxies the FIPE price-table API
// (https://deividfortuna.github.io/fipe/v2/).
package fipe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
)

const maxUpstreamBodyBytes = 2 << 20

// VehicleTypes are the path segments the FIPE API accepts.
var VehicleTypes = map[string]bool{
	"cars":        true,
	"motorcycles": true,
	"trucks":      true,
}

type Client struct {
	baseURL           string
	subscriptionToken string
	httpClient        *http.Client
}

// NewClient builds the FIPE client. The subscription token is optional; it
// only raises the upstream rate limit. FIPE tables change monthly, so
// responses ride an in-memory HTTP cache.
func NewClient(baseURL, subscriptionToken string) *Client {
	return &Client{
		baseURL:           strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		subscriptionToken: strings.TrimSpace(subscriptionToken),
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   20 * time.Second,
		},
	}
}

// Get fetches a FIPE path relative to the base URL, forwarding the optional
// reference (price-table month) query parameter, and returns the upstream
// body and status verbatim.
func (c *Client) Get(ctx context.Context, path, reference string) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if reference != "" {
		endpoint += "?reference=" + url.QueryEscape(reference)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build fipe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.subscriptionToken != "" {
		req.Header.Set("X-Subscription-Token", c.subscriptionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fipe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read fipe response: %w", err)
	}

	return body, resp.StatusCode, nil
}
