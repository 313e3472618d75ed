// Package cnpj proxies the ReceitaWS company registry lookup.
package cnpj

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
)

const maxUpstreamBodyBytes = 2 << 20

var nonDigits = regexp.MustCompile(`[^0-9]`)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds the ReceitaWS client. Responses go through an in-memory
// HTTP cache so repeated lookups of the same CNPJ don't burn the upstream's
// rate limit.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   20 * time.Second,
		},
	}
}

// Consultar fetches the registry record for a CNPJ and returns the upstream
// body and status verbatim. The CNPJ is reduced to digits before hitting the
// upstream.
func (c *Client) Consultar(ctx context.Context, cnpj string) ([]byte, int, error) {
	cleaned := nonDigits.ReplaceAllString(cnpj, "")
	if cleaned == "" {
		cleaned = cnpj
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cnpj/"+cleaned, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build cnpj request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("cnpj request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read cnpj response: %w", err)
	}

	return body, resp.StatusCode, nil
}
