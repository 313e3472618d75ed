package placas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"frota-api/internal/observability"
)

const (
	authenticatePath = "/api/v1/authenticate"
	lookupPath       = "/api/v1/placas/numero"

	// Applied when the provider omits an expiry from the authentication
	// response.
	defaultTokenTTL = 24 * time.Hour

	maxUpstreamBodyBytes = 2 << 20
)

// ErrTokenMissing means the authentication call succeeded at the HTTP level
// but none of the probed response fields carried a token.
var ErrTokenMissing = errors.New("authentication response missing token")

// AuthError wraps any failure to obtain a bearer token. Lookups must not
// proceed past it; handlers map it to a 500.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "placas authentication failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx reply from the plate provider, kept whole so
// the handler can relay status and body to the caller.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("placas upstream returned status %d", e.StatusCode)
}

// Message extracts the human-readable error from the upstream body, trying
// the field names the provider has been observed to use.
func (e *UpstreamError) Message() string {
	var body struct {
		Message string `json:"message"`
		Erro    string `json:"erro"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err == nil {
		for _, candidate := range []string{body.Message, body.Erro, body.Error} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return "Erro ao consultar placa na API"
}

// authResponse mirrors every shape the provider has been observed to return
// from the authenticate endpoint. Which field actually carries the token is
// not contractually known, so tokenProbes tries them in a fixed order.
type authResponse struct {
	Token         string `json:"token"`
	AccessToken   string `json:"access_token"`
	AccessTokenCC string `json:"accessToken"`
	ExpiresIn     int64  `json:"expiresIn"`
	ExpiresInSnk  int64  `json:"expires_in"`
	Data          struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// tokenProbes is the ordered list of accessors tried against an
// authentication response; the first non-empty result wins.
var tokenProbes = []struct {
	Name    string
	Extract func(authResponse) string
}{
	{"token", func(r authResponse) string { return r.Token }},
	{"access_token", func(r authResponse) string { return r.AccessToken }},
	{"accessToken", func(r authResponse) string { return r.AccessTokenCC }},
	{"data.token", func(r authResponse) string { return r.Data.Token }},
	{"data.access_token", func(r authResponse) string { return r.Data.AccessToken }},
	{"auth.token", func(r authResponse) string { return r.Auth.Token }},
}

// payloadVariants is the fixed order of field names tried for the lookup
// payload. "placa" goes first because the provider's own error messages
// mention it.
var payloadVariants = []string{"placa", "numero", "plate"}

// retryableFieldError is the sole condition under which the lookup moves on
// to the next payload variant: a 400 whose erro field complains about a
// required field. Everything else is surfaced as-is so unrelated upstream
// failures are not masked as a payload-shape problem.
func retryableFieldError(e *UpstreamError) bool {
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	var body struct {
		Erro string `json:"erro"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return false
	}
	return strings.Contains(body.Erro, "obrigatória")
}

// Client talks to the plate-lookup provider, authenticating on demand and
// keeping the bearer token in a single-slot cache.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	cache      *TokenCache
	logger     *observability.Logger
	refresh    singleflight.Group
	now        func() time.Time
}

func NewClient(baseURL, email, password string, cache *TokenCache, logger *observability.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		email:    email,
		password: password,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Authenticate returns a valid bearer token, from cache when possible.
// Concurrent callers that all observe a stale cache share one upstream
// authentication call through singleflight; the winner's token is cached and
// handed to everyone.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token, ok := c.cache.Get(c.now()); ok {
		return token, nil
	}

	value, err, _ := c.refresh.Do("token", func() (any, error) {
		// A concurrent caller may have refreshed while this one waited.
		if token, ok := c.cache.Get(c.now()); ok {
			return token, nil
		}
		return c.authenticate(ctx)
	})
	if err != nil {
		return "", &AuthError{Err: err}
	}

	return value.(string), nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.logger.Info("placas_authenticating", nil)

	payload, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("encode authentication payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authenticatePath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build authentication request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authentication request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read authentication response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("placas_authentication_rejected", map[string]any{"status": resp.StatusCode})
		return "", fmt.Errorf("authentication rejected with status %d", resp.StatusCode)
	}

	var parsed authResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode authentication response: %w", err)
	}

	var token string
	for _, probe := range tokenProbes {
		if value := probe.Extract(parsed); value != "" {
			token = value
			break
		}
	}
	if token == "" {
		return "", ErrTokenMissing
	}

	ttl := defaultTokenTTL
	if parsed.ExpiresIn > 0 {
		ttl = time.Duration(parsed.ExpiresIn) * time.Second
	} else if parsed.ExpiresInSnk > 0 {
		ttl = time.Duration(parsed.ExpiresInSnk) * time.Second
	}

	c.cache.Set(token, ttl, c.now())
	c.logger.Info("placas_token_cached", map[string]any{"ttl_seconds": int64(ttl.Seconds())})

	return token, nil
}

// Lookup queries the provider for a normalized plate, probing payload field
// names in order until one is accepted. On success the upstream body and
// status are returned verbatim for relay.
func (c *Client) Lookup(ctx context.Context, placa string) ([]byte, int, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, 0, err
	}

	var lastErr error
	for _, field := range payloadVariants {
		body, status, err := c.postLookup(ctx, token, field, placa)
		if err == nil {
			return body, status, nil
		}

		lastErr = err
		var upstream *UpstreamError
		if errors.As(err, &upstream) && retryableFieldError(upstream) {
			c.logger.Info("placas_payload_rejected", map[string]any{"field": field})
			continue
		}
		return nil, 0, err
	}

	return nil, 0, lastErr
}

func (c *Client) postLookup(ctx context.Context, token, field, placa string) ([]byte, int, error) {
	payload, err := json.Marshal(map[string]string{field: placa})
	if err != nil {
		return nil, 0, fmt.Errorf("encode lookup payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+lookupPath, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read lookup response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, resp.StatusCode, nil
}
