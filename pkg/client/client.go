// Package client provides the authenticated HTTP gateway to the Pluggy
// REST API: API key issuance and caching, verb-shaped request helpers, and
// a bounded retry on transport timeouts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"

	"github.com/dmesquita/openpull/pkg/keycache"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.pluggy.ai"

const (
	requestTimeout = 30 * time.Second
	retryAttempts  = 3
	retryDelay     = 1 * time.Second
)

// defaultHeaders are sent on every request unless overridden by the caller.
var defaultHeaders = map[string]string{
	"accept":       "application/json",
	"content-type": "application/json",
}

// Client is the single authenticated gateway to the provider's REST
// surface. It owns the API key and refreshes it through the key cache.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	cache        *keycache.Cache
	logger       *slog.Logger

	apiKey         string
	apiKeyIssuedAt time.Time
}

// New creates a client for the given credentials. Any previously cached
// API key is loaded immediately; no authentication call is made until a
// request needs one.
func New(clientID, clientSecret, baseURL string, cache *keycache.Cache, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = keycache.New("", logger)
	}

	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: requestTimeout},
		cache:        cache,
		logger:       logger,
	}

	if key, issuedAt, ok := cache.Load(); ok {
		c.apiKey = key
		c.apiKeyIssuedAt = issuedAt
	}

	return c
}

// EnsureAPIKey makes sure a usable API key is loaded, authenticating when
// none is cached or the cached one is past its expiry window.
func (c *Client) EnsureAPIKey(ctx context.Context) error {
	if c.apiKey != "" && !keycache.Expired(c.apiKeyIssuedAt, time.Now()) {
		return nil
	}

	if c.apiKey == "" {
		c.logger.Debug("generating API key for the first time")
	} else {
		c.logger.Debug("API key expired, generating a new one")
	}

	return c.authenticate(ctx)
}

// HasAPIKey reports whether a (possibly expired) key is currently loaded.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

func (c *Client) authenticate(ctx context.Context) error {
	payload := map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	}

	body, _, err := c.Request(ctx, http.MethodPost, "auth", nil, payload, nil)
	if err != nil {
		return fmt.Errorf("requesting API key: %w", err)
	}

	key, ok := body["apiKey"].(string)
	if !ok || key == "" {
		return &AuthError{Reason: "auth response has no apiKey field"}
	}

	c.apiKey = key
	c.apiKeyIssuedAt = time.Now()

	if err := c.cache.Save(c.apiKey, c.apiKeyIssuedAt); err != nil {
		return fmt.Errorf("caching API key: %w", err)
	}

	return nil
}

// Get issues a GET request to endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, query map[string]string, headers map[string]string) (map[string]any, int, error) {
	return c.Request(ctx, http.MethodGet, endpoint, query, nil, headers)
}

// Post issues a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, query map[string]string, headers map[string]string) (map[string]any, int, error) {
	return c.Request(ctx, http.MethodPost, endpoint, query, payload, headers)
}

// Patch issues a PATCH request with a JSON payload.
func (c *Client) Patch(ctx context.Context, endpoint string, payload any, query map[string]string, headers map[string]string) (map[string]any, int, error) {
	return c.Request(ctx, http.MethodPatch, endpoint, query, payload, headers)
}

// Put issues a PUT request with a JSON payload.
func (c *Client) Put(ctx context.Context, endpoint string, payload any, query map[string]string, headers map[string]string) (map[string]any, int, error) {
	return c.Request(ctx, http.MethodPut, endpoint, query, payload, headers)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, query map[string]string, headers map[string]string) (map[string]any, int, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, query, nil, headers)
}

// Request performs one API call. Query parameters with empty values are
// stripped before transmission. The call is retried up to retryAttempts
// times with a fixed delay, but only when the transport times out; any
// other failure propagates immediately.
//
// The returned body is always a map: a body that is not a JSON object is
// logged and replaced by an empty map alongside the real status code.
func (c *Client) Request(ctx context.Context, method, endpoint string, query map[string]string, payload any, headers map[string]string) (map[string]any, int, error) {
	var (
		body   map[string]any
		status int
	)

	err := retry.Do(
		func() error {
			var err error
			body, status, err = c.call(ctx, method, endpoint, query, payload, headers)
			return err
		},
		retry.RetryIf(func(err error) bool {
			if isTimeout(err) {
				c.logger.Warn("timeout calling API, will retry",
					"method", method,
					"endpoint", endpoint,
					"error", err,
				)
				return true
			}
			return false
		}),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, status, err
	}

	return body, status, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, query map[string]string, payload any, headers map[string]string) (map[string]any, int, error) {
	callURL := c.baseURL + "/" + endpoint

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request payload: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, callURL, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	if len(query) > 0 {
		values := url.Values{}
		for key, value := range query {
			if value == "" {
				continue
			}
			values.Set(key, value)
		}
		req.URL.RawQuery = values.Encode()
	}

	for key, value := range defaultHeaders {
		req.Header.Set(key, value)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
	// Caller-supplied headers win over the defaults.
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("calling API endpoint", "method", method, "url", callURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("transport error calling API",
			"method", method,
			"endpoint", endpoint,
			"error", err,
		)
		return nil, 0, fmt.Errorf("calling %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.logger.Error("error decoding JSON response",
			"method", method,
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		parsed = map[string]any{}
	}

	object, isObject := parsed.(map[string]any)

	// The provider's success code is exactly 200; everything else,
	// including other 2xx codes, is a failure.
	if resp.StatusCode != http.StatusOK {
		message := ""
		if isObject {
			message, _ = object["message"].(string)
		}
		apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: message}
		c.logger.Error("error calling API endpoint",
			"method", method,
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"message", message,
		)
		return nil, resp.StatusCode, apiErr
	}

	if !isObject {
		c.logger.Error("JSON response of unexpected type",
			"method", method,
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		return map[string]any{}, resp.StatusCode, nil
	}

	return object, resp.StatusCode, nil
}

// isTimeout classifies transport timeouts, the only retryable failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
