package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmesquita/openpull/pkg/keycache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cache := keycache.New(filepath.Join(t.TempDir(), "api_key.json"), testLogger())
	return New("client-id", "client-secret", baseURL, cache, testLogger())
}

func TestRequestSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"total": 1.0})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	body, status, err := c.Get(context.Background(), "accounts", nil, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status: got %d, want 200", status)
	}
	if body["total"] != 1.0 {
		t.Errorf("body: got %v", body)
	}
}

func TestRequestSendsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.apiKey = "test-key"

	_, _, err := c.Get(context.Background(), "items/abc", nil, map[string]string{"Accept": "text/plain"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Get("X-API-KEY") != "test-key" {
		t.Errorf("X-API-KEY: got %q, want %q", got.Get("X-API-KEY"), "test-key")
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type: got %q", got.Get("Content-Type"))
	}
	// caller headers override defaults
	if got.Get("Accept") != "text/plain" {
		t.Errorf("Accept: got %q, want %q", got.Get("Accept"), "text/plain")
	}
}

func TestRequestStripsEmptyQueryValues(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	query := map[string]string{"accountId": "acc-1", "from": "", "to": ""}
	if _, _, err := c.Get(context.Background(), "transactions", query, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if gotQuery != "accountId=acc-1" {
		t.Errorf("query: got %q, want %q", gotQuery, "accountId=acc-1")
	}
}

func TestRequestNon200IsAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"client error with message", 400, `{"message": "missing parameters"}`, "missing parameters"},
		{"server error without message", 500, `{"code": 500}`, ""},
		// the provider treats every non-200 as failure, 2xx included
		{"201 created", 201, `{"id": "x"}`, ""},
		{"error with non-JSON body", 502, "Bad Gateway", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_, status, err := c.Get(context.Background(), "items", nil, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if status != tc.status || apiErr.Status != tc.status {
				t.Errorf("status: got %d/%d, want %d", status, apiErr.Status, tc.status)
			}
			if apiErr.Message != tc.wantMessage {
				t.Errorf("message: got %q, want %q", apiErr.Message, tc.wantMessage)
			}
		})
	}
}

func TestRequestNonObjectBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[1, 2, 3]`},
		{"string", `"ok"`},
		{"not JSON at all", `<html></html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			body, status, err := c.Get(context.Background(), "whatever", nil, nil)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if status != http.StatusOK {
				t.Errorf("status: got %d, want 200", status)
			}
			if len(body) != 0 {
				t.Errorf("body: got %v, want empty map", body)
			}
		})
	}
}

func TestRequestRetriesOnTimeout(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.httpClient.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, _, err := c.Get(context.Background(), "slow", nil, nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !isTimeout(err) {
		t.Errorf("expected a timeout classification, got %v", err)
	}
	if attempts != retryAttempts {
		t.Errorf("attempts: got %d, want %d", attempts, retryAttempts)
	}
	// two fixed delays between three attempts
	if elapsed := time.Since(start); elapsed < 2*retryDelay {
		t.Errorf("elapsed %v, want at least %v of fixed delay", elapsed, 2*retryDelay)
	}
}

func TestRequestDoesNotRetryAPIErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "invalid key"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, _, err := c.Get(context.Background(), "items", nil, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts: got %d, want 1", attempts)
	}
}

func TestEnsureAPIKeyAuthenticates(t *testing.T) {
	var gotPayload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth" {
			t.Errorf("path: got %q, want /auth", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]string{"apiKey": "fresh-key"})
	}))
	defer server.Close()

	cachePath := filepath.Join(t.TempDir(), "api_key.json")
	cache := keycache.New(cachePath, testLogger())
	c := New("client-id", "client-secret", server.URL, cache, testLogger())

	if c.HasAPIKey() {
		t.Fatal("expected no key before authentication")
	}
	if err := c.EnsureAPIKey(context.Background()); err != nil {
		t.Fatalf("EnsureAPIKey: %v", err)
	}

	if gotPayload["clientId"] != "client-id" || gotPayload["clientSecret"] != "client-secret" {
		t.Errorf("auth payload: got %v", gotPayload)
	}
	if c.apiKey != "fresh-key" {
		t.Errorf("apiKey: got %q, want %q", c.apiKey, "fresh-key")
	}

	// the key must land in the cache for the next process
	key, _, ok := cache.Load()
	if !ok || key != "fresh-key" {
		t.Errorf("cached key: got %q ok=%t, want fresh-key", key, ok)
	}
}

func TestEnsureAPIKeySkipsWhenFresh(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"apiKey": "unused"})
	}))
	defer server.Close()

	cache := keycache.New(filepath.Join(t.TempDir(), "api_key.json"), testLogger())
	if err := cache.Save("cached-key", time.Now()); err != nil {
		t.Fatal(err)
	}

	c := New("client-id", "client-secret", server.URL, cache, testLogger())
	if err := c.EnsureAPIKey(context.Background()); err != nil {
		t.Fatalf("EnsureAPIKey: %v", err)
	}

	if calls != 0 {
		t.Errorf("auth calls: got %d, want 0", calls)
	}
	if c.apiKey != "cached-key" {
		t.Errorf("apiKey: got %q, want cached-key", c.apiKey)
	}
}

func TestEnsureAPIKeyRefreshesExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"apiKey": "refreshed"})
	}))
	defer server.Close()

	cache := keycache.New(filepath.Join(t.TempDir(), "api_key.json"), testLogger())
	if err := cache.Save("stale-key", time.Now().Add(-3*time.Hour)); err != nil {
		t.Fatal(err)
	}

	c := New("client-id", "client-secret", server.URL, cache, testLogger())
	if err := c.EnsureAPIKey(context.Background()); err != nil {
		t.Fatalf("EnsureAPIKey: %v", err)
	}
	if c.apiKey != "refreshed" {
		t.Errorf("apiKey: got %q, want refreshed", c.apiKey)
	}
}

func TestAuthenticateMissingKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something": "else"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.EnsureAPIKey(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
}
