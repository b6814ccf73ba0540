package itemsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/client"
	"github.com/dmesquita/openpull/pkg/keycache"
	"github.com/dmesquita/openpull/pkg/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeProvider scripts the item lifecycle: each poll returns the next
// entry of the status sequence, sticking on the last one.
type fakeProvider struct {
	mu      sync.Mutex
	polls   []map[string]any
	poll    int
	patches int
}

func (f *fakeProvider) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/items":
			json.NewEncoder(w).Encode(map[string]any{"id": "item-1", "status": "UPDATING"})

		case r.Method == http.MethodGet && r.URL.Path == "/items/item-1":
			state := f.polls[f.poll]
			if f.poll < len(f.polls)-1 {
				f.poll++
			}
			response := map[string]any{"id": "item-1"}
			for k, v := range state {
				response[k] = v
			}
			json.NewEncoder(w).Encode(response)

		case r.Method == http.MethodPatch && r.URL.Path == "/items/item-1":
			f.patches++
			json.NewEncoder(w).Encode(map[string]any{"id": "item-1", "status": "UPDATING"})

		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeProvider) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches
}

type recordingPrompter struct {
	calls        int
	instructions string
	url          string
}

func (p *recordingPrompter) Ack(instructions, url string) error {
	p.calls++
	p.instructions = instructions
	p.url = url
	return nil
}

func newTestDriver(t *testing.T, provider *fakeProvider, prompter Prompter) *Driver {
	t.Helper()
	server := httptest.NewServer(provider.handler())
	t.Cleanup(server.Close)

	cache := keycache.New(filepath.Join(t.TempDir(), "api_key.json"), testLogger())
	c := client.New("id", "secret", server.URL, cache, testLogger())
	s := session.New(c, testLogger())

	return New(s, prompter, Config{PollInterval: time.Millisecond}, testLogger())
}

func testConnector() api.Connector {
	return api.Connector{ID: "601", Name: "Nubank"}
}

func TestRunCompletesOnUpdated(t *testing.T) {
	provider := &fakeProvider{polls: []map[string]any{
		{"status": "UPDATING", "executionStatus": "LOGIN_IN_PROGRESS"},
		{"status": "UPDATING", "executionStatus": "TRANSACTIONS_IN_PROGRESS"},
		{"status": "UPDATED", "executionStatus": "SUCCESS"},
	}}
	driver := newTestDriver(t, provider, nil)

	itemID, err := driver.Run(context.Background(), testConnector(), nil, session.ItemOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if itemID != "item-1" {
		t.Errorf("item id: got %q, want item-1", itemID)
	}
	if provider.patchCount() != 0 {
		t.Errorf("patches: got %d, want 0", provider.patchCount())
	}
}

func TestRunResubmitsOnLoginError(t *testing.T) {
	provider := &fakeProvider{polls: []map[string]any{
		{"status": "LOGIN_ERROR", "executionStatus": "INVALID_CREDENTIALS"},
		{"status": "UPDATED"},
	}}
	driver := newTestDriver(t, provider, nil)

	if _, err := driver.Run(context.Background(), testConnector(), nil, session.ItemOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.patchCount() != 1 {
		t.Errorf("patches: got %d, want 1", provider.patchCount())
	}
}

func TestRunResubmitsOnOutdated(t *testing.T) {
	provider := &fakeProvider{polls: []map[string]any{
		{"status": "OUTDATED", "executionStatus": "CONNECTION_ERROR"},
		{"status": "UPDATED"},
	}}
	driver := newTestDriver(t, provider, nil)

	if _, err := driver.Run(context.Background(), testConnector(), nil, session.ItemOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.patchCount() != 1 {
		t.Errorf("patches: got %d, want 1", provider.patchCount())
	}
}

func TestRunPromptsOnWaitingUserInput(t *testing.T) {
	provider := &fakeProvider{polls: []map[string]any{
		{"status": "WAITING_USER_INPUT", "parameter": map[string]any{
			"data":         "https://auth.example.com",
			"instructions": "Approve the login in your banking app",
		}},
		{"status": "UPDATED"},
	}}
	prompter := &recordingPrompter{}
	driver := newTestDriver(t, provider, prompter)

	if _, err := driver.Run(context.Background(), testConnector(), nil, session.ItemOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if prompter.calls != 1 {
		t.Errorf("prompter calls: got %d, want 1", prompter.calls)
	}
	if prompter.url != "https://auth.example.com" {
		t.Errorf("url: got %q", prompter.url)
	}
	if prompter.instructions != "Approve the login in your banking app" {
		t.Errorf("instructions: got %q", prompter.instructions)
	}
}

func TestRunFailsWithoutPrompter(t *testing.T) {
	provider := &fakeProvider{polls: []map[string]any{
		{"status": "WAITING_USER_INPUT"},
	}}
	driver := newTestDriver(t, provider, nil)

	if _, err := driver.Run(context.Background(), testConnector(), nil, session.ItemOptions{}); err == nil {
		t.Fatal("expected an error when no prompter is configured")
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	provider := &fakeProvider{polls: []map[string]any{
		{"status": "UPDATING", "executionStatus": "LOGIN_IN_PROGRESS"},
	}}
	driver := newTestDriver(t, provider, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := driver.Run(ctx, testConnector(), nil, session.ItemOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error: got %v, want context.DeadlineExceeded", err)
	}
}
