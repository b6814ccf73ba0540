// Package keycache persists the provider API key between runs.
//
// The cache is a single JSON slot on disk: one key and the time it was
// issued. A key older than the provider's two hour expiry window is
// treated as invalid and must be regenerated.
package keycache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultPath is the default location of the cached API key.
const DefaultPath = "api_key.json"

// Expiry is the provider's API key lifetime.
const Expiry = 2 * time.Hour

// Cache reads and writes the single persisted API key slot.
type Cache struct {
	path   string
	logger *slog.Logger
}

// entry is the on-disk shape of the cached key.
type entry struct {
	APIKey            string    `json:"api_key"`
	APIKeyLastUpdated time.Time `json:"api_key_last_updated"`
}

// New creates a cache backed by the file at path. An empty path uses
// DefaultPath.
func New(path string, logger *slog.Logger) *Cache {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{path: path, logger: logger}
}

// Load returns the cached key and its issuance time. A missing,
// unreadable or malformed file is a cache miss (ok=false), never an
// error: the caller regenerates the key in that case.
func (c *Cache) Load() (key string, issuedAt time.Time, ok bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("unreadable API key cache, treating as miss", "path", c.path, "error", err)
		} else {
			c.logger.Info("no cached API key found", "path", c.path)
		}
		return "", time.Time{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("malformed API key cache, treating as miss", "path", c.path, "error", err)
		return "", time.Time{}, false
	}
	if e.APIKey == "" {
		return "", time.Time{}, false
	}

	return e.APIKey, e.APIKeyLastUpdated, true
}

// Save overwrites the persisted slot. After Save returns the file reflects
// the most recent successful authentication.
func (c *Cache) Save(key string, issuedAt time.Time) error {
	data, err := json.Marshal(entry{APIKey: key, APIKeyLastUpdated: issuedAt})
	if err != nil {
		return fmt.Errorf("encoding API key cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing API key cache: %w", err)
	}
	return nil
}

// Expired reports whether a key issued at issuedAt is past the expiry
// window at now. The absolute difference is intentional: clock skew or a
// corrupted cache producing a future timestamp also forces regeneration.
func Expired(issuedAt, now time.Time) bool {
	d := now.Sub(issuedAt)
	if d < 0 {
		d = -d
	}
	return d > Expiry
}
