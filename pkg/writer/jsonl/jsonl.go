// Package jsonl implements a Sink that writes transactions as
// line-delimited JSON, one record per line.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/obfuscate"
)

// Sink writes one batch of transactions to a JSONL file, obfuscating
// sensitive fields first. Each Write replaces the file.
type Sink struct {
	filePath string
	logger   *slog.Logger
}

// Config holds configuration for the JSONL sink.
type Config struct {
	// FilePath is the path to the JSONL output file.
	FilePath string
}

// DefaultFilePath is used when the config leaves FilePath empty.
const DefaultFilePath = "transactions.jsonl"

// New creates a new JSONL sink.
func New(cfg Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultFilePath
	}
	return &Sink{filePath: cfg.FilePath, logger: logger}
}

// Write obfuscates and serializes the transactions.
func (s *Sink) Write(ctx context.Context, transactions []api.Transaction) error {
	obfuscate.Transactions(transactions)

	file, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening jsonl file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for i := range transactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := encoder.Encode(&transactions[i]); err != nil {
			return fmt.Errorf("encoding transaction: %w", err)
		}
	}

	s.logger.Info("wrote transactions to jsonl", "file", s.filePath, "count", len(transactions))
	return nil
}
