// Package postgres implements a Sink that stores transactions in a
// PostgreSQL database for offline analysis.
package postgres

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/obfuscate"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL sink configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Sink writes transactions to a PostgreSQL database, obfuscating
// sensitive fields first. Records are upserted by a digest of the
// provider's transaction id taken before masking, so re-running a
// collection is idempotent while masked rows stay distinct.
type Sink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database and runs the schema migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Sink{pool: pool, logger: logger}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migration: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	return s, nil
}

const upsertSQL = `
	INSERT INTO transactions (
		record_key, id, account_id, date, description, amount, currency_code,
		category, type, status, card_number, merchant_name, merchant_cnpj
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (record_key) DO UPDATE SET
		id = EXCLUDED.id,
		account_id = EXCLUDED.account_id,
		date = EXCLUDED.date,
		description = EXCLUDED.description,
		amount = EXCLUDED.amount,
		currency_code = EXCLUDED.currency_code,
		category = EXCLUDED.category,
		type = EXCLUDED.type,
		status = EXCLUDED.status,
		card_number = EXCLUDED.card_number,
		merchant_name = EXCLUDED.merchant_name,
		merchant_cnpj = EXCLUDED.merchant_cnpj,
		updated_at = NOW()
`

// recordKey derives the storage key from the provider's transaction id.
// Masking maps every same-shaped id to the same string, so the key must
// be taken from the id as received, before obfuscation runs.
func recordKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// buildBatch computes record keys, masks the transactions in place and
// queues one upsert per transaction.
func buildBatch(transactions []api.Transaction) *pgx.Batch {
	keys := make([]string, len(transactions))
	for i := range transactions {
		keys[i] = recordKey(transactions[i].ID)
	}

	obfuscate.Transactions(transactions)

	batch := &pgx.Batch{}
	for i := range transactions {
		t := &transactions[i]

		cardNumber, merchantName, merchantCNPJ := "", "", ""
		if t.CreditCardMetadata != nil {
			cardNumber = t.CreditCardMetadata.CardNumber
		}
		if t.Merchant != nil {
			merchantName = t.Merchant.Name
			merchantCNPJ = t.Merchant.CNPJ
		}

		batch.Queue(upsertSQL,
			keys[i],
			t.ID,
			t.AccountID,
			t.Date,
			t.Description,
			t.Amount,
			t.CurrencyCode,
			t.Category,
			t.Type,
			t.Status,
			cardNumber,
			merchantName,
			merchantCNPJ,
		)
	}
	return batch
}

// Write obfuscates and upserts the transactions in one batch.
func (s *Sink) Write(ctx context.Context, transactions []api.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := buildBatch(transactions)

	results := tx.SendBatch(ctx, batch)
	for range transactions {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting transaction: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("wrote transactions to PostgreSQL", "count", len(transactions))
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}
