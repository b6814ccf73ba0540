// Package csv implements a Sink that writes transactions to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/obfuscate"
)

// Header is the column layout of the produced file.
var Header = []string{
	"id", "account_id", "date", "description", "amount", "currency_code",
	"category", "type", "status", "card_number", "installment_number",
	"total_installments", "merchant_name", "merchant_cnpj",
}

// Sink writes one batch of transactions to a CSV file, obfuscating
// sensitive fields first. Each Write replaces the file.
type Sink struct {
	filePath string
	logger   *slog.Logger
}

// Config holds configuration for the CSV sink.
type Config struct {
	// FilePath is the path to the CSV output file.
	FilePath string
}

// DefaultFilePath is used when the config leaves FilePath empty.
const DefaultFilePath = "transactions.csv"

// New creates a new CSV sink.
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
		return fmt.Errorf("opening csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := range transactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(record(&transactions[i])); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	s.logger.Info("wrote transactions to csv", "file", s.filePath, "count", len(transactions))
	return nil
}

func record(t *api.Transaction) []string {
	cardNumber, installment, total := "", "", ""
	if cc := t.CreditCardMetadata; cc != nil {
		cardNumber = cc.CardNumber
		if cc.InstallmentNumber > 0 {
			installment = strconv.Itoa(cc.InstallmentNumber)
		}
		if cc.TotalInstallments > 0 {
			total = strconv.Itoa(cc.TotalInstallments)
		}
	}

	merchantName, merchantCNPJ := "", ""
	if m := t.Merchant; m != nil {
		merchantName = m.Name
		merchantCNPJ = m.CNPJ
	}

	return []string{
		t.ID,
		t.AccountID,
		t.Date,
		t.Description,
		strconv.FormatFloat(t.Amount, 'f', 2, 64),
		t.CurrencyCode,
		t.Category,
		t.Type,
		t.Status,
		cardNumber,
		installment,
		total,
		merchantName,
		merchantCNPJ,
	}
}
