// Package sheets implements a Sink that appends transactions to a Google
// Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/obfuscate"
)

var header = []any{
	"Id", "Account", "Date", "Description", "Amount", "Currency", "Category", "Type", "Status",
}

// Sink appends one batch of transactions to a spreadsheet, obfuscating
// sensitive fields first.
type Sink struct {
	service     *sheets.Service
	spreadsheet *sheets.Spreadsheet
	sheetName   string
	logger      *slog.Logger
}

// Config holds configuration for the Sheets sink.
type Config struct {
	// SpreadsheetID is the ID of an existing spreadsheet to use. When
	// empty, a new spreadsheet titled Title is created.
	SpreadsheetID string
	// Title is the title for a newly created spreadsheet.
	Title string
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string
}

// New creates a Sheets sink over an authenticated Google HTTP client.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	s := &Sink{service: service, sheetName: cfg.SheetName, logger: logger}

	spreadsheet, err := s.initSpreadsheet(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	s.spreadsheet = spreadsheet

	logger.Info("sheets sink initialized", "spreadsheet_id", spreadsheet.SpreadsheetId)
	return s, nil
}

func (s *Sink) initSpreadsheet(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	if cfg.SpreadsheetID != "" {
		spreadsheet, err := s.service.Spreadsheets.Get(cfg.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("fetching spreadsheet %s: %w", cfg.SpreadsheetID, err)
		}
		return spreadsheet, nil
	}

	spreadsheet, err := s.service.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: cfg.Title},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}

	headerRange := fmt.Sprintf("%s!A1:I1", cfg.SheetName)
	headerReq := sheets.ValueRange{Values: [][]any{header}}
	_, err = s.service.Spreadsheets.Values.Update(spreadsheet.SpreadsheetId, headerRange, &headerReq).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("writing headers: %w", err)
	}

	s.logger.Info("created new spreadsheet", "title", cfg.Title, "id", spreadsheet.SpreadsheetId)
	return spreadsheet, nil
}

// Write obfuscates the transactions and appends them in a single API
// call, retrying on rate limits.
func (s *Sink) Write(ctx context.Context, transactions []api.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	obfuscate.Transactions(transactions)

	values := make([][]any, 0, len(transactions))
	for i := range transactions {
		t := &transactions[i]
		values = append(values, []any{
			t.ID,
			t.AccountID,
			t.Date,
			t.Description,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			t.CurrencyCode,
			t.Category,
			t.Type,
			t.Status,
		})
	}

	writeRange := fmt.Sprintf("%s!A2:I2", s.sheetName)
	writeReq := sheets.ValueRange{Values: values}

	err := retry.Do(
		func() error {
			_, err := s.service.Spreadsheets.Values.Append(s.spreadsheet.SpreadsheetId, writeRange, &writeReq).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(60*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending batch to sheet: %w", err)
	}

	s.logger.Info("wrote transactions to sheet",
		"spreadsheet_id", s.spreadsheet.SpreadsheetId,
		"count", len(transactions),
	)
	return nil
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (s *Sink) SpreadsheetID() string {
	if s.spreadsheet == nil {
		return ""
	}
	return s.spreadsheet.SpreadsheetId
}
