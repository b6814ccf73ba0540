package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/api/sheets/v4"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/client"
	"github.com/dmesquita/openpull/pkg/config"
	"github.com/dmesquita/openpull/pkg/gclient"
	"github.com/dmesquita/openpull/pkg/itemsync"
	"github.com/dmesquita/openpull/pkg/keycache"
	"github.com/dmesquita/openpull/pkg/session"
	csvwriter "github.com/dmesquita/openpull/pkg/writer/csv"
	jsonlwriter "github.com/dmesquita/openpull/pkg/writer/jsonl"
	pgwriter "github.com/dmesquita/openpull/pkg/writer/postgres"
	sheetswriter "github.com/dmesquita/openpull/pkg/writer/sheets"
)

// runCollect drives one full collection: connect the institution, wait for
// the sync to finish and write the account's transactions to the sink.
func runCollect(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	// Cancel the run on SIGINT/SIGTERM so the polling loop can stop
	// between attempts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cache := keycache.New(cfg.APIKeyPath, logger.With("component", "keycache"))
	cli := client.New(cfg.ClientID, cfg.ClientSecret, cfg.BaseURL, cache, logger.With("component", "client"))
	if err := cli.EnsureAPIKey(ctx); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	s := session.New(cli, logger.With("component", "session"))

	resolve := session.ResolveOptions{
		Country:     cfg.ConnectorCountry,
		OpenFinance: cfg.OpenFinance,
	}
	if cfg.ConnectorID != "" {
		resolve.ID = api.ConnectorID(cfg.ConnectorID)
	} else {
		resolve.Name = cfg.ConnectorName
	}
	connector, err := s.FindConnector(ctx, resolve)
	if err != nil {
		return fmt.Errorf("resolving connector: %w", err)
	}
	logger.Info("connector resolved", "id", connector.ID, "name", connector.Name)

	driver := itemsync.New(s, itemsync.NewStdinPrompter(), itemsync.Config{}, logger.With("component", "itemsync"))
	itemID, err := driver.Run(ctx, connector, cfg.Credentials, session.ItemOptions{
		WebhookURL:   cfg.WebhookURL,
		ClientUserID: cfg.ClientUserID,
		Products:     cfg.ProductList(),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("collection canceled")
			return nil
		}
		return fmt.Errorf("syncing item: %w", err)
	}

	accountType := cfg.AccountType
	if accountType == "" {
		accountType = "CREDIT"
	}
	account, err := s.FindAccount(ctx, itemID, accountType)
	if err != nil {
		return fmt.Errorf("finding %s account: %w", accountType, err)
	}

	transactions, err := s.AllTransactions(ctx, account.ID, cfg.FromDate, cfg.ToDate, cfg.PageSize)
	if err != nil {
		return fmt.Errorf("fetching transactions: %w", err)
	}
	logger.Info("transactions fetched", "count", len(transactions), "account", account.Name)

	sink, cleanup, err := newSink(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating %s sink: %w", sinkName(cfg), err)
	}
	defer cleanup()

	if err := sink.Write(ctx, transactions); err != nil {
		return fmt.Errorf("writing transactions: %w", err)
	}

	logger.Info("collection complete", "item_id", itemID, "transactions", len(transactions))
	return nil
}

func sinkName(cfg *config.Config) string {
	if cfg.OutputFormat == "" {
		return "csv"
	}
	return cfg.OutputFormat
}

// newSink builds the configured output sink. The returned cleanup
// releases sink resources and is always safe to call.
func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (api.Sink, func(), error) {
	noop := func() {}

	switch sinkName(cfg) {
	case "csv":
		sink := csvwriter.New(csvwriter.Config{FilePath: cfg.OutputPath}, logger.With("component", "csv_writer"))
		return sink, noop, nil

	case "jsonl":
		sink := jsonlwriter.New(jsonlwriter.Config{FilePath: cfg.OutputPath}, logger.With("component", "jsonl_writer"))
		return sink, noop, nil

	case "postgres":
		sink, err := pgwriter.New(ctx, pgwriter.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		}, logger.With("component", "postgres_writer"))
		if err != nil {
			return nil, noop, err
		}
		return sink, sink.Close, nil

	case "sheets":
		httpClient, err := gclient.New(ctx, config.ClientSecretFile, gclient.DefaultTokenFile, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, noop, fmt.Errorf("creating google client: %w", err)
		}
		sink, err := sheetswriter.New(ctx, httpClient, sheetswriter.Config{
			SpreadsheetID: cfg.GSheetsID,
			Title:         cfg.GSheetsTitle,
			SheetName:     cfg.GSheetsName,
		}, logger.With("component", "sheets_writer"))
		if err != nil {
			return nil, noop, err
		}
		return sink, noop, nil
	}

	return nil, noop, fmt.Errorf("unknown output format %q", cfg.OutputFormat)
}
