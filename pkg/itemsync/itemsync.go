// Package itemsync drives a connection item through the provider's
// asynchronous sync workflow: create, poll, resubmit on recoverable
// failures, and block for human input when the provider asks for it.
package itemsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/session"
	"github.com/dmesquita/openpull/pkg/status"
)

// DefaultPollInterval is the wait between polls while the item is syncing.
const DefaultPollInterval = 5 * time.Second

// Prompter surfaces an interactive provider prompt (OAuth url, MFA
// instructions) and blocks until the human acknowledges completion.
type Prompter interface {
	Ack(instructions, url string) error
}

// Config adjusts the driver's timing.
type Config struct {
	// PollInterval is the wait between polls. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Driver owns the polling loop for a single item.
type Driver struct {
	session      *session.Session
	prompter     Prompter
	logger       *slog.Logger
	pollInterval time.Duration
}

// New creates a driver over an existing session.
func New(s *session.Session, prompter Prompter, cfg Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Driver{
		session:      s,
		prompter:     prompter,
		logger:       logger,
		pollInterval: cfg.PollInterval,
	}
}

// Run creates an item and polls it until the sync completes, returning the
// item id. The loop is unbounded: short of the terminal UPDATED state,
// context cancellation is the only way out. Non-retried client errors
// propagate and end the loop.
//
// The coarse status driving the dispatch is the one the provider computes
// and returns on the item itself; the execution sub-status is mapped only
// for logging.
func (d *Driver) Run(ctx context.Context, connector api.Connector, credentials api.Credentials, opts session.ItemOptions) (string, error) {
	item, err := d.session.CreateItem(ctx, connector, credentials, opts)
	if err != nil {
		return "", err
	}
	itemID := item.ID

	d.logger.Info("item created, waiting for sync", "item_id", itemID, "connector", connector.Name)

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("polling item %s: %w", itemID, err)
		}

		item, err = d.session.Item(ctx, itemID)
		if err != nil {
			return "", err
		}

		d.logger.Info("polled item",
			"item_id", itemID,
			"status", string(item.Status),
			"execution_status", string(item.ExecutionStatus),
		)
		if item.ExecutionStatus != "" {
			coarse := status.FromExecution(item.ExecutionStatus, d.logger)
			d.logger.Debug("execution status maps to", "coarse", string(coarse))
		}

		switch item.Status {
		case status.WaitingUserInput:
			if err := d.awaitUserInput(item); err != nil {
				return "", err
			}

		case status.Updated:
			d.logger.Info("item sync completed", "item_id", itemID)
			return itemID, nil

		case status.LoginError, status.Outdated:
			d.logger.Warn("item sync failed, resubmitting credentials",
				"item_id", itemID,
				"status", string(item.Status),
			)
			if _, err := d.session.UpdateItem(ctx, itemID, connector, credentials, opts); err != nil {
				return "", err
			}

		default:
			if err := sleep(ctx, d.pollInterval); err != nil {
				return "", fmt.Errorf("polling item %s: %w", itemID, err)
			}
		}
	}
}

// awaitUserInput surfaces the provider's interactive prompt and suspends
// the loop until the prompter returns. No API calls happen in between.
func (d *Driver) awaitUserInput(item api.Item) error {
	instructions, url := "", ""
	if item.Parameter != nil {
		instructions = item.Parameter.Instructions
		url = item.Parameter.Data
	}

	d.logger.Info("item is waiting for user input",
		"item_id", item.ID,
		"instructions", instructions,
	)

	if d.prompter == nil {
		return fmt.Errorf("item %s requires user input but no prompter is configured", item.ID)
	}
	if err := d.prompter.Ack(instructions, url); err != nil {
		return fmt.Errorf("waiting for user acknowledgment: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
