package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dmesquita/openpull/pkg/client"
	"github.com/dmesquita/openpull/pkg/config"
	"github.com/dmesquita/openpull/pkg/keycache"
	"github.com/dmesquita/openpull/pkg/session"
)

// runConnectors lists the institution connectors the provider offers.
func runConnectors(logger *slog.Logger, args []string) error {
	flags := flag.NewFlagSet("connectors", flag.ExitOnError)
	country := flags.String("country", "", "filter by country code (default "+session.DefaultCountry+")")
	openFinance := flags.Bool("open-finance", false, "only list Open Finance connectors")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	cache := keycache.New(cfg.APIKeyPath, logger.With("component", "keycache"))
	cli := client.New(cfg.ClientID, cfg.ClientSecret, cfg.BaseURL, cache, logger.With("component", "client"))
	if err := cli.EnsureAPIKey(ctx); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	s := session.New(cli, logger.With("component", "session"))
	connectors, err := s.Connectors(ctx, *country, *openFinance)
	if err != nil {
		return fmt.Errorf("listing connectors: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOUNTRY\tTYPE\tOPEN FINANCE")
	for _, c := range connectors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Country, c.Type, c.IsOpenFinance)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d connectors\n", len(connectors))
	return nil
}
