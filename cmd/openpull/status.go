package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmesquita/openpull/pkg/client"
	"github.com/dmesquita/openpull/pkg/config"
	"github.com/dmesquita/openpull/pkg/keycache"
	"github.com/dmesquita/openpull/pkg/session"
)

// runStatus checks the configuration and API connectivity.
func runStatus(logger *slog.Logger) error {
	fmt.Println("=== Openpull Status ===")
	fmt.Println()

	allGood := true

	cfg := checkConfigStatus(&allGood)
	cache := checkKeyCache(cfg, logger)

	if cfg != nil {
		checkAPIConnectivity(cfg, cache, logger, &allGood)
	}

	printFinalStatus(allGood)
	return nil
}

func checkConfigStatus(allGood *bool) *config.Config {
	fmt.Print("Configuration: ")
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return nil
	}
	fmt.Println("✓ Loaded")

	fmt.Print("Connector selection: ")
	switch {
	case cfg.ConnectorID != "":
		fmt.Printf("✓ id %s\n", cfg.ConnectorID)
	case cfg.ConnectorName != "":
		fmt.Printf("✓ name %q\n", cfg.ConnectorName)
	default:
		fmt.Println("⚠ Not set (required by 'openpull run')")
	}

	fmt.Print("Credentials: ")
	if len(cfg.Credentials) == 0 {
		fmt.Println("⚠ No CREDENTIAL_* variables set")
	} else {
		fmt.Printf("✓ %d fields\n", len(cfg.Credentials))
	}

	return cfg
}

// Key cache problems are warnings only: the next run authenticates again.
func checkKeyCache(cfg *config.Config, logger *slog.Logger) *keycache.Cache {
	path := keycache.DefaultPath
	if cfg != nil && cfg.APIKeyPath != "" {
		path = cfg.APIKeyPath
	}
	cache := keycache.New(path, logger.With("component", "keycache"))

	fmt.Printf("Cached API key (%s): ", path)
	_, issuedAt, ok := cache.Load()
	switch {
	case !ok:
		fmt.Println("⚠ Not found (will authenticate on next run)")
	case keycache.Expired(issuedAt, time.Now()):
		fmt.Printf("⚠ Expired (issued: %s, will refresh on next run)\n", issuedAt.Format(time.RFC3339))
	default:
		fmt.Printf("✓ Valid (issued: %s)\n", issuedAt.Format(time.RFC3339))
	}

	return cache
}

func checkAPIConnectivity(cfg *config.Config, cache *keycache.Cache, logger *slog.Logger, allGood *bool) {
	fmt.Println()
	fmt.Println("API Connectivity:")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cli := client.New(cfg.ClientID, cfg.ClientSecret, cfg.BaseURL, cache, logger.With("component", "client"))

	fmt.Print("  Authentication: ")
	if err := cli.EnsureAPIKey(ctx); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("✓ OK")

	fmt.Print("  Connector directory: ")
	s := session.New(cli, logger.With("component", "session"))
	connectors, err := s.Connectors(ctx, "", false)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Printf("✓ %d connectors\n", len(connectors))
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'openpull run' to collect transactions.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'openpull status' again.")
	}
}
