package config

import (
	"fmt"
	"strings"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// CredentialPrefix marks environment variables that carry connector
// credentials, e.g. CREDENTIAL_CPF=12345678901 becomes the "cpf" field.
const CredentialPrefix = "CREDENTIAL_"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// ClientID is the Pluggy API client id.
	// Environment variable: PLUGGY_CLIENT_ID
	ClientID string `koanf:"PLUGGY_CLIENT_ID"`

	// ClientSecret is the Pluggy API client secret.
	// Environment variable: PLUGGY_CLIENT_SECRET
	ClientSecret string `koanf:"PLUGGY_CLIENT_SECRET"`

	// BaseURL overrides the Pluggy API base URL (testing, sandboxes).
	// Environment variable: PLUGGY_BASE_URL
	BaseURL string `koanf:"PLUGGY_BASE_URL"`

	// APIKeyPath is where the cached API key is stored.
	// Environment variable: API_KEY_PATH
	APIKeyPath string `koanf:"API_KEY_PATH"`

	// ConnectorName selects the institution connector by name.
	// Environment variable: CONNECTOR_NAME
	ConnectorName string `koanf:"CONNECTOR_NAME"`

	// ConnectorID selects the institution connector by id. Takes
	// precedence over ConnectorName when both are set.
	// Environment variable: CONNECTOR_ID
	ConnectorID string `koanf:"CONNECTOR_ID"`

	// ConnectorCountry filters the connector listing.
	// Environment variable: CONNECTOR_COUNTRY
	ConnectorCountry string `koanf:"CONNECTOR_COUNTRY"`

	// OpenFinance restricts the connector listing to Open Finance ones.
	// Environment variable: OPEN_FINANCE
	OpenFinance bool `koanf:"OPEN_FINANCE"`

	// AccountType is the account to collect transactions from.
	// Environment variable: ACCOUNT_TYPE
	AccountType string `koanf:"ACCOUNT_TYPE"`

	// FromDate and ToDate bound the transaction window (YYYY-MM-DD).
	// Environment variables: FROM_DATE, TO_DATE
	FromDate string `koanf:"FROM_DATE"`
	ToDate   string `koanf:"TO_DATE"`

	// PageSize overrides the transaction page size.
	// Environment variable: PAGE_SIZE
	PageSize int `koanf:"PAGE_SIZE"`

	// WebhookURL and ClientUserID are forwarded on item creation.
	// Environment variables: WEBHOOK_URL, CLIENT_USER_ID
	WebhookURL   string `koanf:"WEBHOOK_URL"`
	ClientUserID string `koanf:"CLIENT_USER_ID"`

	// Products restricts what the item collects, comma separated,
	// e.g. "ACCOUNTS,TRANSACTIONS". Empty means the provider default.
	// Environment variable: PRODUCTS
	Products string `koanf:"PRODUCTS"`

	// OutputFormat selects the sink: csv, jsonl, postgres or sheets.
	// Environment variable: OUTPUT_FORMAT
	OutputFormat string `koanf:"OUTPUT_FORMAT"`

	// OutputPath is the file path for the csv and jsonl sinks.
	// Environment variable: OUTPUT_PATH
	OutputPath string `koanf:"OUTPUT_PATH"`

	// Postgres sink settings.
	// Environment variables: POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB,
	// POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_SSLMODE
	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDB       string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`

	// Google Sheets sink settings.
	// Environment variables: GSHEETS_ID, GSHEETS_TITLE, GSHEETS_NAME
	GSheetsID    string `koanf:"GSHEETS_ID"`
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`
	GSheetsName  string `koanf:"GSHEETS_NAME"`

	// Credentials are populated from CREDENTIAL_* environment variables,
	// not from a single koanf key.
	Credentials map[string]string
}

// ProductList splits Products on commas, dropping blanks.
func (c *Config) ProductList() []string {
	if c.Products == "" {
		return nil
	}
	var products []string
	for _, p := range strings.Split(c.Products, ",") {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	return products
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("PLUGGY_CLIENT_ID environment variable is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("PLUGGY_CLIENT_SECRET environment variable is required")
	}
	return nil
}

// ValidateRun checks the fields the collection run additionally needs.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ConnectorID == "" && c.ConnectorName == "" {
		return fmt.Errorf("either CONNECTOR_ID or CONNECTOR_NAME environment variable is required")
	}
	switch c.OutputFormat {
	case "", "csv", "jsonl":
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required for the postgres output")
		}
	case "sheets":
		if c.GSheetsID == "" && c.GSheetsTitle == "" {
			return fmt.Errorf("either GSHEETS_ID or GSHEETS_TITLE is required for the sheets output")
		}
	default:
		return fmt.Errorf("unknown OUTPUT_FORMAT %q (want csv, jsonl, postgres or sheets)", c.OutputFormat)
	}
	return nil
}
