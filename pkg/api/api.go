// Package api defines the core interfaces and data structures for openpull.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmesquita/openpull/pkg/status"
)

// ConnectorID identifies an institution connector. The provider serves
// numeric ids, but they are opaque to us: keeping them as strings makes
// lookups an exact byte comparison. UnmarshalJSON accepts either form and
// MarshalJSON re-emits numeric ids as JSON numbers so item payloads match
// what the provider expects.
type ConnectorID string

func (c *ConnectorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshaling connector id: %w", err)
		}
		*c = ConnectorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshaling connector id: %w", err)
	}
	*c = ConnectorID(n.String())
	return nil
}

func (c ConnectorID) MarshalJSON() ([]byte, error) {
	if isNumeric(string(c)) {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CredentialField describes one credential parameter a connector requires.
type CredentialField struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Optional   bool   `json:"optional"`
	Validation string `json:"validation"`
	// ValidationMessage is the provider's human-readable hint for the
	// validation pattern.
	ValidationMessage string `json:"validationMessage"`
}

// Connector is the provider's descriptor for a supported institution and
// the credential fields it requires. Immutable once fetched.
type Connector struct {
	ID            ConnectorID       `json:"id"`
	Name          string            `json:"name"`
	Country       string            `json:"country"`
	Type          string            `json:"type"`
	IsOpenFinance bool              `json:"isOpenFinance"`
	Credentials   []CredentialField `json:"credentials"`
}

// ItemParameter carries the interactive prompt the provider surfaces while
// an item is waiting for user input (OAuth url, MFA instructions).
type ItemParameter struct {
	Data         string `json:"data"`
	Instructions string `json:"instructions"`
}

// Item is a single connection attempt linking user credentials to a
// connector. Only the ID outlives the polling loop.
type Item struct {
	ID              string                 `json:"id"`
	Status          status.ItemStatus      `json:"status"`
	ExecutionStatus status.ExecutionStatus `json:"executionStatus"`
	Parameter       *ItemParameter         `json:"parameter,omitempty"`
}

// Account is a bank or credit account the provider discovered under an item.
type Account struct {
	ID            string  `json:"id"`
	ItemID        string  `json:"itemId"`
	Type          string  `json:"type"`
	Subtype       string  `json:"subtype"`
	Name          string  `json:"name"`
	MarketingName string  `json:"marketingName"`
	Number        string  `json:"number"`
	Balance       float64 `json:"balance"`
	CurrencyCode  string  `json:"currencyCode"`
}

// CreditCardMetadata is the card-specific portion of a transaction.
// CardNumber and PayeeMCC are sensitive and obfuscated before persistence.
type CreditCardMetadata struct {
	InstallmentNumber int    `json:"installmentNumber,omitempty"`
	TotalInstallments int    `json:"totalInstallments,omitempty"`
	PurchaseDate      string `json:"purchaseDate,omitempty"`
	PayeeMCC          *int64 `json:"payeeMCC,omitempty"`
	CardNumber        string `json:"cardNumber,omitempty"`
}

// Merchant is the counterparty of a transaction. CNPJ and CNAE are tax and
// activity identifiers and are obfuscated before persistence.
type Merchant struct {
	Name         string `json:"name,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	CNPJ         string `json:"cnpj,omitempty"`
	CNAE         string `json:"cnae,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Transaction is a single financial movement as reported by the provider.
type Transaction struct {
	ID                 string              `json:"id"`
	AccountID          string              `json:"accountId"`
	Description        string              `json:"description"`
	DescriptionRaw     string              `json:"descriptionRaw,omitempty"`
	CurrencyCode       string              `json:"currencyCode"`
	Amount             float64             `json:"amount"`
	Date               string              `json:"date"`
	Category           string              `json:"category,omitempty"`
	Type               string              `json:"type"`
	Status             string              `json:"status"`
	CreditCardMetadata *CreditCardMetadata `json:"creditCardMetadata,omitempty"`
	Merchant           *Merchant           `json:"merchant,omitempty"`
}

// TransactionPage is one page of the provider's transaction listing.
type TransactionPage struct {
	Results    []Transaction `json:"results"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
}

// Credentials maps credential field names to the values the user supplied.
type Credentials map[string]string

// Sink serializes a finished batch of transactions to a destination.
// Implementations are expected to obfuscate sensitive fields before
// writing.
type Sink interface {
	Write(ctx context.Context, transactions []Transaction) error
}
