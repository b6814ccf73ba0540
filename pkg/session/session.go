// Package session owns one authenticated provider session: the connector
// directory snapshot, item create/update/fetch/delete, account listing and
// transaction pagination.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dmesquita/openpull/pkg/api"
	"github.com/dmesquita/openpull/pkg/client"
)

// DefaultCountry is the connector directory region queried when the caller
// does not pick one.
const DefaultCountry = "BR"

// DefaultPageSize is used by AllTransactions. It is deliberately larger
// than the endpoint's own default of 20 to cut down on round trips.
const DefaultPageSize = 280

// Session wraps the API client with typed operations. The connector
// snapshot is owned by the session and lives for its lifetime; there are
// no package-level caches.
type Session struct {
	client     *client.Client
	logger     *slog.Logger
	connectors []api.Connector
}

// New creates a session on top of an authenticated client.
func New(c *client.Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{client: c, logger: logger}
}

// Connectors fetches the full connector list for a region and mode. The
// result is not cached here: filters vary between calls.
func (s *Session) Connectors(ctx context.Context, country string, openFinance bool) ([]api.Connector, error) {
	if country == "" {
		country = DefaultCountry
	}

	query := map[string]string{
		"countries":     country,
		"isOpenFinance": strconv.FormatBool(openFinance),
	}

	body, _, err := s.client.Get(ctx, "connectors", query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing connectors: %w", err)
	}

	var connectors []api.Connector
	if err := decode(body["results"], &connectors); err != nil {
		return nil, fmt.Errorf("decoding connector list: %w", err)
	}
	return connectors, nil
}

// Connector fetches a single connector by id.
func (s *Session) Connector(ctx context.Context, id api.ConnectorID) (api.Connector, error) {
	body, _, err := s.client.Get(ctx, "connectors/"+string(id), nil, nil)
	if err != nil {
		return api.Connector{}, fmt.Errorf("fetching connector %s: %w", id, err)
	}

	var connector api.Connector
	if err := decode(body, &connector); err != nil {
		return api.Connector{}, fmt.Errorf("decoding connector: %w", err)
	}
	return connector, nil
}

// ResolveOptions selects a connector out of the directory. Exactly one of
// ID and Name must be set.
type ResolveOptions struct {
	ID          api.ConnectorID
	Name        string
	Country     string
	OpenFinance bool
}

// FindConnector resolves a connector by id (exact, case-sensitive) or name
// (case-insensitive). The first resolution fetches the directory once and
// caches the snapshot for the lifetime of the session.
func (s *Session) FindConnector(ctx context.Context, opts ResolveOptions) (api.Connector, error) {
	if opts.ID == "" && opts.Name == "" {
		return api.Connector{}, fmt.Errorf("%w: connector id or name must be provided", ErrUsage)
	}
	if opts.ID != "" && opts.Name != "" {
		return api.Connector{}, fmt.Errorf("%w: provide either connector id or name, not both", ErrUsage)
	}

	if s.connectors == nil {
		connectors, err := s.Connectors(ctx, opts.Country, opts.OpenFinance)
		if err != nil {
			return api.Connector{}, err
		}
		s.connectors = connectors
	}

	for _, connector := range s.connectors {
		if opts.ID != "" && connector.ID == opts.ID {
			return connector, nil
		}
		if opts.Name != "" && strings.EqualFold(connector.Name, opts.Name) {
			return connector, nil
		}
	}

	selector := string(opts.ID)
	if selector == "" {
		selector = opts.Name
	}
	return api.Connector{}, &NotFoundError{Selector: selector}
}

// ItemOptions carries the optional item creation parameters.
type ItemOptions struct {
	WebhookURL   string
	Products     []string
	ClientUserID string
}

// CreateItem starts a new connection attempt against a connector.
func (s *Session) CreateItem(ctx context.Context, connector api.Connector, credentials api.Credentials, opts ItemOptions) (api.Item, error) {
	payload, err := buildItemPayload(connector, credentials, opts)
	if err != nil {
		return api.Item{}, err
	}

	body, _, err := s.client.Post(ctx, "items", payload, nil, nil)
	if err != nil {
		return api.Item{}, fmt.Errorf("creating item: %w", err)
	}

	var item api.Item
	if err := decode(body, &item); err != nil {
		return api.Item{}, fmt.Errorf("decoding item: %w", err)
	}
	return item, nil
}

// UpdateItem resubmits credentials for an existing item.
func (s *Session) UpdateItem(ctx context.Context, itemID string, connector api.Connector, credentials api.Credentials, opts ItemOptions) (api.Item, error) {
	payload, err := buildItemPayload(connector, credentials, opts)
	if err != nil {
		return api.Item{}, err
	}

	body, _, err := s.client.Patch(ctx, "items/"+itemID, payload, nil, nil)
	if err != nil {
		return api.Item{}, fmt.Errorf("updating item %s: %w", itemID, err)
	}

	var item api.Item
	if err := decode(body, &item); err != nil {
		return api.Item{}, fmt.Errorf("decoding item: %w", err)
	}
	return item, nil
}

// Item fetches the current state of an item.
func (s *Session) Item(ctx context.Context, itemID string) (api.Item, error) {
	body, _, err := s.client.Get(ctx, "items/"+itemID, nil, nil)
	if err != nil {
		return api.Item{}, fmt.Errorf("fetching item %s: %w", itemID, err)
	}

	var item api.Item
	if err := decode(body, &item); err != nil {
		return api.Item{}, fmt.Errorf("decoding item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item and returns the number of items deleted.
func (s *Session) DeleteItem(ctx context.Context, itemID string) (int, error) {
	body, _, err := s.client.Delete(ctx, "items/"+itemID, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("deleting item %s: %w", itemID, err)
	}

	count, _ := body["count"].(float64)
	return int(count), nil
}

// Accounts lists the accounts discovered under an item.
func (s *Session) Accounts(ctx context.Context, itemID string) ([]api.Account, error) {
	body, _, err := s.client.Get(ctx, "accounts", map[string]string{"itemId": itemID}, nil)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	var accounts []api.Account
	if err := decode(body["results"], &accounts); err != nil {
		return nil, fmt.Errorf("decoding account list: %w", err)
	}
	return accounts, nil
}

// Account fetches a single account.
func (s *Session) Account(ctx context.Context, accountID, itemID string) (api.Account, error) {
	body, _, err := s.client.Get(ctx, "accounts/"+accountID, map[string]string{"itemId": itemID}, nil)
	if err != nil {
		return api.Account{}, fmt.Errorf("fetching account %s: %w", accountID, err)
	}

	var account api.Account
	if err := decode(body, &account); err != nil {
		return api.Account{}, fmt.Errorf("decoding account: %w", err)
	}
	return account, nil
}

// FindAccount returns the first account of the given type (e.g. "CREDIT"),
// or a NotFoundError when the item has none.
func (s *Session) FindAccount(ctx context.Context, itemID, accountType string) (api.Account, error) {
	accounts, err := s.Accounts(ctx, itemID)
	if err != nil {
		return api.Account{}, err
	}

	for _, account := range accounts {
		if strings.EqualFold(account.Type, accountType) {
			return account, nil
		}
	}
	return api.Account{}, &NotFoundError{Selector: accountType + " account"}
}

// TransactionQuery selects one page of an account's transaction history.
type TransactionQuery struct {
	AccountID string
	From      string
	To        string
	PageSize  int
	Page      int
}

// Transactions fetches one page of transactions.
func (s *Session) Transactions(ctx context.Context, q TransactionQuery) (api.TransactionPage, error) {
	if q.AccountID == "" {
		return api.TransactionPage{}, fmt.Errorf("%w: account id is needed to request transactions", ErrUsage)
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	query := map[string]string{
		"accountId": q.AccountID,
		"from":      q.From,
		"to":        q.To,
		"pageSize":  strconv.Itoa(q.PageSize),
		"page":      strconv.Itoa(q.Page),
	}

	body, _, err := s.client.Get(ctx, "transactions", query, nil)
	if err != nil {
		return api.TransactionPage{}, fmt.Errorf("listing transactions: %w", err)
	}

	var page api.TransactionPage
	if err := decode(body, &page); err != nil {
		return api.TransactionPage{}, fmt.Errorf("decoding transaction page: %w", err)
	}
	return page, nil
}

// AllTransactions walks the paged listing endpoint and concatenates every
// page in received order. It stops on the first empty page or once the
// reported total page count is reached, whichever comes first.
func (s *Session) AllTransactions(ctx context.Context, accountID, from, to string, pageSize int) ([]api.Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is needed to request transactions", ErrUsage)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []api.Transaction
	totalPages := -1

	for page := 1; totalPages < 0 || page <= totalPages; page++ {
		result, err := s.Transactions(ctx, TransactionQuery{
			AccountID: accountID,
			From:      from,
			To:        to,
			PageSize:  pageSize,
			Page:      page,
		})
		if err != nil {
			return nil, err
		}

		totalPages = result.TotalPages
		if len(result.Results) == 0 {
			break
		}
		all = append(all, result.Results...)
	}

	s.logger.Debug("fetched transaction history", "account_id", accountID, "count", len(all))
	return all, nil
}

// decode round-trips a parsed JSON value into a typed destination. The
// client hands back generic maps; this is where they become domain types.
func decode(v any, dst any) error {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
