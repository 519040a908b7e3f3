package actual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
	pkgerrors "github.com/pkg/errors"
)

// ClientConfig represents the configuration for the Actual HTTP API client.
type ClientConfig struct {
	ServerURL string
	APIKey    string
	Timeout   time.Duration // Default: 60 seconds

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is an Actual HTTP API client. It holds one budget session and is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	mu             sync.RWMutex
	budgetID       string
	budgetPassword string
	closed         bool
}

var _ Store = (*Client)(nil)

// NewClient creates a new Actual API client.
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    config.ServerURL,
		apiKey:     config.APIKey,
	}
}

// DownloadBudget selects the budget for later calls after checking the server knows it.
func (c *Client) DownloadBudget(ctx context.Context, budgetID, password string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	var budgets envelope[[]budgetDTO]
	if err := c.do(ctx, http.MethodGet, "/v1/budgets", nil, nil, "", &budgets); err != nil {
		return fmt.Errorf("DownloadBudget: list budgets: %w", err)
	}

	found := false
	for _, b := range budgets.Data {
		if b.GroupID == budgetID || b.CloudFileID == budgetID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("DownloadBudget: %s: %w", budgetID, ErrBudgetNotFound)
	}

	c.mu.Lock()
	c.budgetID = budgetID
	c.budgetPassword = password
	c.mu.Unlock()

	return nil
}

// GetAccounts lists the budget's accounts.
func (c *Client) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	path, password, err := c.budgetPath("/accounts")
	if err != nil {
		return nil, err
	}

	var resp envelope[[]accountDTO]
	if err := c.do(ctx, http.MethodGet, path, nil, nil, password, &resp); err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(resp.Data))
	for _, a := range resp.Data {
		accounts = append(accounts, domain.Account{ID: a.ID, Name: a.Name})
	}
	return accounts, nil
}

// GetCategoryGroups lists category groups with their categories.
func (c *Client) GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error) {
	path, password, err := c.budgetPath("/categorygroups")
	if err != nil {
		return nil, err
	}

	var resp envelope[[]categoryGroupDTO]
	if err := c.do(ctx, http.MethodGet, path, nil, nil, password, &resp); err != nil {
		return nil, fmt.Errorf("GetCategoryGroups: %w", err)
	}
	if resp.Data == nil {
		return nil, nil
	}

	groups := make([]domain.CategoryGroup, 0, len(resp.Data))
	for _, g := range resp.Data {
		groups = append(groups, g.toDomain())
	}
	return groups, nil
}

// GetTransactions lists one account's transactions in [start, end].
func (c *Client) GetTransactions(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error) {
	path, password, err := c.budgetPath("/accounts/" + url.PathEscape(accountID) + "/transactions")
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("since_date", start.String())
	query.Set("until_date", end.String())

	var resp envelope[[]transactionDTO]
	if err := c.do(ctx, http.MethodGet, path, query, nil, password, &resp); err != nil {
		return nil, fmt.Errorf("GetTransactions: account %s: %w", accountID, err)
	}

	txs := make([]domain.Transaction, 0, len(resp.Data))
	for _, dto := range resp.Data {
		tx, err := dto.toDomain()
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: account %s: %w", accountID, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// UpdateTransactionCategory sets a transaction's category.
func (c *Client) UpdateTransactionCategory(ctx context.Context, transactionID, categoryID string) error {
	if categoryID == "" {
		return fmt.Errorf("UpdateTransactionCategory: transaction %s: empty category id", transactionID)
	}
	path, password, err := c.budgetPath("/transactions/" + url.PathEscape(transactionID))
	if err != nil {
		return err
	}

	var body updateTransactionRequest
	body.Transaction.Category = categoryID

	if err := c.do(ctx, http.MethodPatch, path, nil, body, password, nil); err != nil {
		return fmt.Errorf("UpdateTransactionCategory: transaction %s: %w", transactionID, err)
	}
	return nil
}

// RunBankSync triggers bank sync for all linked accounts.
func (c *Client) RunBankSync(ctx context.Context) error {
	path, password, err := c.budgetPath("/accounts/banksync")
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPost, path, nil, nil, password, nil); err != nil {
		return fmt.Errorf("RunBankSync: %w", err)
	}
	return nil
}

// Shutdown closes the session and idle connections. It is safe to call twice.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.budgetID = ""
	c.budgetPassword = ""
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrSessionClosed
	}
	return nil
}

// budgetPath returns the budget-scoped path and the encryption password.
func (c *Client) budgetPath(suffix string) (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", "", ErrSessionClosed
	}
	if c.budgetID == "" {
		return "", "", ErrNoBudget
	}
	return "/v1/budgets/" + url.PathEscape(c.budgetID) + suffix, c.budgetPassword, nil
}

// do performs one request; out may be nil when the response body is ignored.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, password string, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if password != "" {
		req.Header.Set("budget-encryption-password", password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.WithStack(fmt.Errorf("failed to make request %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// parseError parses an error response from the Actual HTTP API.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Errorf("actual API error (status %d): failed to read error response", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return pkgerrors.Errorf("actual API error (status %d): %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	if errResp.Message != "" {
		return pkgerrors.Errorf("actual API error (status %d): %s - %s", resp.StatusCode, errResp.Error, errResp.Message)
	}
	return pkgerrors.Errorf("actual API error (status %d): %s", resp.StatusCode, errResp.Error)
}
