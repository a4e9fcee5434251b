package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// HTTPConnectionClient calls the account aggregation service that owns the
// institution credentials for each connection.
type HTTPConnectionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPConnectionClient creates a new aggregation service client.
func NewHTTPConnectionClient(baseURL, apiKey string, httpClient *http.Client) *HTTPConnectionClient {
	return &HTTPConnectionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SyncBalances refreshes cash balances for a connection.
func (c *HTTPConnectionClient) SyncBalances(ctx context.Context, connectionID string) (*BalanceSyncResult, error) {
	var result BalanceSyncResult
	if err := c.post(ctx, connectionID, "balances", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SyncHoldings refreshes investment holdings for a connection.
func (c *HTTPConnectionClient) SyncHoldings(ctx context.Context, connectionID string) (*HoldingSyncResult, error) {
	var result HoldingSyncResult
	if err := c.post(ctx, connectionID, "holdings", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SyncTransactions pulls new, modified and removed transactions for a connection.
func (c *HTTPConnectionClient) SyncTransactions(ctx context.Context, connectionID string) (*TransactionSyncResult, error) {
	var result TransactionSyncResult
	if err := c.post(ctx, connectionID, "transactions", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post calls POST /v1/connections/{id}/{resource}/sync and decodes the result.
// A 422 still carries a result body with success=false and is decoded as such.
func (c *HTTPConnectionClient) post(ctx context.Context, connectionID, resource string, out any) error {
	endpoint := fmt.Sprintf("%s/v1/connections/%s/%s/sync", c.baseURL, url.PathEscape(connectionID), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("syncing %s: %w", resource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return fmt.Errorf("syncing %s: unexpected status %d", resource, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s sync response: %w", resource, err)
	}
	return nil
}
