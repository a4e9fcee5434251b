// Package provider defines the upstream collaborators of the sync jobs (market
// quotes, retirement fund prices, external account connections) and their
// HTTP implementations.
package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wealthsync/internal/fundcode"
)

// MaxQuoteSymbols is the most symbols a single GetQuotes call accepts.
const MaxQuoteSymbols = 500

// Quote is a last-trade price for a symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
}

// QuoteProvider fetches market quotes. Callers chunk requests to at most
// MaxQuoteSymbols symbols. Symbols without a quote are simply absent from the
// result.
type QuoteProvider interface {
	GetQuotes(ctx context.Context, symbols []string) ([]Quote, error)
}

// FundPriceSet is the price of every retirement fund on one date.
type FundPriceSet struct {
	Date   time.Time
	Prices map[fundcode.Code]decimal.Decimal
}

// RetirementPriceProvider fetches retirement fund prices. A nil date asks for
// the latest available set. A nil set with a nil error means the feed had
// nothing for the request.
type RetirementPriceProvider interface {
	GetLatestPrices(ctx context.Context, date *time.Time) (*FundPriceSet, error)
}

// BalanceSyncResult reports a cash-side balance sync.
type BalanceSyncResult struct {
	Success         bool   `json:"success"`
	AccountsUpdated int    `json:"accounts_updated"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// HoldingSyncResult reports an investment-side holdings sync.
type HoldingSyncResult struct {
	Success         bool   `json:"success"`
	AccountsUpdated int    `json:"accounts_updated"`
	HoldingsUpdated int    `json:"holdings_updated"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// TransactionSyncResult reports an incremental transactions sync.
type TransactionSyncResult struct {
	Success      bool   `json:"success"`
	Added        int    `json:"added"`
	Modified     int    `json:"modified"`
	Removed      int    `json:"removed"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ConnectionClient drives the external aggregator for one connection. The
// aggregator persists balances, holdings and transactions itself.
type ConnectionClient interface {
	SyncBalances(ctx context.Context, connectionID string) (*BalanceSyncResult, error)
	SyncHoldings(ctx context.Context, connectionID string) (*HoldingSyncResult, error)
	SyncTransactions(ctx context.Context, connectionID string) (*TransactionSyncResult, error)
}
