package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wealthsync/internal/config"
	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
	"wealthsync/internal/provider"
)

// Job names used in logs, metrics and scheduler registration.
const (
	JobNetWorthSnapshot = "networth_snapshot"
	JobHoldingPrices    = "holding_price_refresh"
	JobConnectionSync   = "connection_sync"
	JobFundPrices       = "fund_price_fetch"
)

// SnapshotBatchSummary reports one RunBatch execution.
type SnapshotBatchSummary struct {
	Eligible int           `json:"eligible"`
	Created  int           `json:"created"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
	Elapsed  time.Duration `json:"elapsed"`
}

// NetWorthSnapshotServicer defines the contract for net worth snapshots.
type NetWorthSnapshotServicer interface {
	ComputeSnapshot(ctx context.Context, userID string, date time.Time) (*models.NetWorthSnapshot, error)
	RunBatch(ctx context.Context, date time.Time) (*SnapshotBatchSummary, error)
	TriggerForUser(ctx context.Context, userID string) (*models.NetWorthSnapshot, error)
	GetSnapshots(ctx context.Context, userID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.NetWorthSnapshot], error)
}

// PriceRefreshSummary reports one holding price refresh.
type PriceRefreshSummary struct {
	Accounts        int           `json:"accounts"`
	AccountsUpdated int           `json:"accounts_updated"`
	Symbols         int           `json:"symbols"`
	HoldingsUpdated int           `json:"holdings_updated"`
	MissingPrices   int           `json:"missing_prices"`
	FailedAccounts  int           `json:"failed_accounts"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Errors is the number of non-fatal problems: holdings left without a price
// plus accounts that failed outright.
func (s *PriceRefreshSummary) Errors() int {
	return s.MissingPrices + s.FailedAccounts
}

// HoldingPriceServicer defines the contract for holding price refresh.
type HoldingPriceServicer interface {
	RefreshAll(ctx context.Context, at time.Time, jobs config.Jobs) (*PriceRefreshSummary, error)
	RefreshAccount(ctx context.Context, userID, accountID string, jobs config.Jobs) (*PriceRefreshSummary, error)
}

// ConnectionSyncSummary reports a multi-connection sync.
type ConnectionSyncSummary struct {
	CashSuccess   int           `json:"cash_success"`
	CashFail      int           `json:"cash_fail"`
	InvestSuccess int           `json:"invest_success"`
	InvestFail    int           `json:"invest_fail"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Failed is the number of connections that did not sync.
func (s *ConnectionSyncSummary) Failed() int {
	return s.CashFail + s.InvestFail
}

// ConnectionSyncServicer defines the contract for external connection sync.
type ConnectionSyncServicer interface {
	SyncAll(ctx context.Context) (*ConnectionSyncSummary, error)
	SyncOne(ctx context.Context, userID, connectionID string) (*provider.BalanceSyncResult, error)
	SyncForUser(ctx context.Context, userID string) (*ConnectionSyncSummary, error)
}

// RetirementPriceServicer defines the contract for retirement fund prices.
type RetirementPriceServicer interface {
	RefreshLatest(ctx context.Context) (*provider.FundPriceSet, error)
	RecordFundPrices(ctx context.Context, priceDate time.Time, prices map[string]decimal.Decimal) (*models.FundPriceSnapshot, error)
	GetLatestSnapshot(ctx context.Context) (*models.FundPriceSnapshot, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
