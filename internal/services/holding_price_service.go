package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/logger"
	"wealthsync/internal/metrics"
	"wealthsync/internal/models"
	"wealthsync/internal/provider"
)

const defaultQuoteBatchSize = 100

// holdingPriceService refreshes holding prices from the quote provider and
// keeps account balances equal to the market value of their holdings.
type holdingPriceService struct {
	db     *gorm.DB
	quotes provider.QuoteProvider
	now    func() time.Time
}

// NewHoldingPriceService creates a new HoldingPriceServicer.
func NewHoldingPriceService(db *gorm.DB, quotes provider.QuoteProvider) HoldingPriceServicer {
	return &holdingPriceService{db: db, quotes: quotes, now: time.Now}
}

// holdingPriceUpdate is a staged price change for one holding.
type holdingPriceUpdate struct {
	id    string
	price decimal.Decimal
}

// accountRefresh is the staged outcome of repricing one account.
type accountRefresh struct {
	holdings []holdingPriceUpdate
	balance  decimal.Decimal
	missing  int
}

// RefreshAll reprices every refresh-enabled active account of a non-test
// user. Quote failures are returned for the scheduler to retry; a holding
// with no quote is logged and counted. Everything is committed in one
// transaction at the end.
func (s *holdingPriceService) RefreshAll(ctx context.Context, at time.Time, jobs config.Jobs) (*PriceRefreshSummary, error) {
	start := time.Now()
	log := logger.Job(JobHoldingPrices)
	db := s.db.WithContext(ctx)
	summary := &PriceRefreshSummary{}

	policy, err := NewExclusionPolicy(jobs)
	if err != nil {
		return nil, err
	}

	var accounts []models.Account
	if err := db.
		Where("refresh_enabled = ? AND lifecycle_state = ?", true, models.LifecycleActive).
		Where("user_id IN (?)", s.db.Model(&models.User{}).Select("id").Where("is_test_account = ?", false)).
		Where("EXISTS (SELECT 1 FROM holdings WHERE holdings.account_id = accounts.id AND holdings.deleted_at IS NULL)").
		Order("id").
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading eligible accounts: %w", err))
	}
	summary.Accounts = len(accounts)
	if len(accounts) == 0 {
		log.Infow("no eligible accounts for price refresh")
		return summary, nil
	}

	holdings, err := loadHoldings(db, accounts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading holdings: %w", err))
	}

	symbols := quotableSymbols(holdings, policy)
	summary.Symbols = len(symbols)
	prices, err := s.fetchQuotes(ctx, symbols, jobs)
	if err != nil {
		return nil, err
	}

	results := make([]entityResult[accountRefresh], 0, len(accounts))
	for i := range accounts {
		if err := ctx.Err(); err != nil {
			log.Warnw("price refresh cancelled, nothing committed", "processed", len(results), "error", err)
			return nil, err
		}
		acct := &accounts[i]
		results = append(results, runEntity(acct.ID, func() (accountRefresh, error) {
			return repriceAccount(log, acct, holdings[acct.ID], prices, policy), nil
		}))
	}

	var touched []entityResult[accountRefresh]
	for _, r := range results {
		if r.Err != nil {
			summary.FailedAccounts++
			log.Errorw("failed to reprice account", "account_id", r.ID, "error", r.Err)
			continue
		}
		summary.MissingPrices += r.Value.missing
		if len(r.Value.holdings) > 0 {
			touched = append(touched, r)
		}
	}

	if err := s.commit(ctx, touched, at, false); err != nil {
		return nil, err
	}
	for _, r := range touched {
		summary.AccountsUpdated++
		summary.HoldingsUpdated += len(r.Value.holdings)
	}

	summary.Elapsed = time.Since(start)
	m := metrics.Get()
	m.AddEntities(JobHoldingPrices, metrics.OutcomeUpdated, summary.HoldingsUpdated)
	m.AddEntities(JobHoldingPrices, metrics.OutcomeWarning, summary.MissingPrices)
	m.AddEntities(JobHoldingPrices, metrics.OutcomeFailed, summary.FailedAccounts)

	log.Infow("price refresh complete",
		"accounts", summary.Accounts,
		"symbols", summary.Symbols,
		"updated", summary.HoldingsUpdated,
		"errors", summary.Errors(),
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

// RefreshAccount reprices a single account owned by userID and stamps its
// last external sync time.
func (s *holdingPriceService) RefreshAccount(ctx context.Context, userID, accountID string, jobs config.Jobs) (*PriceRefreshSummary, error) {
	start := time.Now()
	log := logger.Get().With("account_id", accountID)
	db := s.db.WithContext(ctx)

	policy, err := NewExclusionPolicy(jobs)
	if err != nil {
		return nil, err
	}

	var account models.Account
	if err := db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	holdings, err := loadHoldings(db, []models.Account{account})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	symbols := quotableSymbols(holdings, policy)
	prices, err := s.fetchQuotes(ctx, symbols, jobs)
	if err != nil {
		return nil, err
	}

	refresh := repriceAccount(log, &account, holdings[account.ID], prices, policy)
	result := entityResult[accountRefresh]{ID: account.ID, Value: refresh}
	if err := s.commit(ctx, []entityResult[accountRefresh]{result}, s.now().UTC(), true); err != nil {
		return nil, err
	}

	summary := &PriceRefreshSummary{
		Accounts:        1,
		Symbols:         len(symbols),
		HoldingsUpdated: len(refresh.holdings),
		MissingPrices:   refresh.missing,
		Elapsed:         time.Since(start),
	}
	if len(refresh.holdings) > 0 {
		summary.AccountsUpdated = 1
	}
	log.Infow("account prices refreshed",
		"user_id", userID,
		"updated", summary.HoldingsUpdated,
		"missing", summary.MissingPrices,
	)
	return summary, nil
}

// commit writes staged price changes and recomputed balances in one
// transaction. stampSync also sets last_external_sync on each account, even
// when no price changed.
func (s *holdingPriceService) commit(ctx context.Context, refreshes []entityResult[accountRefresh], at time.Time, stampSync bool) error {
	if len(refreshes) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range refreshes {
			for _, h := range r.Value.holdings {
				if err := tx.Model(&models.Holding{}).Where("id = ?", h.id).Updates(map[string]any{
					"current_price":     h.price,
					"last_price_update": at,
					"updated_at":        at,
				}).Error; err != nil {
					return fmt.Errorf("holding %s: %w", h.id, err)
				}
			}

			fields := map[string]any{}
			if len(r.Value.holdings) > 0 {
				fields["current_balance"] = r.Value.balance
				fields["updated_at"] = at
			}
			if stampSync {
				fields["last_external_sync"] = at
			}
			if len(fields) == 0 {
				continue
			}
			if err := tx.Model(&models.Account{}).Where("id = ?", r.ID).Updates(fields).Error; err != nil {
				return fmt.Errorf("account %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// fetchQuotes requests quotes in batches of jobs.QuoteBatchSize, running up
// to jobs.QuoteConcurrency batches at once. Batches are merged in request
// order so a symbol quoted by several batches keeps the last positive price.
func (s *holdingPriceService) fetchQuotes(ctx context.Context, symbols []string, jobs config.Jobs) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}

	size := jobs.QuoteBatchSize
	if size <= 0 {
		size = defaultQuoteBatchSize
	}
	size = min(size, provider.MaxQuoteSymbols)

	batches := slices.Collect(slices.Chunk(symbols, size))
	results := make([][]provider.Quote, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs.QuoteConcurrency, 1))
	for i, batch := range batches {
		g.Go(func() error {
			quotes, err := s.quotes.GetQuotes(gctx, batch)
			if err != nil {
				return fmt.Errorf("quote batch %d of %d: %w", i+1, len(batches), err)
			}
			results[i] = quotes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.Wrap(apperrors.ErrQuoteFetchFailed, err)
	}

	for _, quotes := range results {
		for _, q := range quotes {
			if q.Price.IsPositive() {
				prices[normalizeSymbol(q.Symbol)] = q.Price
			}
		}
	}
	return prices, nil
}

// loadHoldings loads the holdings of accounts keyed by account ID.
func loadHoldings(db *gorm.DB, accounts []models.Account) (map[string][]models.Holding, error) {
	ids := make([]string, len(accounts))
	for i := range accounts {
		ids[i] = accounts[i].ID
	}
	rows, err := findIn[models.Holding](db.Order("account_id, symbol, id"), "account_id", ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Holding, len(accounts))
	for _, h := range rows {
		out[h.AccountID] = append(out[h.AccountID], h)
	}
	return out, nil
}

// quotableSymbols returns the sorted, de-duplicated, uppercased symbols that
// are not excluded.
func quotableSymbols(holdings map[string][]models.Holding, policy *ExclusionPolicy) []string {
	set := make(map[string]struct{})
	for _, hs := range holdings {
		for i := range hs {
			if policy.IsExcluded(hs[i].Symbol) {
				continue
			}
			set[normalizeSymbol(hs[i].Symbol)] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// repriceAccount applies prices to the account's holdings and recomputes its
// balance over all of them. Excluded holdings are never repriced, whatever
// the price map holds.
func repriceAccount(log *zap.SugaredLogger, acct *models.Account, holdings []models.Holding, prices map[string]decimal.Decimal, policy *ExclusionPolicy) accountRefresh {
	var out accountRefresh
	for i := range holdings {
		h := &holdings[i]
		if policy.IsExcluded(h.Symbol) {
			continue
		}
		price, ok := prices[normalizeSymbol(h.Symbol)]
		if !ok {
			out.missing++
			log.Warnw("no price for holding", "account_id", acct.ID, "holding_id", h.ID, "symbol", h.Symbol)
			continue
		}
		h.CurrentPrice = price
		out.holdings = append(out.holdings, holdingPriceUpdate{id: h.ID, price: price})
	}
	if len(out.holdings) > 0 {
		acct.RecomputeBalance(holdings)
		out.balance = acct.CurrentBalance
	}
	return out
}
