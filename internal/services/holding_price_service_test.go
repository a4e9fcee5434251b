package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthsync/internal/config"
	"wealthsync/internal/models"
	"wealthsync/internal/provider"
	"wealthsync/internal/testutil"
)

// fakeQuoteProvider records every batch it is asked for.
type fakeQuoteProvider struct {
	mu      sync.Mutex
	batches [][]string

	// QuoteFn returns the quotes for one batch. Defaults to prices lookup.
	QuoteFn func(symbols []string) ([]provider.Quote, error)
	prices  map[string]string
}

func (f *fakeQuoteProvider) GetQuotes(_ context.Context, symbols []string) ([]provider.Quote, error) {
	f.mu.Lock()
	f.batches = append(f.batches, slices.Clone(symbols))
	f.mu.Unlock()

	if f.QuoteFn != nil {
		return f.QuoteFn(symbols)
	}
	var out []provider.Quote
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out = append(out, provider.Quote{Symbol: s, Price: decimal.RequireFromString(p)})
		}
	}
	return out, nil
}

func (f *fakeQuoteProvider) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []string
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

var refreshAt = time.Date(2026, 10, 16, 21, 30, 0, 0, time.UTC)

func TestRefreshAll(t *testing.T) {
	t.Run("updates_prices_and_recomputes_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		quotes := &fakeQuoteProvider{prices: map[string]string{"AAPL": "200", "MSFT": "400.5"}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		aapl := testutil.CreateTestHolding(t, db, acct.ID, "aapl", "10", "150")
		testutil.CreateTestHolding(t, db, acct.ID, "MSFT", "2", "300")
		testutil.CreateTestHolding(t, db, acct.ID, "GFUND", "100", "18")

		summary, err := svc.RefreshAll(context.Background(), refreshAt, config.DefaultJobs())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Accounts)
		assert.Equal(t, 1, summary.AccountsUpdated)
		assert.Equal(t, 2, summary.HoldingsUpdated)
		assert.Equal(t, 0, summary.Errors())

		var h models.Holding
		require.NoError(t, db.First(&h, "id = ?", aapl.ID).Error)
		testutil.AssertDecimal(t, "aapl price", h.CurrentPrice, "200")
		require.NotNil(t, h.LastPriceUpdate)
		assert.True(t, h.LastPriceUpdate.Equal(refreshAt))

		// 10*200 + 2*400.5 + 100*18 (GFUND keeps its price)
		var reloaded models.Account
		require.NoError(t, db.First(&reloaded, "id = ?", acct.ID).Error)
		testutil.AssertDecimal(t, "balance", reloaded.CurrentBalance, "4601")
	})

	t.Run("balance_equals_market_value_of_holdings", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		quotes := &fakeQuoteProvider{prices: map[string]string{"VTI": "250.25", "BND": "72.1", "QQQ": "480"}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		var accounts []*models.Account
		for i := 0; i < 3; i++ {
			acct := testutil.CreateTestAccount(t, db, user.ID, models.AccountTypeIRA, "1")
			testutil.CreateTestHolding(t, db, acct.ID, "VTI", "3", "1")
			testutil.CreateTestHolding(t, db, acct.ID, "BND", "7.5", "1")
			testutil.CreateTestHolding(t, db, acct.ID, "NOQUOTE", "2", "11")
			accounts = append(accounts, acct)
		}

		summary, err := svc.RefreshAll(context.Background(), refreshAt, config.DefaultJobs())
		require.NoError(t, err)
		assert.Equal(t, 3, summary.MissingPrices)

		for _, acct := range accounts {
			var reloaded models.Account
			require.NoError(t, db.First(&reloaded, "id = ?", acct.ID).Error)
			var holdings []models.Holding
			require.NoError(t, db.Where("account_id = ?", acct.ID).Find(&holdings).Error)

			want := decimal.Zero
			for i := range holdings {
				want = want.Add(holdings[i].Quantity.Mul(holdings[i].CurrentPrice))
			}
			assert.True(t, reloaded.CurrentBalance.Equal(want), "balance %s != %s", reloaded.CurrentBalance, want)
			testutil.AssertDecimal(t, "balance", reloaded.CurrentBalance, "1313.5")
		}
	})

	t.Run("scenario_b_synthetic_fund_never_requested_or_priced", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		// The provider answers with a GFUND price it was never asked for.
		quotes := &fakeQuoteProvider{QuoteFn: func(symbols []string) ([]provider.Quote, error) {
			return []provider.Quote{
				{Symbol: "AAPL", Price: decimal.NewFromInt(200)},
				{Symbol: "GFUND", Price: decimal.NewFromInt(999)},
				{Symbol: "VMFXX", Price: decimal.NewFromInt(999)},
				{Symbol: "912828YK0", Price: decimal.NewFromInt(999)},
			}, nil
		}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		testutil.CreateTestHolding(t, db, acct.ID, "AAPL", "1", "100")
		gfund := testutil.CreateTestHolding(t, db, acct.ID, "GFUND", "10", "18.5")
		mm := testutil.CreateTestHolding(t, db, acct.ID, "vmfxx", "5", "1")
		bond := testutil.CreateTestHolding(t, db, acct.ID, "912828YK0", "1", "98")

		jobs := config.DefaultJobs()
		jobs.ExcludedSymbols = []string{"VMFXX"}
		jobs.ExcludedSymbolPatterns = []string{`^912828`}

		_, err := svc.RefreshAll(context.Background(), refreshAt, jobs)
		require.NoError(t, err)

		assert.Equal(t, []string{"AAPL"}, quotes.requested())

		for _, h := range []*models.Holding{gfund, mm, bond} {
			var reloaded models.Holding
			require.NoError(t, db.First(&reloaded, "id = ?", h.ID).Error)
			assert.True(t, reloaded.CurrentPrice.Equal(h.CurrentPrice), "%s repriced to %s", h.Symbol, reloaded.CurrentPrice)
			assert.Nil(t, reloaded.LastPriceUpdate, "%s should not be stamped", h.Symbol)
		}
	})

	t.Run("batches_and_last_positive_price_wins", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		quotes := &fakeQuoteProvider{QuoteFn: func(symbols []string) ([]provider.Quote, error) {
			switch symbols[0] {
			case "AAA":
				return []provider.Quote{{Symbol: "AAA", Price: decimal.NewFromInt(1)}, {Symbol: "DDD", Price: decimal.NewFromInt(5)}}, nil
			case "CCC":
				return []provider.Quote{{Symbol: "ddd", Price: decimal.NewFromInt(7)}, {Symbol: "CCC", Price: decimal.NewFromInt(3)}}, nil
			default:
				return []provider.Quote{{Symbol: "EEE", Price: decimal.Zero}, {Symbol: "DDD", Price: decimal.Zero}}, nil
			}
		}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		for _, sym := range []string{"AAA", "BBB", "CCC", "DDD", "EEE"} {
			testutil.CreateTestHolding(t, db, acct.ID, sym, "1", "0.5")
		}

		jobs := config.DefaultJobs()
		jobs.QuoteBatchSize = 2
		jobs.QuoteConcurrency = 3

		summary, err := svc.RefreshAll(context.Background(), refreshAt, jobs)
		require.NoError(t, err)
		assert.Len(t, quotes.batches, 3)
		assert.Equal(t, 5, summary.Symbols)
		// BBB is never quoted, EEE only with a zero price.
		assert.Equal(t, 2, summary.MissingPrices)

		var ddd models.Holding
		require.NoError(t, db.First(&ddd, "account_id = ? AND symbol = ?", acct.ID, "DDD").Error)
		testutil.AssertDecimal(t, "ddd price", ddd.CurrentPrice, "7")
	})

	t.Run("skips_ineligible_accounts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		quotes := &fakeQuoteProvider{prices: map[string]string{"AAPL": "200"}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		disabled := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		db.Model(disabled).Update("refresh_enabled", false)
		closed := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		db.Model(closed).Update("lifecycle_state", models.LifecycleClosed)
		testutil.CreateTestBrokerageAccount(t, db, user.ID, "5")

		tester := testutil.CreateTestUserWithFlags(t, db, true, true)
		testAcct := testutil.CreateTestBrokerageAccount(t, db, tester.ID, "0")

		for _, a := range []*models.Account{disabled, closed, testAcct} {
			testutil.CreateTestHolding(t, db, a.ID, "AAPL", "1", "100")
		}

		summary, err := svc.RefreshAll(context.Background(), refreshAt, config.DefaultJobs())
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Accounts)
		assert.Empty(t, quotes.batches)

		var count int64
		db.Model(&models.Holding{}).Where("current_price = ?", 200).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("quote_failure_propagates_without_writes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		quotes := &fakeQuoteProvider{QuoteFn: func([]string) ([]provider.Quote, error) {
			return nil, errors.New("upstream 503")
		}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		h := testutil.CreateTestHolding(t, db, acct.ID, "AAPL", "1", "100")

		_, err := svc.RefreshAll(context.Background(), refreshAt, config.DefaultJobs())
		testutil.AssertAppError(t, err, "QUOTE_FETCH_FAILED")

		var reloaded models.Holding
		require.NoError(t, db.First(&reloaded, "id = ?", h.ID).Error)
		testutil.AssertDecimal(t, "price", reloaded.CurrentPrice, "100")
	})

	t.Run("invalid_exclusion_pattern", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewHoldingPriceService(db, &fakeQuoteProvider{})

		jobs := config.DefaultJobs()
		jobs.ExcludedSymbolPatterns = []string{"[unclosed"}
		_, err := svc.RefreshAll(context.Background(), refreshAt, jobs)
		testutil.AssertAppError(t, err, "INVALID_EXCLUSION_RULES")
	})
}

func TestRefreshAccount(t *testing.T) {
	t.Run("reprices_and_stamps_last_sync", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		quotes := &fakeQuoteProvider{prices: map[string]string{"AAPL": "200"}}
		svc := NewHoldingPriceService(db, quotes)

		user := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		db.Model(acct).Update("refresh_enabled", false)
		testutil.CreateTestHolding(t, db, acct.ID, "AAPL", "3", "100")

		summary, err := svc.RefreshAccount(context.Background(), user.ID, acct.ID, config.DefaultJobs())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.HoldingsUpdated)

		var reloaded models.Account
		require.NoError(t, db.First(&reloaded, "id = ?", acct.ID).Error)
		testutil.AssertDecimal(t, "balance", reloaded.CurrentBalance, "600")
		assert.NotNil(t, reloaded.LastExternalSync)
	})

	t.Run("other_users_account_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewHoldingPriceService(db, &fakeQuoteProvider{})

		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, owner.ID, "0")

		_, err := svc.RefreshAccount(context.Background(), other.ID, acct.ID, config.DefaultJobs())
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("quote_failure_returned", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewHoldingPriceService(db, &fakeQuoteProvider{QuoteFn: func([]string) ([]provider.Quote, error) {
			return nil, errors.New("timeout")
		}})

		user := testutil.CreateTestUser(t, db)
		acct := testutil.CreateTestBrokerageAccount(t, db, user.ID, "0")
		testutil.CreateTestHolding(t, db, acct.ID, "AAPL", "3", "100")

		_, err := svc.RefreshAccount(context.Background(), user.ID, acct.ID, config.DefaultJobs())
		testutil.AssertAppError(t, err, "QUOTE_FETCH_FAILED")
	})
}
