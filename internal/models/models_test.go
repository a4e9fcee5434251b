package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthsync/internal/fundcode"
)

func TestAccount_RecomputeBalance(t *testing.T) {
	account := &Account{CurrentBalance: decimal.NewFromInt(999)}
	account.RecomputeBalance([]Holding{
		{Quantity: decimal.RequireFromString("10"), CurrentPrice: decimal.RequireFromString("150.25")},
		{Quantity: decimal.RequireFromString("0.5"), CurrentPrice: decimal.RequireFromString("40")},
	})
	assert.True(t, decimal.RequireFromString("1522.5").Equal(account.CurrentBalance), "got %s", account.CurrentBalance)

	account.RecomputeBalance(nil)
	assert.True(t, account.CurrentBalance.IsZero())
}

func TestAccountType_IsInvestment(t *testing.T) {
	for _, typ := range InvestmentAccountTypes {
		assert.True(t, typ.IsInvestment(), typ)
	}
	for _, typ := range CashAccountTypes {
		assert.False(t, typ.IsInvestment(), typ)
	}
	assert.False(t, AccountTypeCrypto.IsInvestment())
}

func TestProperty_Mortgage(t *testing.T) {
	p := &Property{EstimatedValue: decimal.NewFromInt(500000)}
	assert.True(t, p.Mortgage().IsZero())

	p.MortgageBalance = decimal.NewNullDecimal(decimal.NewFromInt(320000))
	assert.True(t, decimal.NewFromInt(320000).Equal(p.Mortgage()))
}

func TestFundPriceSnapshot_Prices(t *testing.T) {
	snap := &FundPriceSnapshot{}

	_, ok := snap.Price(fundcode.G)
	assert.False(t, ok, "empty snapshot has no prices")

	snap.SetPrice(fundcode.G, decimal.RequireFromString("18.1234"))
	snap.SetPrice(fundcode.L2050, decimal.RequireFromString("31.05"))
	snap.SetPrice(fundcode.Code("BOGUS"), decimal.NewFromInt(1))

	g, ok := snap.Price(fundcode.G)
	require.True(t, ok)
	assert.Equal(t, "18.1234", g.String())
	assert.True(t, snap.L2050.Valid)

	prices := snap.Prices()
	assert.Len(t, prices, 2)
	assert.Contains(t, prices, fundcode.L2050)
	assert.NotContains(t, prices, fundcode.Code("BOGUS"))
}

func TestFundPriceSnapshot_EveryCodeHasColumn(t *testing.T) {
	snap := &FundPriceSnapshot{}
	for i, code := range fundcode.All {
		snap.SetPrice(code, decimal.NewFromInt(int64(i+1)))
	}
	assert.Len(t, snap.Prices(), len(fundcode.All))
}

func TestSnapshotDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	got := SnapshotDay(time.Date(2026, 10, 16, 21, 30, 0, 0, est))
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), got)
}

func TestNewID(t *testing.T) {
	id, err := uuid.Parse(NewID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, NewID(), NewID())
}
