package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates the kinds of financial account a user can hold.
type AccountType string

const (
	AccountTypeChecking    AccountType = "checking"
	AccountTypeSavings     AccountType = "savings"
	AccountTypeMoneyMarket AccountType = "money_market"
	AccountTypeCD          AccountType = "cd"
	AccountTypeBrokerage   AccountType = "brokerage"
	AccountTypeIRA         AccountType = "ira"
	AccountType401k        AccountType = "401k"
	AccountTypeRoth        AccountType = "roth"
	AccountTypeHSA         AccountType = "hsa"
	AccountType529         AccountType = "529"
	AccountTypeCrypto      AccountType = "crypto"
	AccountTypeOther       AccountType = "other"
)

// CashAccountTypes are deposit-style account types. Their value is carried by
// CashAccount rows, so investment aggregation never loads them.
var CashAccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeMoneyMarket,
	AccountTypeCD,
}

// InvestmentAccountTypes are the account types whose balance counts toward
// the investments total of a net worth snapshot.
var InvestmentAccountTypes = []AccountType{
	AccountTypeBrokerage,
	AccountTypeIRA,
	AccountType401k,
	AccountTypeRoth,
	AccountTypeHSA,
}

// IsInvestment reports whether the type counts toward the investments total.
func (t AccountType) IsInvestment() bool {
	for _, it := range InvestmentAccountTypes {
		if t == it {
			return true
		}
	}
	return false
}

// LifecycleState is the lifecycle of an account.
type LifecycleState string

const (
	LifecycleActive   LifecycleState = "active"
	LifecycleInactive LifecycleState = "inactive"
	LifecycleClosed   LifecycleState = "closed"
)

// Account is an investment-capable account. CurrentBalance is maintained by
// the holding price refresh and read by the net worth snapshot.
type Account struct {
	Base
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name             string          `gorm:"not null" json:"name"`
	Type             AccountType     `gorm:"not null" json:"type"`
	Institution      string          `json:"institution,omitempty"`
	CurrentBalance   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"current_balance"`
	Currency         string          `gorm:"not null;default:'USD'" json:"currency"`
	RefreshEnabled   bool            `gorm:"not null" json:"refresh_enabled"`
	LifecycleState   LifecycleState  `gorm:"not null;index" json:"lifecycle_state"`
	LastExternalSync *time.Time      `json:"last_external_sync,omitempty"`
	ConnectionID     *string         `gorm:"type:uuid" json:"connection_id,omitempty"`

	Holdings []Holding `gorm:"foreignKey:AccountID" json:"holdings,omitempty"`
}

// RecomputeBalance sets CurrentBalance to the market value of the given holdings.
func (a *Account) RecomputeBalance(holdings []Holding) {
	total := decimal.Zero
	for i := range holdings {
		total = total.Add(holdings[i].MarketValue())
	}
	a.CurrentBalance = total
}
