package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wealthsync/internal/fundcode"
	"wealthsync/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// D parses a decimal literal, panicking on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestUser creates an active, non-test user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithFlags(t, db, true, false)
}

// CreateTestUserWithFlags creates a user with the given eligibility flags.
func CreateTestUserWithFlags(t *testing.T, db *gorm.DB, active, testAccount bool) *models.User {
	t.Helper()

	user := &models.User{
		Email:         fmt.Sprintf("user%d@test.com", nextID()),
		FirstName:     "Test",
		LastName:      "User",
		IsActive:      active,
		IsTestAccount: testAccount,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates an active, refresh-enabled account of the given type.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string, accountType models.AccountType, balance string) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Account %d", nextID()),
		Type:           accountType,
		CurrentBalance: D(balance),
		Currency:       "USD",
		RefreshEnabled: true,
		LifecycleState: models.LifecycleActive,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestBrokerageAccount creates a brokerage account with the given balance.
func CreateTestBrokerageAccount(t *testing.T, db *gorm.DB, userID, balance string) *models.Account {
	t.Helper()
	return CreateTestAccount(t, db, userID, models.AccountTypeBrokerage, balance)
}

// CreateTestHolding creates a holding with the given symbol, quantity and price.
func CreateTestHolding(t *testing.T, db *gorm.DB, accountID, symbol, quantity, price string) *models.Holding {
	t.Helper()

	holding := &models.Holding{
		AccountID:    accountID,
		Symbol:       symbol,
		Name:         symbol,
		Quantity:     D(quantity),
		CurrentPrice: D(price),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return holding
}

// CreateTestCashAccount creates a checking account with the given balance.
func CreateTestCashAccount(t *testing.T, db *gorm.DB, userID, balance string) *models.CashAccount {
	t.Helper()

	account := &models.CashAccount{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Checking %d", nextID()),
		Type:     models.AccountTypeChecking,
		Balance:  D(balance),
		Currency: "USD",
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test cash account: %v", err)
	}
	return account
}

// CreateTestProperty creates a property. An empty mortgage means none.
func CreateTestProperty(t *testing.T, db *gorm.DB, userID, value, mortgage string) *models.Property {
	t.Helper()

	property := &models.Property{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Property %d", nextID()),
		EstimatedValue: D(value),
	}
	if mortgage != "" {
		property.MortgageBalance = decimal.NewNullDecimal(D(mortgage))
	}
	if err := db.Create(property).Error; err != nil {
		t.Fatalf("failed to create test property: %v", err)
	}
	return property
}

// CreateTestLiability creates a credit card liability with the given balance.
func CreateTestLiability(t *testing.T, db *gorm.DB, userID, balance string) *models.Liability {
	t.Helper()

	liability := &models.Liability{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Card %d", nextID()),
		Type:           models.LiabilityTypeCreditCard,
		CurrentBalance: D(balance),
	}
	if err := db.Create(liability).Error; err != nil {
		t.Fatalf("failed to create test liability: %v", err)
	}
	return liability
}

// CreateTestRetirementPosition creates a retirement fund position.
func CreateTestRetirementPosition(t *testing.T, db *gorm.DB, userID, fundCode, units string) *models.RetirementPosition {
	t.Helper()

	position := &models.RetirementPosition{
		UserID:   userID,
		FundCode: fundCode,
		Units:    D(units),
	}
	if err := db.Create(position).Error; err != nil {
		t.Fatalf("failed to create test retirement position: %v", err)
	}
	return position
}

// CreateTestFundPriceSnapshot records a fund price snapshot fetched at fetchedAt.
func CreateTestFundPriceSnapshot(t *testing.T, db *gorm.DB, fetchedAt time.Time, prices map[string]string) *models.FundPriceSnapshot {
	t.Helper()

	snapshot := &models.FundPriceSnapshot{
		PriceDate: models.SnapshotDay(fetchedAt),
		FetchedAt: fetchedAt.UTC(),
	}
	for code, price := range prices {
		c, ok := fundcode.Normalize(code)
		if !ok {
			t.Fatalf("unknown fund code %q in fixture", code)
		}
		snapshot.SetPrice(c, D(price))
	}
	if err := db.Create(snapshot).Error; err != nil {
		t.Fatalf("failed to create test fund price snapshot: %v", err)
	}
	return snapshot
}

// CreateTestConnection creates a connected external connection.
func CreateTestConnection(t *testing.T, db *gorm.DB, userID string, source models.ConnectionSource) *models.ExternalConnection {
	t.Helper()

	conn := &models.ExternalConnection{
		UserID:          userID,
		InstitutionName: "Test Bank",
		ExternalID:      fmt.Sprintf("ext-%d", nextID()),
		Status:          models.ConnectionStatusConnected,
		Source:          source,
	}
	if err := db.Create(conn).Error; err != nil {
		t.Fatalf("failed to create test connection: %v", err)
	}
	return conn
}
