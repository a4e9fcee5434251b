package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wealthsync/internal/models"
	"wealthsync/internal/provider"
	"wealthsync/internal/testutil"
)

type mockConnectionClient struct {
	mock.Mock
}

func (m *mockConnectionClient) SyncBalances(ctx context.Context, connectionID string) (*provider.BalanceSyncResult, error) {
	args := m.Called(ctx, connectionID)
	res, _ := args.Get(0).(*provider.BalanceSyncResult)
	return res, args.Error(1)
}

func (m *mockConnectionClient) SyncHoldings(ctx context.Context, connectionID string) (*provider.HoldingSyncResult, error) {
	args := m.Called(ctx, connectionID)
	res, _ := args.Get(0).(*provider.HoldingSyncResult)
	return res, args.Error(1)
}

func (m *mockConnectionClient) SyncTransactions(ctx context.Context, connectionID string) (*provider.TransactionSyncResult, error) {
	args := m.Called(ctx, connectionID)
	res, _ := args.Get(0).(*provider.TransactionSyncResult)
	return res, args.Error(1)
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

var txOK = &provider.TransactionSyncResult{Success: true, Added: 2}

func TestSyncAll(t *testing.T) {
	t.Run("scenario_c_transaction_failure_keeps_investment_success", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		client := &mockConnectionClient{}
		svc := NewConnectionSyncService(db, client)

		user := testutil.CreateTestUser(t, db)
		conn := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceInvestment)

		client.On("SyncHoldings", mock.Anything, conn.ExternalID).
			Return(&provider.HoldingSyncResult{Success: true, AccountsUpdated: 1, HoldingsUpdated: 4}, nil)
		client.On("SyncTransactions", mock.Anything, conn.ExternalID).
			Return(nil, errors.New("aggregator timeout"))

		summary, err := svc.SyncAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.InvestSuccess)
		assert.Equal(t, 0, summary.InvestFail)
		assert.Equal(t, 0, summary.CashSuccess+summary.CashFail)
		client.AssertExpectations(t)
		client.AssertNotCalled(t, "SyncBalances", mock.Anything, mock.Anything)

		var reloaded models.ExternalConnection
		require.NoError(t, db.First(&reloaded, "id = ?", conn.ID).Error)
		assert.NotNil(t, reloaded.LastSyncedAt)
	})

	t.Run("branches_by_source_and_isolates_failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		client := &mockConnectionClient{}
		svc := NewConnectionSyncService(db, client)

		user := testutil.CreateTestUser(t, db)
		cashOK := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		cashReported := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		cashErr := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		investFail := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceInvestment)
		disconnected := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		db.Model(disconnected).Update("status", models.ConnectionStatusDisconnected)

		client.On("SyncBalances", mock.Anything, cashOK.ExternalID).Return(&provider.BalanceSyncResult{Success: true, AccountsUpdated: 2}, nil)
		client.On("SyncTransactions", mock.Anything, cashOK.ExternalID).Return(txOK, nil)
		client.On("SyncBalances", mock.Anything, cashReported.ExternalID).Return(&provider.BalanceSyncResult{ErrorMessage: "ITEM_LOGIN_REQUIRED"}, nil)
		client.On("SyncBalances", mock.Anything, cashErr.ExternalID).Return(nil, errors.New("connection reset"))
		client.On("SyncHoldings", mock.Anything, investFail.ExternalID).Return(&provider.HoldingSyncResult{ErrorMessage: "institution down"}, nil)

		summary, err := svc.SyncAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.CashSuccess)
		assert.Equal(t, 2, summary.CashFail)
		assert.Equal(t, 0, summary.InvestSuccess)
		assert.Equal(t, 1, summary.InvestFail)

		client.AssertExpectations(t)
		client.AssertNotCalled(t, "SyncTransactions", mock.Anything, cashReported.ExternalID)
		client.AssertNotCalled(t, "SyncTransactions", mock.Anything, investFail.ExternalID)
		client.AssertNotCalled(t, "SyncBalances", mock.Anything, disconnected.ExternalID)
	})

	t.Run("panicking_client_is_a_connection_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		client := &mockConnectionClient{}
		svc := NewConnectionSyncService(db, client)

		user := testutil.CreateTestUser(t, db)
		first := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		second := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)

		// No expectation for the first connection: the mock panics.
		client.On("SyncBalances", mock.Anything, second.ExternalID).Return(&provider.BalanceSyncResult{Success: true}, nil)
		client.On("SyncTransactions", mock.Anything, second.ExternalID).Return(txOK, nil)

		summary, err := svc.SyncAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.CashSuccess)
		assert.Equal(t, 1, summary.CashFail)
		client.AssertNotCalled(t, "SyncTransactions", mock.Anything, first.ExternalID)
	})

	t.Run("no_connections", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewConnectionSyncService(db, &mockConnectionClient{})

		summary, err := svc.SyncAll(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.Failed())
	})

	t.Run("cancelled_context", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := &connectionSyncService{db: db, client: &mockConnectionClient{}}

		user := testutil.CreateTestUser(t, db)
		conns := []models.ExternalConnection{*testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.syncConnections(ctx, testLogger(), conns)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSyncOne(t *testing.T) {
	t.Run("success_syncs_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		client := &mockConnectionClient{}
		svc := NewConnectionSyncService(db, client)

		user := testutil.CreateTestUser(t, db)
		conn := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		client.On("SyncBalances", mock.Anything, conn.ExternalID).Return(&provider.BalanceSyncResult{Success: true, AccountsUpdated: 3}, nil)
		client.On("SyncTransactions", mock.Anything, conn.ExternalID).Return(&provider.TransactionSyncResult{ErrorMessage: "rate limited"}, nil)

		result, err := svc.SyncOne(context.Background(), user.ID, conn.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, result.AccountsUpdated)
		client.AssertExpectations(t)
	})

	t.Run("reported_failure_is_returned", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		client := &mockConnectionClient{}
		svc := NewConnectionSyncService(db, client)

		user := testutil.CreateTestUser(t, db)
		conn := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
		client.On("SyncBalances", mock.Anything, conn.ExternalID).Return(&provider.BalanceSyncResult{ErrorMessage: "ITEM_LOGIN_REQUIRED"}, nil)

		_, err := svc.SyncOne(context.Background(), user.ID, conn.ID)
		testutil.AssertAppError(t, err, "CONNECTION_SYNC_FAILED")
		assert.Contains(t, err.Error(), "ITEM_LOGIN_REQUIRED")
		client.AssertNotCalled(t, "SyncTransactions", mock.Anything, mock.Anything)
	})

	t.Run("transport_error_is_returned", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		client := &mockConnectionClient{}
		svc := NewConnectionSyncService(db, client)

		user := testutil.CreateTestUser(t, db)
		conn := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceInvestment)
		client.On("SyncBalances", mock.Anything, conn.ExternalID).Return(nil, errors.New("dial tcp: refused"))

		_, err := svc.SyncOne(context.Background(), user.ID, conn.ID)
		testutil.AssertAppError(t, err, "CONNECTION_SYNC_FAILED")
	})

	t.Run("not_found_for_other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewConnectionSyncService(db, &mockConnectionClient{})

		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		conn := testutil.CreateTestConnection(t, db, owner.ID, models.ConnectionSourceCash)

		_, err := svc.SyncOne(context.Background(), other.ID, conn.ID)
		testutil.AssertAppError(t, err, "CONNECTION_NOT_FOUND")
	})
}

func TestSyncForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	client := &mockConnectionClient{}
	svc := NewConnectionSyncService(db, client)

	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	ok := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceInvestment)
	bad := testutil.CreateTestConnection(t, db, user.ID, models.ConnectionSourceCash)
	testutil.CreateTestConnection(t, db, other.ID, models.ConnectionSourceCash)

	client.On("SyncHoldings", mock.Anything, ok.ExternalID).Return(&provider.HoldingSyncResult{Success: true}, nil)
	client.On("SyncTransactions", mock.Anything, ok.ExternalID).Return(txOK, nil)
	client.On("SyncBalances", mock.Anything, bad.ExternalID).Return(nil, errors.New("boom"))

	summary, err := svc.SyncForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InvestSuccess)
	assert.Equal(t, 1, summary.CashFail)
	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "SyncBalances", 1)
}
