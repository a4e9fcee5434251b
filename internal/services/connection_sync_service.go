package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/logger"
	"wealthsync/internal/metrics"
	"wealthsync/internal/models"
	"wealthsync/internal/provider"
)

// connectionSyncService drives the external aggregator for linked connections.
type connectionSyncService struct {
	db     *gorm.DB
	client provider.ConnectionClient
	now    func() time.Time
}

// NewConnectionSyncService creates a new ConnectionSyncServicer.
func NewConnectionSyncService(db *gorm.DB, client provider.ConnectionClient) ConnectionSyncServicer {
	return &connectionSyncService{db: db, client: client, now: time.Now}
}

// SyncAll syncs every connected connection. Per-connection failures are
// logged and counted; only a failure to load connections is returned.
func (s *connectionSyncService) SyncAll(ctx context.Context) (*ConnectionSyncSummary, error) {
	log := logger.Job(JobConnectionSync)

	var conns []models.ExternalConnection
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.ConnectionStatusConnected).
		Order("id").
		Find(&conns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading connections: %w", err))
	}
	if len(conns) == 0 {
		log.Infow("no connected connections to sync")
		return &ConnectionSyncSummary{}, nil
	}

	summary, err := s.syncConnections(ctx, log, conns)
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	m.AddEntities(JobConnectionSync, metrics.OutcomeUpdated, summary.CashSuccess+summary.InvestSuccess)
	m.AddEntities(JobConnectionSync, metrics.OutcomeFailed, summary.Failed())

	log.Infow("connection sync complete",
		"cash_success", summary.CashSuccess,
		"cash_fail", summary.CashFail,
		"invest_success", summary.InvestSuccess,
		"invest_fail", summary.InvestFail,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

// SyncOne syncs the balances and then the transactions of one of the user's
// connections. Balance sync failures are returned to the caller.
func (s *connectionSyncService) SyncOne(ctx context.Context, userID, connectionID string) (*provider.BalanceSyncResult, error) {
	log := logger.Get().With("user_id", userID, "connection_id", connectionID)

	var conn models.ExternalConnection
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", connectionID, userID).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrConnectionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result, err := s.client.SyncBalances(ctx, conn.ExternalID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnectionSyncFailed, err)
	}
	if !result.Success {
		return nil, apperrors.Wrap(apperrors.ErrConnectionSyncFailed, errors.New(result.ErrorMessage))
	}
	s.syncTransactions(ctx, log, &conn)

	if err := s.stampSynced(ctx, []string{conn.ID}); err != nil {
		return nil, err
	}
	log.Infow("connection synced", "accounts_updated", result.AccountsUpdated)
	return result, nil
}

// SyncForUser syncs all of a user's connected connections. Partial failure is
// logged, not returned.
func (s *connectionSyncService) SyncForUser(ctx context.Context, userID string) (*ConnectionSyncSummary, error) {
	log := logger.Get().With("user_id", userID)

	var conns []models.ExternalConnection
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ConnectionStatusConnected).
		Order("id").
		Find(&conns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary, err := s.syncConnections(ctx, log, conns)
	if err != nil {
		return nil, err
	}
	if summary.Failed() > 0 {
		log.Warnw("some connections failed to sync",
			"failed", summary.Failed(),
			"total", len(conns),
		)
	}
	return summary, nil
}

// syncConnections runs the sync path of each connection and stamps the ones
// that succeeded. It returns early, without stamping, when ctx is cancelled.
func (s *connectionSyncService) syncConnections(ctx context.Context, log *zap.SugaredLogger, conns []models.ExternalConnection) (*ConnectionSyncSummary, error) {
	start := time.Now()
	summary := &ConnectionSyncSummary{}
	synced := make([]string, 0, len(conns))

	for i := range conns {
		if err := ctx.Err(); err != nil {
			log.Warnw("connection sync cancelled", "processed", i, "error", err)
			return nil, err
		}
		conn := &conns[i]
		res := runEntity(conn.ID, func() (struct{}, error) {
			return struct{}{}, s.syncConnection(ctx, log, conn)
		})

		investment := conn.Source == models.ConnectionSourceInvestment
		switch {
		case res.Err != nil && investment:
			summary.InvestFail++
		case res.Err != nil:
			summary.CashFail++
		case investment:
			summary.InvestSuccess++
		default:
			summary.CashSuccess++
		}
		if res.Err != nil {
			log.Errorw("connection sync failed",
				"connection_id", conn.ID,
				"source", conn.Source,
				"error", res.Err,
			)
			continue
		}
		synced = append(synced, conn.ID)
	}

	if err := s.stampSynced(ctx, synced); err != nil {
		return nil, err
	}
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// syncConnection syncs holdings (investment) or balances (cash), then
// transactions when the first step succeeded.
func (s *connectionSyncService) syncConnection(ctx context.Context, log *zap.SugaredLogger, conn *models.ExternalConnection) error {
	if conn.Source == models.ConnectionSourceInvestment {
		result, err := s.client.SyncHoldings(ctx, conn.ExternalID)
		if err != nil {
			return fmt.Errorf("syncing holdings: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("syncing holdings: %s", result.ErrorMessage)
		}
	} else {
		result, err := s.client.SyncBalances(ctx, conn.ExternalID)
		if err != nil {
			return fmt.Errorf("syncing balances: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("syncing balances: %s", result.ErrorMessage)
		}
	}

	s.syncTransactions(ctx, log, conn)
	return nil
}

// syncTransactions pulls transactions for a connection. Failures are logged
// only; they never change whether the connection counts as synced.
func (s *connectionSyncService) syncTransactions(ctx context.Context, log *zap.SugaredLogger, conn *models.ExternalConnection) {
	result, err := s.client.SyncTransactions(ctx, conn.ExternalID)
	switch {
	case err != nil:
		log.Warnw("transaction sync failed", "connection_id", conn.ID, "error", err)
	case !result.Success:
		log.Warnw("transaction sync failed", "connection_id", conn.ID, "error", result.ErrorMessage)
	default:
		log.Debugw("transactions synced",
			"connection_id", conn.ID,
			"added", result.Added,
			"modified", result.Modified,
			"removed", result.Removed,
		)
	}
}

func (s *connectionSyncService) stampSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.ExternalConnection{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"last_synced_at": now, "updated_at": now}).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
