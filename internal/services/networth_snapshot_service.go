package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/fundcode"
	"wealthsync/internal/logger"
	"wealthsync/internal/metrics"
	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
)

// netWorthSnapshotService computes and stores daily net worth snapshots.
type netWorthSnapshotService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNetWorthSnapshotService creates a new NetWorthSnapshotServicer.
func NewNetWorthSnapshotService(db *gorm.DB) NetWorthSnapshotServicer {
	return &netWorthSnapshotService{db: db, now: time.Now}
}

// userFinancials is everything a snapshot is computed from, for one user.
type userFinancials struct {
	investments []models.Account
	cash        []models.CashAccount
	positions   []models.RetirementPosition
	properties  []models.Property
	liabilities []models.Liability
}

// ComputeSnapshot aggregates a user's balances into an unsaved snapshot for
// date. A user with no data gets a snapshot with zero totals.
func (s *netWorthSnapshotService) ComputeSnapshot(ctx context.Context, userID string, date time.Time) (*models.NetWorthSnapshot, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	financials, err := loadFinancials(db, []string{userID})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	prices, err := latestFundPrices(db)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return buildSnapshot(userID, date, financials[userID], prices), nil
}

// RunBatch creates today's snapshot for every eligible user that does not
// have one yet. Per-user failures are logged and counted; only failures to
// load the eligible set are returned. All new rows are written in one
// transaction, and nothing is written when ctx is cancelled mid-run.
func (s *netWorthSnapshotService) RunBatch(ctx context.Context, date time.Time) (*SnapshotBatchSummary, error) {
	start := time.Now()
	log := logger.Job(JobNetWorthSnapshot)
	day := models.SnapshotDay(date)
	db := s.db.WithContext(ctx)
	summary := &SnapshotBatchSummary{}

	var userIDs []string
	if err := db.Model(&models.User{}).
		Where("is_active = ? AND is_test_account = ?", true, false).
		Order("id").
		Pluck("id", &userIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading eligible users: %w", err))
	}
	summary.Eligible = len(userIDs)
	if len(userIDs) == 0 {
		log.Infow("no eligible users for net worth snapshot", "snapshot_date", day.Format(time.DateOnly))
		return summary, nil
	}

	var existing []string
	if err := db.Model(&models.NetWorthSnapshot{}).
		Where("snapshot_date = ?", day).
		Pluck("user_id", &existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading existing snapshots: %w", err))
	}
	done := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		done[id] = struct{}{}
	}

	pending := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := done[id]; ok {
			summary.Skipped++
			continue
		}
		pending = append(pending, id)
	}

	financials, err := loadFinancials(db, pending)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading user financials: %w", err))
	}
	prices, err := latestFundPrices(db)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading fund prices: %w", err))
	}
	if prices == nil {
		log.Warnw("no fund price snapshot available, retirement totals will be zero")
	}

	results := make([]entityResult[*models.NetWorthSnapshot], 0, len(pending))
	for _, userID := range pending {
		if err := ctx.Err(); err != nil {
			log.Warnw("net worth snapshot cancelled, nothing committed", "processed", len(results), "error", err)
			return nil, err
		}
		results = append(results, runEntity(userID, func() (*models.NetWorthSnapshot, error) {
			return buildSnapshot(userID, day, financials[userID], prices), nil
		}))
	}

	staged := make([]*models.NetWorthSnapshot, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			summary.Errors++
			log.Errorw("failed to compute net worth snapshot", "user_id", r.ID, "error", r.Err)
			continue
		}
		staged = append(staged, r.Value)
	}

	if len(staged) > 0 {
		created := 0
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "snapshot_date"}},
				DoNothing: true,
			}).CreateInBatches(staged, 200)
			created = int(res.RowsAffected)
			return res.Error
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("saving snapshots: %w", err))
		}
		summary.Created = created
		summary.Skipped += len(staged) - created
	}

	summary.Elapsed = time.Since(start)
	m := metrics.Get()
	m.AddEntities(JobNetWorthSnapshot, metrics.OutcomeCreated, summary.Created)
	m.AddEntities(JobNetWorthSnapshot, metrics.OutcomeSkipped, summary.Skipped)
	m.AddEntities(JobNetWorthSnapshot, metrics.OutcomeFailed, summary.Errors)

	log.Infow("net worth snapshot complete",
		"snapshot_date", day.Format(time.DateOnly),
		"created", summary.Created,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

// TriggerForUser recomputes today's snapshot for one user, updating it in
// place when it already exists.
func (s *netWorthSnapshotService) TriggerForUser(ctx context.Context, userID string) (*models.NetWorthSnapshot, error) {
	now := s.now().UTC()
	day := models.SnapshotDay(now)

	computed, err := s.ComputeSnapshot(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	var result models.NetWorthSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.NetWorthSnapshot
		if err := tx.Where("user_id = ? AND snapshot_date = ?", userID, day).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) == 0 {
			result = *computed
			return tx.Create(&result).Error
		}

		result = existing[0]
		result.CashTotal = computed.CashTotal
		result.InvestmentsTotal = computed.InvestmentsTotal
		result.RetirementTotal = computed.RetirementTotal
		result.RealEstateEquity = computed.RealEstateEquity
		result.TotalAssets = computed.TotalAssets
		result.LiabilitiesTotal = computed.LiabilitiesTotal
		result.NetWorth = computed.NetWorth
		result.UpdatedAt = &now
		return tx.Model(&models.NetWorthSnapshot{}).Where("id = ?", result.ID).Updates(map[string]any{
			"cash_total":         result.CashTotal,
			"investments_total":  result.InvestmentsTotal,
			"retirement_total":   result.RetirementTotal,
			"real_estate_equity": result.RealEstateEquity,
			"total_assets":       result.TotalAssets,
			"liabilities_total":  result.LiabilitiesTotal,
			"net_worth":          result.NetWorth,
			"updated_at":         now,
		}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("net worth snapshot refreshed",
		"user_id", userID,
		"snapshot_date", day.Format(time.DateOnly),
		"net_worth", result.NetWorth.StringFixed(2),
	)
	return &result, nil
}

// GetSnapshots returns paginated snapshots for a user within a date range.
func (s *netWorthSnapshotService) GetSnapshots(
	ctx context.Context,
	userID string,
	from, to time.Time,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.NetWorthSnapshot], error) {
	query := s.db.WithContext(ctx).Model(&models.NetWorthSnapshot{}).
		Where("user_id = ? AND snapshot_date >= ? AND snapshot_date <= ?", userID, models.SnapshotDay(from), models.SnapshotDay(to))

	result, err := pagination.Find[models.NetWorthSnapshot](query, "snapshot_date DESC", page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// loadFinancials loads the snapshot inputs of every user in userIDs with one
// query per table (per chunk), grouped by user.
func loadFinancials(db *gorm.DB, userIDs []string) (map[string]*userFinancials, error) {
	out := make(map[string]*userFinancials, len(userIDs))
	for _, id := range userIDs {
		out[id] = &userFinancials{}
	}
	if len(userIDs) == 0 {
		return out, nil
	}

	accounts, err := findIn[models.Account](
		db.Where("lifecycle_state = ? AND type NOT IN ?", models.LifecycleActive, models.CashAccountTypes),
		"user_id", userIDs)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	for _, a := range accounts {
		out[a.UserID].investments = append(out[a.UserID].investments, a)
	}

	cash, err := findIn[models.CashAccount](db, "user_id", userIDs)
	if err != nil {
		return nil, fmt.Errorf("cash accounts: %w", err)
	}
	for _, c := range cash {
		out[c.UserID].cash = append(out[c.UserID].cash, c)
	}

	positions, err := findIn[models.RetirementPosition](db, "user_id", userIDs)
	if err != nil {
		return nil, fmt.Errorf("retirement positions: %w", err)
	}
	for _, p := range positions {
		out[p.UserID].positions = append(out[p.UserID].positions, p)
	}

	properties, err := findIn[models.Property](db, "user_id", userIDs)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	for _, p := range properties {
		out[p.UserID].properties = append(out[p.UserID].properties, p)
	}

	liabilities, err := findIn[models.Liability](db, "user_id", userIDs)
	if err != nil {
		return nil, fmt.Errorf("liabilities: %w", err)
	}
	for _, l := range liabilities {
		out[l.UserID].liabilities = append(out[l.UserID].liabilities, l)
	}

	return out, nil
}

// latestFundPrices returns the most recently fetched price snapshot, or nil.
func latestFundPrices(db *gorm.DB) (*models.FundPriceSnapshot, error) {
	var rows []models.FundPriceSnapshot
	if err := db.Order("fetched_at DESC").Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// buildSnapshot is the net worth formula: the same inputs always give the
// same snapshot. Positions that cannot be priced add zero and log a warning.
func buildSnapshot(userID string, date time.Time, f *userFinancials, prices *models.FundPriceSnapshot) *models.NetWorthSnapshot {
	if f == nil {
		f = &userFinancials{}
	}

	cashTotal := decimal.Zero
	for i := range f.cash {
		cashTotal = cashTotal.Add(f.cash[i].Balance)
	}

	investmentsTotal := decimal.Zero
	for i := range f.investments {
		if f.investments[i].Type.IsInvestment() {
			investmentsTotal = investmentsTotal.Add(f.investments[i].CurrentBalance)
		}
	}

	retirementTotal := decimal.Zero
	for i := range f.positions {
		pos := &f.positions[i]
		if !pos.Units.IsPositive() {
			continue
		}
		code, ok := fundcode.Normalize(pos.FundCode)
		if !ok {
			logger.Get().Warnw("unknown fund code on retirement position",
				"user_id", userID,
				"position_id", pos.ID,
				"fund_code", pos.FundCode,
			)
			continue
		}
		if prices == nil {
			continue
		}
		price, ok := prices.Price(code)
		if !ok {
			logger.Get().Warnw("no cached price for fund", "user_id", userID, "fund_code", code)
			continue
		}
		retirementTotal = retirementTotal.Add(pos.Units.Mul(price))
	}

	realEstateValue := decimal.Zero
	mortgageTotal := decimal.Zero
	for i := range f.properties {
		realEstateValue = realEstateValue.Add(f.properties[i].EstimatedValue)
		mortgageTotal = mortgageTotal.Add(f.properties[i].Mortgage())
	}

	liabilitiesTotal := mortgageTotal
	for i := range f.liabilities {
		liabilitiesTotal = liabilitiesTotal.Add(f.liabilities[i].CurrentBalance)
	}

	totalAssets := cashTotal.Add(investmentsTotal).Add(retirementTotal).Add(realEstateValue)

	return &models.NetWorthSnapshot{
		UserID:           userID,
		SnapshotDate:     models.SnapshotDay(date),
		CashTotal:        cashTotal,
		InvestmentsTotal: investmentsTotal,
		RetirementTotal:  retirementTotal,
		RealEstateEquity: realEstateValue.Sub(mortgageTotal),
		TotalAssets:      totalAssets,
		LiabilitiesTotal: liabilitiesTotal,
		NetWorth:         totalAssets.Sub(liabilitiesTotal),
	}
}
