package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/fundcode"
	"wealthsync/internal/logger"
	"wealthsync/internal/metrics"
	"wealthsync/internal/models"
	"wealthsync/internal/provider"
)

// retirementPriceService fetches retirement fund prices and records the
// price snapshots net worth snapshots read from.
type retirementPriceService struct {
	db     *gorm.DB
	prices provider.RetirementPriceProvider
	now    func() time.Time
}

// NewRetirementPriceService creates a new RetirementPriceServicer.
func NewRetirementPriceService(db *gorm.DB, prices provider.RetirementPriceProvider) RetirementPriceServicer {
	return &retirementPriceService{db: db, prices: prices, now: time.Now}
}

// RefreshLatest fetches the latest fund price set and logs it. It does not
// persist anything. A feed with no data is a warning, not an error.
func (s *retirementPriceService) RefreshLatest(ctx context.Context) (*provider.FundPriceSet, error) {
	log := logger.Job(JobFundPrices)

	set, err := s.prices.GetLatestPrices(ctx, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.Wrap(apperrors.ErrFundPriceFetchFailed, err)
	}
	if set == nil || len(set.Prices) == 0 {
		log.Warnw("fund price feed returned no prices")
		metrics.Get().AddEntities(JobFundPrices, metrics.OutcomeWarning, 1)
		return nil, nil
	}

	fields := []any{"price_date", set.Date.Format(time.DateOnly), "funds", len(set.Prices)}
	for _, code := range fundcode.All {
		if p, ok := set.Prices[code]; ok {
			fields = append(fields, string(code), p.String())
		}
	}
	log.Infow("fetched fund prices", fields...)
	metrics.Get().AddEntities(JobFundPrices, metrics.OutcomeUpdated, len(set.Prices))
	return set, nil
}

// RecordFundPrices stores one fund price snapshot. Codes are normalized, so
// "L-INCOME", "L Income" and "LINCOME" all land on the same column; a payload
// naming the same fund twice is rejected.
func (s *retirementPriceService) RecordFundPrices(ctx context.Context, priceDate time.Time, prices map[string]decimal.Decimal) (*models.FundPriceSnapshot, error) {
	if len(prices) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one fund price is required")
	}

	raw := make([]string, 0, len(prices))
	for k := range prices {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	snapshot := &models.FundPriceSnapshot{
		PriceDate: models.SnapshotDay(priceDate),
		FetchedAt: s.now().UTC(),
	}
	seen := make(map[fundcode.Code]string, len(raw))
	for _, k := range raw {
		code, ok := fundcode.Normalize(k)
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrUnknownFundCode, fmt.Sprintf("Unknown fund code %q", k))
		}
		if prev, dup := seen[code]; dup {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Fund codes %q and %q both name %s", prev, k, code))
		}
		seen[code] = k
		price := prices[k]
		if !price.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Price for %s must be positive", code))
		}
		snapshot.SetPrice(code, price)
	}

	if err := s.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("fund price snapshot recorded",
		"price_date", snapshot.PriceDate.Format(time.DateOnly),
		"funds", len(seen),
	)
	return snapshot, nil
}

// GetLatestSnapshot returns the most recently fetched price snapshot.
func (s *retirementPriceService) GetLatestSnapshot(ctx context.Context) (*models.FundPriceSnapshot, error) {
	snapshot, err := latestFundPrices(s.db.WithContext(ctx))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if snapshot == nil {
		return nil, apperrors.WithMessage(apperrors.ErrNotFound, "No fund prices recorded")
	}
	return snapshot, nil
}
