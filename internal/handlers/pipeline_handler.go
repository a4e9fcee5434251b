package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/services"
)

// PipelineHandler exposes the sync jobs and the fund price write path to the
// data pipeline. Routes are guarded by the pipeline API key.
type PipelineHandler struct {
	snapshotService   services.NetWorthSnapshotServicer
	priceService      services.HoldingPriceServicer
	connectionService services.ConnectionSyncServicer
	fundPriceService  services.RetirementPriceServicer
	jobs              config.Jobs
	now               func() time.Time
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(
	snapshotService services.NetWorthSnapshotServicer,
	priceService services.HoldingPriceServicer,
	connectionService services.ConnectionSyncServicer,
	fundPriceService services.RetirementPriceServicer,
	jobs config.Jobs,
) *PipelineHandler {
	return &PipelineHandler{
		snapshotService:   snapshotService,
		priceService:      priceService,
		connectionService: connectionService,
		fundPriceService:  fundPriceService,
		jobs:              jobs,
		now:               time.Now,
	}
}

// RunJobRequest optionally pins the date a job runs for.
type RunJobRequest struct {
	Date string `json:"date"`
}

// RecordFundPricesRequest represents the request payload for recording fund prices.
type RecordFundPricesRequest struct {
	PriceDate string                     `json:"price_date" binding:"required"`
	Prices    map[string]decimal.Decimal `json:"prices" binding:"required,min=1,dive,keys,fundcode,endkeys"`
}

// jobDate returns the date from an optional JSON body, defaulting to now.
func (h *PipelineHandler) jobDate(c *gin.Context) (time.Time, error) {
	if c.Request.ContentLength == 0 {
		return h.now().UTC(), nil
	}
	var req RunJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if req.Date == "" {
		return h.now().UTC(), nil
	}
	date, err := parseFlexibleTime(req.Date)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return date, nil
}

// RunNetWorthSnapshot runs the net worth snapshot batch.
// @Summary     Run net worth snapshot
// @Description Create the day's net worth snapshot for every eligible user (pipeline endpoint)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string        true  "Pipeline API key"
// @Param       request   body     RunJobRequest false "Snapshot date"
// @Success     200       {object} services.SnapshotBatchSummary "Batch summary"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/jobs/networth-snapshot [post]
func (h *PipelineHandler) RunNetWorthSnapshot(c *gin.Context) {
	date, err := h.jobDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.snapshotService.RunBatch(c.Request.Context(), date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunHoldingPriceRefresh runs the holding price refresh.
// @Summary     Run holding price refresh
// @Description Reprice all refresh-enabled accounts (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string true "Pipeline API key"
// @Success     200       {object} services.PriceRefreshSummary "Refresh summary"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     502       {object} ErrorResponse "Quote provider failed"
// @Router      /pipeline/jobs/holding-prices [post]
func (h *PipelineHandler) RunHoldingPriceRefresh(c *gin.Context) {
	summary, err := h.priceService.RefreshAll(c.Request.Context(), h.now().UTC(), h.jobs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunConnectionSync runs the external connection sync.
// @Summary     Run connection sync
// @Description Sync all connected external connections (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string true "Pipeline API key"
// @Success     200       {object} services.ConnectionSyncSummary "Sync summary"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/jobs/connection-sync [post]
func (h *PipelineHandler) RunConnectionSync(c *gin.Context) {
	summary, err := h.connectionService.SyncAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunFundPriceFetch fetches the latest retirement fund prices.
// @Summary     Run fund price fetch
// @Description Fetch the latest retirement fund prices from the feed (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string true "Pipeline API key"
// @Success     200       {object} provider.FundPriceSet "Fetched prices"
// @Success     204       "Feed returned no prices"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     502       {object} ErrorResponse "Fund price feed failed"
// @Router      /pipeline/jobs/fund-prices [post]
func (h *PipelineHandler) RunFundPriceFetch(c *gin.Context) {
	set, err := h.fundPriceService.RefreshLatest(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	if set == nil {
		c.Status(http.StatusNoContent)
		return
	}

	prices := make(map[string]string, len(set.Prices))
	for code, p := range set.Prices {
		prices[string(code)] = p.String()
	}
	c.JSON(http.StatusOK, gin.H{"price_date": set.Date.Format(time.DateOnly), "prices": prices})
}

// RecordFundPrices handles storing a fund price snapshot.
// @Summary     Record fund prices
// @Description Store one retirement fund price snapshot (pipeline endpoint)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                  true "Pipeline API key"
// @Param       request   body     RecordFundPricesRequest true "Fund prices"
// @Success     201       {object} models.FundPriceSnapshot "Recorded snapshot"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/fund-prices [post]
func (h *PipelineHandler) RecordFundPrices(c *gin.Context) {
	var req RecordFundPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	priceDate, err := parseFlexibleTime(req.PriceDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	snapshot, err := h.fundPriceService.RecordFundPrices(c.Request.Context(), priceDate, req.Prices)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snapshot)
}
