package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wealthsync/internal/config"
	"wealthsync/internal/services"
)

// HoldingPriceHandler handles manual price refresh requests.
type HoldingPriceHandler struct {
	priceService services.HoldingPriceServicer
	auditService services.AuditServicer
	jobs         config.Jobs
}

// NewHoldingPriceHandler creates a new HoldingPriceHandler.
func NewHoldingPriceHandler(priceService services.HoldingPriceServicer, auditService services.AuditServicer, jobs config.Jobs) *HoldingPriceHandler {
	return &HoldingPriceHandler{priceService: priceService, auditService: auditService, jobs: jobs}
}

// RefreshAccountPrices handles refreshing holding prices for one account.
// @Summary     Refresh account prices
// @Description Fetch current quotes for an account's holdings and recompute its balance
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id  path     string true "Account ID"
// @Success     200 {object} services.PriceRefreshSummary "Refresh summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     502 {object} ErrorResponse "Quote provider failed"
// @Router      /accounts/{id}/refresh-prices [post]
func (h *HoldingPriceHandler) RefreshAccountPrices(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.priceService.RefreshAccount(c.Request.Context(), userID, accountID, h.jobs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionPriceRefresh, "account", accountID, c.ClientIP(),
		map[string]any{"holdings_updated": summary.HoldingsUpdated, "missing_prices": summary.MissingPrices})

	c.JSON(http.StatusOK, summary)
}
