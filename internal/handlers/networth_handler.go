package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/pagination"
	"wealthsync/internal/services"
)

// NetWorthHandler handles net worth snapshot requests.
type NetWorthHandler struct {
	snapshotService services.NetWorthSnapshotServicer
	auditService    services.AuditServicer
}

// NewNetWorthHandler creates a new NetWorthHandler.
func NewNetWorthHandler(snapshotService services.NetWorthSnapshotServicer, auditService services.AuditServicer) *NetWorthHandler {
	return &NetWorthHandler{snapshotService: snapshotService, auditService: auditService}
}

// RefreshSnapshot recomputes today's snapshot for the authenticated user.
// @Summary     Refresh net worth snapshot
// @Description Recompute today's net worth snapshot, replacing it if it already exists
// @Tags        networth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.NetWorthSnapshot "Snapshot"
// @Failure     401 {object} ErrorResponse           "Unauthorized"
// @Failure     404 {object} ErrorResponse           "User not found"
// @Router      /networth/snapshots/refresh [post]
func (h *NetWorthHandler) RefreshSnapshot(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	snapshot, err := h.snapshotService.TriggerForUser(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionSnapshotRefresh, "net_worth_snapshot", snapshot.ID, c.ClientIP(),
		map[string]any{"net_worth": snapshot.NetWorth.String(), "snapshot_date": snapshot.SnapshotDate.Format("2006-01-02")})

	c.JSON(http.StatusOK, snapshot)
}

// GetSnapshots handles retrieving net worth snapshots for the authenticated user.
// @Summary     Get net worth snapshots
// @Description Get paginated net worth snapshots for a date range
// @Tags        networth
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string true  "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string true  "End date (RFC3339 or YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.NetWorthSnapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /networth/snapshots [get]
func (h *NetWorthHandler) GetSnapshots(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	fromStr := c.Query("from_date")
	if fromStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date is required"))
		return
	}
	from, err := parseFlexibleTime(fromStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	toStr := c.Query("to_date")
	if toStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date is required"))
		return
	}
	to, err := parseFlexibleTime(toStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if to.Before(from) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date must not be before from_date"))
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.snapshotService.GetSnapshots(c.Request.Context(), userID, from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
