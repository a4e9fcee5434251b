package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wealthsync/internal/services"
)

// ConnectionHandler handles manual external connection syncs.
type ConnectionHandler struct {
	syncService  services.ConnectionSyncServicer
	auditService services.AuditServicer
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(syncService services.ConnectionSyncServicer, auditService services.AuditServicer) *ConnectionHandler {
	return &ConnectionHandler{syncService: syncService, auditService: auditService}
}

// SyncConnection handles syncing one connection.
// @Summary     Sync connection
// @Description Sync balances and transactions of one external connection
// @Tags        connections
// @Produce     json
// @Security    BearerAuth
// @Param       id  path     string true "Connection ID"
// @Success     200 {object} provider.BalanceSyncResult "Sync result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Connection not found"
// @Failure     502 {object} ErrorResponse "Sync failed"
// @Router      /connections/{id}/sync [post]
func (h *ConnectionHandler) SyncConnection(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	connectionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.syncService.SyncOne(c.Request.Context(), userID, connectionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionConnectionSync, "external_connection", connectionID, c.ClientIP(),
		map[string]any{"accounts_updated": result.AccountsUpdated})

	c.JSON(http.StatusOK, result)
}

// SyncAllConnections handles syncing every connection of the authenticated user.
// @Summary     Sync all connections
// @Description Sync all connected external connections; partial failures are reported in the summary
// @Tags        connections
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.ConnectionSyncSummary "Sync summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /connections/sync [post]
func (h *ConnectionHandler) SyncAllConnections(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.syncService.SyncForUser(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionConnectionsSync, "external_connection", "", c.ClientIP(),
		map[string]any{"failed": summary.Failed()})

	c.JSON(http.StatusOK, summary)
}
