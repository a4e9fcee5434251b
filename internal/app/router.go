package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wealthsync/internal/config"
	"wealthsync/internal/handlers"
	"wealthsync/internal/middleware"
)

// NewRouter builds the HTTP API. health reports whether the database is reachable.
func NewRouter(cfg *config.Config, svc *Services, health func(ctx context.Context) error) *gin.Engine {
	netWorthHandler := handlers.NewNetWorthHandler(svc.Snapshots, svc.Audit)
	holdingPriceHandler := handlers.NewHoldingPriceHandler(svc.Prices, svc.Audit, cfg.Jobs)
	connectionHandler := handlers.NewConnectionHandler(svc.Connections, svc.Audit)
	pipelineHandler := handlers.NewPipelineHandler(svc.Snapshots, svc.Prices, svc.Connections, svc.FundPrices, cfg.Jobs)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// User-triggered syncs
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	networth := protected.Group("/networth")
	networth.GET("/snapshots", netWorthHandler.GetSnapshots)
	networth.POST("/snapshots/refresh", netWorthHandler.RefreshSnapshot)

	protected.POST("/accounts/:id/refresh-prices", holdingPriceHandler.RefreshAccountPrices)

	connections := protected.Group("/connections")
	connections.POST("/sync", connectionHandler.SyncAllConnections)
	connections.POST("/:id/sync", connectionHandler.SyncConnection)

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/fund-prices", pipelineHandler.RecordFundPrices)

	jobs := pipeline.Group("/jobs")
	jobs.POST("/networth-snapshot", pipelineHandler.RunNetWorthSnapshot)
	jobs.POST("/holding-prices", pipelineHandler.RunHoldingPriceRefresh)
	jobs.POST("/connection-sync", pipelineHandler.RunConnectionSync)
	jobs.POST("/fund-prices", pipelineHandler.RunFundPriceFetch)

	return router
}
