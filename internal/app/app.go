// Package app wires configuration, database and upstream providers into the
// sync services shared by the API and the worker.
package app

import (
	"net/http"

	"gorm.io/gorm"

	"wealthsync/internal/config"
	"wealthsync/internal/provider"
	"wealthsync/internal/scheduler"
	"wealthsync/internal/services"
)

// Services holds every service the binaries need.
type Services struct {
	scheduler.Services
	Audit services.AuditServicer
}

// NewServices builds the services over db using the providers configured in cfg.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	quotes := provider.NewYahooQuoteProvider(httpClient, cfg.QuoteAPIURL, cfg.QuoteRatePerSecond)
	fundPrices := provider.NewTSPPriceProvider(httpClient, cfg.FundPriceURL)
	connections := provider.NewHTTPConnectionClient(cfg.ConnectionAPIURL, cfg.ConnectionAPIKey, httpClient)

	return &Services{
		Services: scheduler.Services{
			Snapshots:   services.NewNetWorthSnapshotService(db),
			Prices:      services.NewHoldingPriceService(db, quotes),
			Connections: services.NewConnectionSyncService(db, connections),
			FundPrices:  services.NewRetirementPriceService(db, fundPrices),
		},
		Audit: services.NewAuditService(db),
	}
}
