package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a position in a single symbol within an Account.
type Holding struct {
	Base
	AccountID       string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Symbol          string          `gorm:"not null" json:"symbol"`
	Name            string          `json:"name,omitempty"`
	Quantity        decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"quantity"`
	CurrentPrice    decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"current_price"`
	LastPriceUpdate *time.Time      `json:"last_price_update,omitempty"`
}

// MarketValue is Quantity × CurrentPrice.
func (h *Holding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.CurrentPrice)
}
