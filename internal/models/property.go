package models

import "github.com/shopspring/decimal"

// Property is a real-estate asset with an optional mortgage.
type Property struct {
	Base
	UserID          string              `gorm:"type:uuid;not null;index" json:"user_id"`
	Name            string              `gorm:"not null" json:"name"`
	EstimatedValue  decimal.Decimal     `gorm:"type:numeric(20,4);not null" json:"estimated_value"`
	MortgageBalance decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"mortgage_balance"`
}

// Mortgage returns the mortgage balance, zero when none is recorded.
func (p *Property) Mortgage() decimal.Decimal {
	if p.MortgageBalance.Valid {
		return p.MortgageBalance.Decimal
	}
	return decimal.Zero
}
