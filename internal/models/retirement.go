package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wealthsync/internal/fundcode"
)

// RetirementPosition is a user's unit balance in one retirement fund.
type RetirementPosition struct {
	Base
	UserID   string          `gorm:"type:uuid;not null;index" json:"user_id"`
	FundCode string          `gorm:"not null" json:"fund_code"`
	Units    decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"units"`
}

// FundPriceSnapshot is one pull of the retirement fund price feed. The most
// recent row is the price cache used by net worth snapshots.
// This is immutable time-series data, no Base embed and no soft deletes.
type FundPriceSnapshot struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	PriceDate time.Time `gorm:"not null;index" json:"price_date"`
	FetchedAt time.Time `gorm:"not null;index" json:"fetched_at"`

	GFund   decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"g_fund"`
	FFund   decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"f_fund"`
	CFund   decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"c_fund"`
	SFund   decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"s_fund"`
	IFund   decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"i_fund"`
	LIncome decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"l_income"`
	L2025   decimal.NullDecimal `gorm:"column:l2025;type:numeric(12,4)" json:"l2025"`
	L2030   decimal.NullDecimal `gorm:"column:l2030;type:numeric(12,4)" json:"l2030"`
	L2035   decimal.NullDecimal `gorm:"column:l2035;type:numeric(12,4)" json:"l2035"`
	L2040   decimal.NullDecimal `gorm:"column:l2040;type:numeric(12,4)" json:"l2040"`
	L2045   decimal.NullDecimal `gorm:"column:l2045;type:numeric(12,4)" json:"l2045"`
	L2050   decimal.NullDecimal `gorm:"column:l2050;type:numeric(12,4)" json:"l2050"`
	L2055   decimal.NullDecimal `gorm:"column:l2055;type:numeric(12,4)" json:"l2055"`
	L2060   decimal.NullDecimal `gorm:"column:l2060;type:numeric(12,4)" json:"l2060"`
	L2065   decimal.NullDecimal `gorm:"column:l2065;type:numeric(12,4)" json:"l2065"`
	L2070   decimal.NullDecimal `gorm:"column:l2070;type:numeric(12,4)" json:"l2070"`
	L2075   decimal.NullDecimal `gorm:"column:l2075;type:numeric(12,4)" json:"l2075"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (f *FundPriceSnapshot) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	return nil
}

func (f *FundPriceSnapshot) field(code fundcode.Code) *decimal.NullDecimal {
	switch code {
	case fundcode.G:
		return &f.GFund
	case fundcode.F:
		return &f.FFund
	case fundcode.C:
		return &f.CFund
	case fundcode.S:
		return &f.SFund
	case fundcode.I:
		return &f.IFund
	case fundcode.LIncome:
		return &f.LIncome
	case fundcode.L2025:
		return &f.L2025
	case fundcode.L2030:
		return &f.L2030
	case fundcode.L2035:
		return &f.L2035
	case fundcode.L2040:
		return &f.L2040
	case fundcode.L2045:
		return &f.L2045
	case fundcode.L2050:
		return &f.L2050
	case fundcode.L2055:
		return &f.L2055
	case fundcode.L2060:
		return &f.L2060
	case fundcode.L2065:
		return &f.L2065
	case fundcode.L2070:
		return &f.L2070
	case fundcode.L2075:
		return &f.L2075
	}
	return nil
}

// Price returns the price recorded for a canonical code.
func (f *FundPriceSnapshot) Price(code fundcode.Code) (decimal.Decimal, bool) {
	p := f.field(code)
	if p == nil || !p.Valid {
		return decimal.Zero, false
	}
	return p.Decimal, true
}

// SetPrice records a price for a canonical code. Unknown codes are ignored.
func (f *FundPriceSnapshot) SetPrice(code fundcode.Code, price decimal.Decimal) {
	if p := f.field(code); p != nil {
		*p = decimal.NewNullDecimal(price)
	}
}

// Prices returns every recorded price keyed by canonical code.
func (f *FundPriceSnapshot) Prices() map[fundcode.Code]decimal.Decimal {
	out := make(map[fundcode.Code]decimal.Decimal, len(fundcode.All))
	for _, c := range fundcode.All {
		if p, ok := f.Price(c); ok {
			out[c] = p
		}
	}
	return out
}
