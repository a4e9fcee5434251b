package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NetWorthSnapshot is the aggregate net worth of a user for one calendar day.
// There is exactly one row per (user_id, snapshot_date). Only the net worth
// snapshot service writes these rows; no soft deletes.
type NetWorthSnapshot struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string          `gorm:"type:uuid;not null;uniqueIndex:uq_net_worth_snapshots_user_date" json:"user_id"`
	SnapshotDate     time.Time       `gorm:"not null;uniqueIndex:uq_net_worth_snapshots_user_date" json:"snapshot_date"`
	CashTotal        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"cash_total"`
	InvestmentsTotal decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"investments_total"`
	RetirementTotal  decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"retirement_total"`
	RealEstateEquity decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"real_estate_equity"`
	TotalAssets      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_assets"`
	LiabilitiesTotal decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"liabilities_total"`
	NetWorth         decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"net_worth"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (n *NetWorthSnapshot) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	return nil
}

// SnapshotDay truncates t to its UTC calendar day.
func SnapshotDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
