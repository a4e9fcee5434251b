package models

import "github.com/shopspring/decimal"

// LiabilityType classifies a debt.
type LiabilityType string

const (
	LiabilityTypeCreditCard   LiabilityType = "credit_card"
	LiabilityTypeStudentLoan  LiabilityType = "student_loan"
	LiabilityTypeAutoLoan     LiabilityType = "auto_loan"
	LiabilityTypePersonalLoan LiabilityType = "personal_loan"
	LiabilityTypeOther        LiabilityType = "other"
)

// Liability is a non-mortgage debt. Mortgages live on Property.
type Liability struct {
	Base
	UserID         string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name           string          `gorm:"not null" json:"name"`
	Type           LiabilityType   `gorm:"not null" json:"type"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"current_balance"`
}
