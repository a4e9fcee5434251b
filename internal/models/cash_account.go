package models

import "github.com/shopspring/decimal"

// CashAccount is a deposit account whose balance is written by the external
// connection sync collaborator.
type CashAccount struct {
	Base
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name         string          `gorm:"not null" json:"name"`
	Type         AccountType     `gorm:"not null" json:"type"`
	Balance      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"balance"`
	Currency     string          `gorm:"not null;default:'USD'" json:"currency"`
	ConnectionID *string         `gorm:"type:uuid" json:"connection_id,omitempty"`
}
