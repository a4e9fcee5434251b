package models

import "time"

// ConnectionStatus is the link state of an external connection.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusReauthNeeded ConnectionStatus = "reauth_required"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// ConnectionSource tells which sync path a connection takes.
type ConnectionSource string

const (
	ConnectionSourceCash       ConnectionSource = "cash"
	ConnectionSourceInvestment ConnectionSource = "investment"
)

// ExternalConnection is a persisted link to an external institution.
type ExternalConnection struct {
	Base
	UserID          string           `gorm:"type:uuid;not null;index" json:"user_id"`
	InstitutionName string           `json:"institution_name"`
	ExternalID      string           `gorm:"not null" json:"-"`
	Status          ConnectionStatus `gorm:"not null;index" json:"status"`
	Source          ConnectionSource `gorm:"not null" json:"source"`
	LastSyncedAt    *time.Time       `json:"last_synced_at,omitempty"`
}
