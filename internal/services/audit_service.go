package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"wealthsync/internal/logger"
	"wealthsync/internal/models"
)

// Audit actions for manually triggered syncs.
const (
	AuditActionSnapshotRefresh = "networth_snapshot.refresh"
	AuditActionPriceRefresh    = "account.refresh_prices"
	AuditActionConnectionSync  = "connection.sync"
	AuditActionConnectionsSync = "connections.sync"
)

// auditService records user-triggered syncs.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and swallowed; the sync
// that triggered the entry has already happened.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(action, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

func encodeChanges(action string, changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}
