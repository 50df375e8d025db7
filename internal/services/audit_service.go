package services

import (
	"encoding/json"

	apperrors "mana/internal/errors"
	"mana/internal/logger"
	"mana/internal/models"

	"gorm.io/gorm"
)

// auditService appends to the audit trail. The trail also backs alert
// deduplication, so entries are never updated or deleted.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and swallowed so the
// operation being audited still succeeds.
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

// HasEntry reports whether the user already has an entry for action on
// resourceID.
func (s *auditService) HasEntry(userID, action, resourceID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.AuditLog{}).
		Where("user_id = ? AND action = ? AND resource_id = ?", userID, action, resourceID).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

func encodeChanges(action string, changes map[string]any) string {
	if changes == nil {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}
