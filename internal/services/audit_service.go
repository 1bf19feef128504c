package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dolos-sec/dolos/internal/models"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Log stores an audit entry.
func (s *AuditService) Log(a *models.AuditEntry) error {
	if a == nil {
		return nil
	}
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return s.db.Create(a).Error
}

// Record is a convenience wrapper for the common case.
func (s *AuditService) Record(actor, action, target, details string) error {
	return s.Log(&models.AuditEntry{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Details: details,
	})
}

// List returns recent audit entries, newest first.
func (s *AuditService) List(limit int) ([]models.AuditEntry, error) {
	var res []models.AuditEntry
	q := s.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}
