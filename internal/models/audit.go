package models

import (
	"time"
)

// AuditEntry records admin actions or important changes (blocks, unblocks,
// rule edits) so they can be reviewed later.
type AuditEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target"` // address or rule id the action touched
	Details   string    `json:"details" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
