package models

import (
	"time"
)

// BlockRecord stores one active block for a source address so it survives
// process restarts and can be audited in the UI. A nil ExpiresAt means the
// block is permanent.
type BlockRecord struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UUID       string     `json:"uuid" gorm:"uniqueIndex"`
	Address    string     `json:"address" gorm:"uniqueIndex"`
	BlockedAt  time.Time  `json:"blocked_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason" gorm:"type:text"`
	Actor      string     `json:"actor"` // e.g., AutoBlock, admin username
	AttackType string     `json:"attack_type,omitempty"`
	Severity   string     `json:"severity,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
