package models

import (
	"time"
)

// NotificationProvider stores an outbound alert channel (shoutrrr service
// URL or plain webhook) and which events it wants.
type NotificationProvider struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UUID         string    `json:"uuid" gorm:"uniqueIndex"`
	Name         string    `json:"name"`
	Type         string    `json:"type"` // "shoutrrr", "webhook"
	URL          string    `json:"url" gorm:"type:text"`
	Enabled      bool      `json:"enabled" gorm:"default:true"`
	NotifyBlocks bool      `json:"notify_blocks" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
