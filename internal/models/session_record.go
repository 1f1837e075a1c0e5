// Package models defines the GORM persistence models for ccd.
package models

import "time"

// SessionRecord is the archived form of a chat session, written when the
// session completes. The live registry is in-memory; these rows are the
// durable history and the source for cost reporting.
type SessionRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:64;uniqueIndex;not null"`
	AgentID   string `gorm:"size:64;not null;index"`
	UserID    string `gorm:"size:128;index:idx_user_channel"`
	ChannelID string `gorm:"size:128;index:idx_user_channel"`

	Provider  string `gorm:"size:32"`
	Model     string `gorm:"size:128"`
	Role      string `gorm:"size:32"`
	Workspace string `gorm:"size:512"`

	MessageCount    int
	AccumulatedCost float64
	Status          string `gorm:"size:16;index"` // active, paused, completed, error

	StartedAt time.Time
	EndedAt   time.Time
	CreatedAt time.Time
}

// WebhookRule binds a trigger endpoint ID to the agent a triggered session
// should use. Rules are seeded from config and updated as they fire.
type WebhookRule struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RuleID    string `gorm:"size:64;uniqueIndex;not null"`
	AgentID   string `gorm:"size:64;not null"`
	ChannelID string `gorm:"size:128"`
	Enabled   bool

	FireCount   int
	LastFiredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
