package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/models"
)

// Migrate creates or updates the ccd schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.SessionRecord{},
		&models.WebhookRule{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}

// SeedWebhooks upserts the configured webhook rules. Rules removed from the
// config are disabled rather than deleted, preserving their fire history.
func SeedWebhooks(db *gorm.DB, hooks []config.WebhookConfig) error {
	configured := make(map[string]bool, len(hooks))
	for _, h := range hooks {
		configured[h.ID] = true

		var rule models.WebhookRule
		err := db.Where("rule_id = ?", h.ID).First(&rule).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rule = models.WebhookRule{
				RuleID:    h.ID,
				AgentID:   h.AgentID,
				ChannelID: h.ChannelID,
				Enabled:   true,
			}
			if err := db.Create(&rule).Error; err != nil {
				return fmt.Errorf("db: seed webhook %s: %w", h.ID, err)
			}
		case err != nil:
			return fmt.Errorf("db: seed webhook %s: %w", h.ID, err)
		default:
			rule.AgentID = h.AgentID
			rule.ChannelID = h.ChannelID
			rule.Enabled = true
			if err := db.Save(&rule).Error; err != nil {
				return fmt.Errorf("db: seed webhook %s: %w", h.ID, err)
			}
		}
	}

	// Disable rules no longer present in config.
	var existing []models.WebhookRule
	if err := db.Find(&existing).Error; err != nil {
		return fmt.Errorf("db: list webhook rules: %w", err)
	}
	for _, rule := range existing {
		if !configured[rule.RuleID] && rule.Enabled {
			rule.Enabled = false
			if err := db.Save(&rule).Error; err != nil {
				return fmt.Errorf("db: disable webhook %s: %w", rule.RuleID, err)
			}
		}
	}
	return nil
}
