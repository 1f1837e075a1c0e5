// Package history persists completed sessions and serves usage queries.
package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jessesep/claude-code-discord-sub002/internal/models"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
)

// Store archives sessions and answers history/cost queries. It implements
// session.Archiver.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("history: db is required")
	}
	return &Store{db: db}, nil
}

// Archive writes a session to the history table, updating the existing row
// if the session was archived before (e.g. completed twice via idle sweep
// races).
func (s *Store) Archive(sess session.Session) error {
	var rec models.SessionRecord
	err := s.db.Where("session_id = ?", sess.ID).First(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("history: load %s: %w", sess.ID, err)
	}

	rec.SessionID = sess.ID
	rec.AgentID = sess.AgentID
	rec.UserID = sess.UserID
	rec.ChannelID = sess.ChannelID
	rec.Provider = sess.ProviderOverride
	rec.Model = sess.ModelOverride
	rec.Role = sess.RoleOverride
	rec.Workspace = sess.WorkspaceOverride
	rec.MessageCount = sess.MessageCount
	rec.AccumulatedCost = sess.AccumulatedCost
	rec.Status = string(sess.Status)
	rec.StartedAt = sess.StartTime
	rec.EndedAt = sess.LastActivity

	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("history: save %s: %w", sess.ID, err)
	}
	return nil
}

// Recent returns the latest archived sessions, newest first.
func (s *Store) Recent(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []models.SessionRecord
	err := s.db.Order("started_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("history: recent sessions: %w", err)
	}
	return recs, nil
}

// AgentCost aggregates archived usage for one agent.
type AgentCost struct {
	AgentID   string  `gorm:"column:agent_id"`
	Sessions  int64   `gorm:"column:sessions"`
	Messages  int64   `gorm:"column:messages"`
	TotalCost float64 `gorm:"column:total_cost"`
}

// AgentCosts returns per-agent usage totals across all archived sessions.
func (s *Store) AgentCosts() ([]AgentCost, error) {
	var rows []AgentCost
	err := s.db.Model(&models.SessionRecord{}).
		Select("agent_id, COUNT(*) as sessions, COALESCE(SUM(message_count),0) as messages, COALESCE(SUM(accumulated_cost),0) as total_cost").
		Group("agent_id").
		Order("total_cost DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history: agent costs: %w", err)
	}
	return rows, nil
}

// Rule returns the enabled webhook rule with the given ID.
func (s *Store) Rule(ruleID string) (models.WebhookRule, error) {
	var rule models.WebhookRule
	err := s.db.Where("rule_id = ? AND enabled = ?", ruleID, true).First(&rule).Error
	if err != nil {
		return models.WebhookRule{}, fmt.Errorf("history: rule %s: %w", ruleID, err)
	}
	return rule, nil
}

// MarkFired bumps a rule's fire counter and timestamp.
func (s *Store) MarkFired(ruleID string) error {
	now := time.Now()
	err := s.db.Model(&models.WebhookRule{}).
		Where("rule_id = ?", ruleID).
		Updates(map[string]interface{}{
			"fire_count":    gorm.Expr("fire_count + 1"),
			"last_fired_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("history: mark fired %s: %w", ruleID, err)
	}
	return nil
}
