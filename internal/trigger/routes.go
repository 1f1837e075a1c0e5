package trigger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/history"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
)

// webhookPayload is the body accepted by the webhook trigger endpoint.
type webhookPayload struct {
	Trigger   string `json:"trigger" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	ChannelID string `json:"channelId"`
	Timestamp string `json:"timestamp"`
}

// registerRoutes sets up all trigger API routes on the Gin router.
func registerRoutes(router *gin.Engine, cfg *config.Config, registry *session.Registry, store *history.Store) {
	router.GET("/healthz", handleHealth())

	api := router.Group("/api")
	api.POST("/webhooks/:id", handleWebhook(cfg, registry, store))
	api.GET("/sessions", handleSessionHistory(store))
	api.GET("/sessions/active", handleActiveSessions(registry))
	api.GET("/costs", handleAgentCosts(store))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	}
}

// handleWebhook starts (or replaces) a session from an external trigger.
// The rule must exist in the database and be enabled.
func handleWebhook(cfg *config.Config, registry *session.Registry, store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ruleID := c.Param("id")

		var payload webhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		rule, err := store.Rule(ruleID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown or disabled webhook rule"})
			return
		}

		if _, err := cfg.Agent(rule.AgentID); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "rule references an unconfigured agent"})
			return
		}

		channelID := payload.ChannelID
		if channelID == "" {
			channelID = rule.ChannelID
		}
		if channelID == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no channel for webhook session"})
			return
		}

		sess := registry.Switch(payload.UserID, channelID, rule.AgentID, session.Overrides{})

		if err := store.MarkFired(ruleID); err != nil {
			// The session already started; the stale counter is not worth a 500.
			c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID, "warning": "fire counter not updated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sessionId": sess.ID,
			"agentId":   rule.AgentID,
			"channelId": channelID,
		})
	}
}

func handleSessionHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := store.Recent(50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

func handleActiveSessions(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var active []session.Session
		for _, s := range registry.Snapshot() {
			if s.Status == session.StatusActive {
				active = append(active, s)
			}
		}
		c.JSON(http.StatusOK, gin.H{"count": len(active), "sessions": active})
	}
}

func handleAgentCosts(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := store.AgentCosts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
