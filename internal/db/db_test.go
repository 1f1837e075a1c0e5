package db

import (
	"testing"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/models"
)

func TestConnect_SQLiteAndMigrate(t *testing.T) {
	gdb, err := Connect(config.DBConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !gdb.Migrator().HasTable(&models.SessionRecord{}) {
		t.Error("session_records table missing after migrate")
	}
	if !gdb.Migrator().HasTable(&models.WebhookRule{}) {
		t.Error("webhook_rules table missing after migrate")
	}
}

func TestSeedWebhooks_CreateUpdateDisable(t *testing.T) {
	gdb, err := Connect(config.DBConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	hooks := []config.WebhookConfig{
		{ID: "nightly", AgentID: "general", ChannelID: "c1"},
		{ID: "on-deploy", AgentID: "fixer", ChannelID: "c2"},
	}
	if err := SeedWebhooks(gdb, hooks); err != nil {
		t.Fatalf("SeedWebhooks: %v", err)
	}

	var count int64
	gdb.Model(&models.WebhookRule{}).Count(&count)
	if count != 2 {
		t.Fatalf("got %d rules, want 2", count)
	}

	// Re-seed with one rule changed and one removed.
	hooks = []config.WebhookConfig{
		{ID: "nightly", AgentID: "reviewer", ChannelID: "c9"},
	}
	if err := SeedWebhooks(gdb, hooks); err != nil {
		t.Fatalf("SeedWebhooks (reseed): %v", err)
	}

	var nightly models.WebhookRule
	if err := gdb.Where("rule_id = ?", "nightly").First(&nightly).Error; err != nil {
		t.Fatalf("load nightly: %v", err)
	}
	if nightly.AgentID != "reviewer" || nightly.ChannelID != "c9" || !nightly.Enabled {
		t.Errorf("nightly not updated: %+v", nightly)
	}

	var removed models.WebhookRule
	if err := gdb.Where("rule_id = ?", "on-deploy").First(&removed).Error; err != nil {
		t.Fatalf("load on-deploy: %v", err)
	}
	if removed.Enabled {
		t.Error("removed rule should be disabled, not deleted")
	}
}
