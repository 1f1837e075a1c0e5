package relay

import (
	"strings"
	"testing"
	"time"

	"github.com/jessesep/claude-code-discord-sub002/internal/catalog"
	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
)

func housekeeperConfig() *config.Config {
	cfg := testConfig()
	cfg.Session.IdleTimeoutMinutes = 120
	cfg.Session.SweepCron = "*/10 * * * *"
	cfg.Catalog.RefreshCron = "*/15 * * * *"
	return cfg
}

func TestNewHousekeeper_BadCron(t *testing.T) {
	cat, _ := catalog.New(catalog.CatalogOpts{Fetcher: stubCatalogFetcher{}})
	cfg := housekeeperConfig()
	cfg.Session.SweepCron = "not a cron line"

	_, err := NewHousekeeper(HousekeeperOpts{
		Config:   cfg,
		Registry: session.NewRegistry(session.RegistryOpts{}),
		Catalog:  cat,
		Out:      &strings.Builder{},
	})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestHousekeeper_SweepClosesIdleSessions(t *testing.T) {
	cat, _ := catalog.New(catalog.CatalogOpts{Fetcher: stubCatalogFetcher{}})

	// Clock starts now and jumps past the idle cutoff when advanced.
	current := time.Now()
	registry := session.NewRegistry(session.RegistryOpts{
		Now: func() time.Time { return current },
	})
	registry.Start("u1", "c1", "general", session.Overrides{})

	h, err := NewHousekeeper(HousekeeperOpts{
		Config:   housekeeperConfig(),
		Registry: registry,
		Catalog:  cat,
		Out:      &strings.Builder{},
	})
	if err != nil {
		t.Fatalf("NewHousekeeper: %v", err)
	}

	// Not idle yet.
	h.sweepIdle()
	if _, ok := registry.Active("u1", "c1"); !ok {
		t.Fatal("fresh session swept")
	}

	current = current.Add(3 * time.Hour)
	h.sweepIdle()
	if _, ok := registry.Active("u1", "c1"); ok {
		t.Fatal("idle session survived the sweep")
	}
}

func TestHousekeeper_RefreshDoesNotPanicOnEmptyCache(t *testing.T) {
	cat, _ := catalog.New(catalog.CatalogOpts{Fetcher: stubCatalogFetcher{}})
	h, err := NewHousekeeper(HousekeeperOpts{
		Config:   housekeeperConfig(),
		Registry: session.NewRegistry(session.RegistryOpts{}),
		Catalog:  cat,
		Out:      &strings.Builder{},
	})
	if err != nil {
		t.Fatalf("NewHousekeeper: %v", err)
	}
	h.refreshCatalog()
}
