// Package catalog resolves provider model lists and picks models for roles.
// Live catalogs are cached per provider; when a fetch fails the static
// fallback list is used, so resolution never surfaces an error.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched model list stays fresh.
const DefaultTTL = 5 * time.Minute

// ModelDescriptor identifies one model a provider can serve. Capability is
// the class hosted catalogs advertise ("coder", "manager", "architect");
// empty for local catalogs.
type ModelDescriptor struct {
	Name       string
	Provider   string
	Capability string
}

// Fetcher retrieves the live model list for a provider.
type Fetcher interface {
	ListModels(ctx context.Context, provider string) ([]ModelDescriptor, error)
}

type cacheEntry struct {
	models    []ModelDescriptor
	fetchedAt time.Time
}

// Catalog caches per-provider model lists over a Fetcher.
type Catalog struct {
	fetcher   Fetcher
	ttl       time.Duration
	fallbacks map[string][]ModelDescriptor
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// CatalogOpts holds parameters for creating a Catalog.
type CatalogOpts struct {
	Fetcher   Fetcher
	TTL       time.Duration                // defaults to DefaultTTL
	Fallbacks map[string][]ModelDescriptor // defaults to the built-in lists
	Now       func() time.Time             // optional: clock override for tests
}

// New creates a Catalog.
func New(opts CatalogOpts) (*Catalog, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("catalog: fetcher is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	fallbacks := opts.Fallbacks
	if fallbacks == nil {
		fallbacks = defaultFallbacks
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Catalog{
		fetcher:   opts.Fetcher,
		ttl:       ttl,
		fallbacks: fallbacks,
		now:       now,
		cache:     make(map[string]cacheEntry),
	}, nil
}

// ListModels returns the model list for a provider, from cache when fresh.
// A failed or empty fetch degrades to the provider's fallback list; the
// result is never empty for a known provider and an error is never returned.
func (c *Catalog) ListModels(ctx context.Context, provider string) []ModelDescriptor {
	c.mu.Lock()
	entry, ok := c.cache[provider]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		models := entry.models
		c.mu.Unlock()
		return models
	}
	c.mu.Unlock()

	models, err := c.fetcher.ListModels(ctx, provider)
	if err != nil || len(models) == 0 {
		if err != nil {
			log.Printf("catalog: list %s: %v (using fallback)", provider, err)
		}
		models = c.fallbacks[provider]
	}

	c.mu.Lock()
	c.cache[provider] = cacheEntry{models: models, fetchedAt: c.now()}
	c.mu.Unlock()
	return models
}

// Invalidate drops the cached list for one provider so the next ListModels
// fetches fresh.
func (c *Catalog) Invalidate(provider string) {
	c.mu.Lock()
	delete(c.cache, provider)
	c.mu.Unlock()
}

// InvalidateAll drops every cached list.
func (c *Catalog) InvalidateAll() {
	c.mu.Lock()
	c.cache = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Refresh re-fetches every provider that currently has a cache entry.
// Used by the cron refresher.
func (c *Catalog) Refresh(ctx context.Context) {
	c.mu.Lock()
	providers := make([]string, 0, len(c.cache))
	for p := range c.cache {
		providers = append(providers, p)
	}
	c.mu.Unlock()

	for _, p := range providers {
		c.Invalidate(p)
		c.ListModels(ctx, p)
	}
}

// defaultFallbacks are the static per-provider lists used when a live catalog
// is unreachable.
var defaultFallbacks = map[string][]ModelDescriptor{
	"claude": {
		{Name: "claude-sonnet-4-5", Provider: "claude", Capability: "coder"},
		{Name: "claude-opus-4-1", Provider: "claude", Capability: "architect"},
		{Name: "claude-haiku-4-5", Provider: "claude", Capability: "manager"},
	},
	"ollama": {
		{Name: "qwen2.5-coder:7b", Provider: "ollama"},
		{Name: "llama3.2", Provider: "ollama"},
	},
	"cursor": {
		{Name: "composer-1", Provider: "cursor"},
		{Name: "auto", Provider: "cursor"},
	},
}
