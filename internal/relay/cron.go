package relay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jessesep/claude-code-discord-sub002/internal/catalog"
	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
)

// Housekeeper runs the periodic jobs: sweeping idle sessions out of the
// registry and refreshing cached model catalogs.
type Housekeeper struct {
	cron     *cron.Cron
	registry *session.Registry
	catalog  *catalog.Catalog
	idle     time.Duration
	out      io.Writer
}

// HousekeeperOpts holds parameters for creating a Housekeeper.
type HousekeeperOpts struct {
	Config   *config.Config
	Registry *session.Registry
	Catalog  *catalog.Catalog
	Out      io.Writer // defaults to os.Stdout
}

// NewHousekeeper creates a Housekeeper and registers its jobs from the
// configured cron expressions.
func NewHousekeeper(opts HousekeeperOpts) (*Housekeeper, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("relay: housekeeper: config is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("relay: housekeeper: registry is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("relay: housekeeper: catalog is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	h := &Housekeeper{
		cron:     cron.New(),
		registry: opts.Registry,
		catalog:  opts.Catalog,
		idle:     time.Duration(opts.Config.Session.IdleTimeoutMinutes) * time.Minute,
		out:      out,
	}

	if _, err := h.cron.AddFunc(opts.Config.Session.SweepCron, h.sweepIdle); err != nil {
		return nil, fmt.Errorf("relay: housekeeper: sweep cron %q: %w", opts.Config.Session.SweepCron, err)
	}
	if _, err := h.cron.AddFunc(opts.Config.Catalog.RefreshCron, h.refreshCatalog); err != nil {
		return nil, fmt.Errorf("relay: housekeeper: refresh cron %q: %w", opts.Config.Catalog.RefreshCron, err)
	}
	return h, nil
}

// Start begins running the scheduled jobs in the background.
func (h *Housekeeper) Start() {
	h.cron.Start()
	fmt.Fprintf(h.out, "relay: housekeeper: started [idle=%s]\n", h.idle)
}

// Stop halts scheduling and waits for any running job to finish.
func (h *Housekeeper) Stop() {
	<-h.cron.Stop().Done()
	fmt.Fprintf(h.out, "relay: housekeeper: stopped\n")
}

func (h *Housekeeper) sweepIdle() {
	if n := h.registry.CloseIdle(h.idle); n > 0 {
		fmt.Fprintf(h.out, "relay: housekeeper: closed %d idle session(s)\n", n)
	}
}

func (h *Housekeeper) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	h.catalog.Refresh(ctx)
	fmt.Fprintf(h.out, "relay: housekeeper: catalog refreshed\n")
}
