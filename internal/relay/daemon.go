package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Daemon is the main bot process. It connects one or more platform adapters,
// pumps their inbound events through the Router, and shuts the adapters down
// when the context is cancelled. Each event runs in its own goroutine so a
// long provider turn never blocks command handling.
type Daemon struct {
	router   *Router
	adapters []Adapter
	out      io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Router   *Router
	Adapters []Adapter
	Out      io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("relay: daemon: router is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("relay: daemon: at least one adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{router: opts.Router, adapters: opts.Adapters, out: out}, nil
}

// Run connects every adapter and blocks pumping events until ctx is
// cancelled. Adapters are assumed already Connected by the caller if their
// Connect was needed for wiring (e.g. bot user ID); Connect here is
// idempotent.
func (d *Daemon) Run(ctx context.Context) error {
	merged := make(chan Event, 64)
	var wg sync.WaitGroup

	for _, adapter := range d.adapters {
		if err := adapter.Connect(ctx); err != nil {
			return fmt.Errorf("relay: daemon: connect: %w", err)
		}
		inbound, err := adapter.Listen(ctx)
		if err != nil {
			return fmt.Errorf("relay: daemon: listen: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range inbound {
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	fmt.Fprintf(d.out, "relay: daemon online with %d adapter(s)\n", len(d.adapters))

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "relay: daemon shutting down...\n")
			for _, adapter := range d.adapters {
				if err := adapter.Close(); err != nil {
					log.Printf("relay: daemon: close adapter: %v", err)
				}
			}
			wg.Wait()
			fmt.Fprintf(d.out, "relay: daemon stopped\n")
			return nil

		case ev := <-merged:
			go d.router.Handle(ctx, ev)
		}
	}
}
