// Package trigger exposes the HTTP surface: webhook endpoints that start
// agent sessions from external systems, plus read-only session queries.
package trigger

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/history"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
)

// StartOpts holds configuration for the trigger server.
type StartOpts struct {
	Config   *config.Config
	Registry *session.Registry
	History  *history.Store
	Port     int
	Out      io.Writer
}

// Start launches the trigger HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Config == nil {
		return fmt.Errorf("trigger: config is required")
	}
	if opts.Registry == nil {
		return fmt.Errorf("trigger: registry is required")
	}
	if opts.History == nil {
		return fmt.Errorf("trigger: history store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.Config, opts.Registry, opts.History)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Trigger API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("trigger: %w", err)
	}
	return nil
}
