package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jessesep/claude-code-discord-sub002/internal/catalog"
	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/db"
	"github.com/jessesep/claude-code-discord-sub002/internal/history"
	"github.com/jessesep/claude-code-discord-sub002/internal/relay"
	discordadapter "github.com/jessesep/claude-code-discord-sub002/internal/relay/discord"
	slackadapter "github.com/jessesep/claude-code-discord-sub002/internal/relay/slack"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
	"github.com/jessesep/claude-code-discord-sub002/internal/trigger"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ccd daemon",
		Long:  "Connects to Discord (and optionally Slack), serves the webhook trigger API, and relays agent sessions until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccd.yaml", "path to ccd config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded %d agent(s) from %s\n", len(cfg.Agents), configPath)

	// Database and history store.
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedWebhooks(gormDB, cfg.Webhooks); err != nil {
		return err
	}
	store, err := history.NewStore(gormDB)
	if err != nil {
		return err
	}

	// Model catalog.
	cat, err := catalog.New(catalog.CatalogOpts{
		Fetcher: catalog.NewHTTPFetcher(cfg.Catalog.Endpoints),
		TTL:     time.Duration(cfg.Catalog.TTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	// Session registry archiving into the history store.
	registry := session.NewRegistry(session.RegistryOpts{Archiver: store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Discord connects first: the router needs the bot user ID.
	discord, err := discordadapter.New(discordadapter.AdapterOpts{
		BotToken: cfg.Discord.BotToken,
		GuildID:  cfg.Discord.GuildID,
	})
	if err != nil {
		return err
	}
	if err := discord.Connect(ctx); err != nil {
		return err
	}

	adapters := []relay.Adapter{discord}
	extra := make(map[string]relay.Adapter)
	if cfg.Slack.BotToken != "" {
		slack, err := slackadapter.New(slackadapter.AdapterOpts{
			AppToken: cfg.Slack.AppToken,
			BotToken: cfg.Slack.BotToken,
		})
		if err != nil {
			return err
		}
		adapters = append(adapters, slack)
		extra["slack"] = slack
	}

	router, err := relay.NewRouter(relay.RouterOpts{
		Config:    cfg,
		Registry:  registry,
		Catalog:   cat,
		Runner:    &relay.CLIRunner{},
		Adapter:   discord,
		Extra:     extra,
		BotUserID: discord.BotUserID(),
		Out:       out,
	})
	if err != nil {
		return err
	}

	housekeeper, err := relay.NewHousekeeper(relay.HousekeeperOpts{
		Config:   cfg,
		Registry: registry,
		Catalog:  cat,
		Out:      out,
	})
	if err != nil {
		return err
	}
	housekeeper.Start()
	defer housekeeper.Stop()

	// Trigger API in the background.
	go func() {
		err := trigger.Start(ctx, trigger.StartOpts{
			Config:   cfg,
			Registry: registry,
			History:  store,
			Port:     cfg.HTTP.Port,
			Out:      out,
		})
		if err != nil {
			log.Printf("serve: trigger server: %v", err)
		}
	}()

	daemon, err := relay.NewDaemon(relay.DaemonOpts{
		Router:   router,
		Adapters: adapters,
		Out:      out,
	})
	if err != nil {
		return err
	}
	return daemon.Run(ctx)
}
