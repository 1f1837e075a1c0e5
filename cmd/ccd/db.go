package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the ccd database",
		Long:  "Opens the configured database, migrates the schema, and seeds the webhook rules.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccd.yaml", "path to ccd config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if cfg.DB.Host != "" {
		fmt.Fprintf(out, "Connected to MySQL at %s:%d/%s\n", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	} else {
		fmt.Fprintf(out, "Opened sqlite database %s\n", cfg.DB.Path)
	}

	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Schema migrated")

	if err := db.SeedWebhooks(gormDB, cfg.Webhooks); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d webhook rule(s)\n", len(cfg.Webhooks))
	return nil
}
