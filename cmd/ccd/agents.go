package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/db"
	"github.com/jessesep/claude-code-discord-sub002/internal/history"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect configured agents",
	}

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsCostsCmd())
	return cmd
}

func newAgentsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentsList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccd.yaml", "path to ccd config file")
	return cmd
}

func runAgentsList(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tMODEL\tRISK")
	for _, a := range cfg.Agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.DisplayName, a.Provider, a.DefaultModel, a.RiskLevel)
	}
	return w.Flush()
}

func newAgentsCostsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show per-agent usage totals from the session history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentsCosts(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccd.yaml", "path to ccd config file")
	return cmd
}

func runAgentsCosts(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	store, err := history.NewStore(gormDB)
	if err != nil {
		return err
	}

	rows, err := store.AgentCosts()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tSESSIONS\tMESSAGES\tCOST")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t$%.4f\n", r.AgentID, r.Sessions, r.Messages, r.TotalCost)
	}
	return w.Flush()
}
