package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newTokenCmd() *cobra.Command {
	var configPath string
	var platform string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Store a bot token in the config file",
		Long:  "Prompts for a bot token without echoing it and writes it into the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, platform)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccd.yaml", "path to ccd config file")
	cmd.Flags().StringVarP(&platform, "platform", "p", "discord", "platform to set the token for (discord or slack)")
	return cmd
}

// readToken prompts on the terminal. Overridable in tests.
var readToken = func() (string, error) {
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(raw), nil
}

func runToken(cmd *cobra.Command, configPath, platform string) error {
	if platform != "discord" && platform != "slack" {
		return fmt.Errorf("unsupported platform %q (use discord or slack)", platform)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Paste the %s bot token (input hidden): ", platform)
	token, err := readToken()
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("empty token")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", configPath, err)
	}

	// Edit the raw document rather than round-tripping through the typed
	// Config, so unknown keys and comments-adjacent structure survive.
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", configPath, err)
	}

	section, _ := doc[platform].(map[string]interface{})
	if section == nil {
		section = make(map[string]interface{})
	}
	section["bot_token"] = token
	doc[platform] = section

	updated, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath, updated, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Token saved to %s\n", configPath)
	return nil
}
