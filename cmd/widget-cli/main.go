package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/infrastructure/logger"
)

var version = "0.1.0"

// CLIConfig holds settings that only apply to the command-line client.
type CLIConfig struct {
	ServerURL   string `env:"WIDGET_API_URL" envDefault:"http://localhost:8190"`
	AccessToken string `env:"WIDGET_API_TOKEN"`
	Player      string `env:"AUDIO_PLAYER_COMMAND"`
	LogLevel    string `env:"WIDGET_CLI_LOG_LEVEL" envDefault:"warn"`
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "widget-cli",
	Short: "Talk to the chat widget from a terminal",
	Long: `widget-cli drives the chat widget core from a terminal.

Examples:
  # Chat against the configured completions endpoint
  CHAT_API_URL=http://localhost:8080 widget-cli chat

  # Chat and read every reply aloud
  TTS_API_URL=http://localhost:5002 widget-cli chat --speak

  # Get a real-time voice connection URL from a running widget-api
  widget-cli voice --identity visitor-42`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(voiceCmd)
}

// loadConfig reads the shared service configuration and the CLI settings.
func loadConfig() (*config.Config, *CLIConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cliCfg := &CLIConfig{}
	if err := env.Parse(cliCfg); err != nil {
		return nil, nil, fmt.Errorf("parse cli config: %w", err)
	}
	return cfg, cliCfg, nil
}

func newLogger(cliCfg *CLIConfig) zerolog.Logger {
	return logger.NewWithOutput(os.Stderr, "widget-cli", "cli", cliCfg.LogLevel)
}
