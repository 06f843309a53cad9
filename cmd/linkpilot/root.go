package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vadim/linkpilot/internal/app"
	"github.com/vadim/linkpilot/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "linkpilot",
	Short: "LinkedIn marketing automation service",
	Long: `LinkPilot schedules and publishes LinkedIn posts, runs AI-assisted
content campaigns and executes networking rules (connect, follow, like,
comment, message) within daily safety limits.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (environment variables are used when empty)")
}

func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

// withApp builds the application, runs fn and releases its resources
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
