package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before every command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "formoptd",
	Short: "Hill-climbing optimizer for business simulation decision forms",
	Long: `formoptd drives a business simulation decision form, searching every
numeric and choice field for the values that maximize earnings per share.
It keeps the best combination found, a history of improvements, and exposes
HTTP and gRPC control surfaces.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		} else {
			cfg = config.DefaultConfig()
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (json, text)")
}
