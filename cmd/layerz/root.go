package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoobzio/layerz"
	"github.com/zoobzio/layerz/config"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "layerz",
	Short: "layerz - X-Trace instrumentation toolkit",
	Long: `layerz works with the X-Trace tokens and configuration used by the
layerz tracing library.

It can:
  - mint, decode and continue X-Trace tokens
  - validate configuration files and environment overrides
  - watch a configuration file for changes
  - simulate sampling decisions for a configuration`,
	Version:       layerz.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or the defaults when unset, with LAYERZ_*
// overrides applied.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadWithEnv(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus LAYERZ_* environment when empty)")
}
