package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoobzio/layerz"
	"github.com/zoobzio/layerz/config"
)

var watchFlags struct {
	debounce time.Duration
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect tracer configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and print the effective settings",
	Long: `Load --config (or the defaults), apply LAYERZ_* environment overrides,
validate the result and print the effective settings.

Examples:
  layerz config check --config layerz.yaml
  LAYERZ_SAMPLE_RATE=1000 layerz config check`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a configuration file and report each valid reload",
	Long: `Watch --config for changes. Each valid reload is applied to a tracer and
its effective settings printed; invalid files are logged and skipped.
Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runConfigWatch,
}

func runConfigWatch(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("--config is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := layerz.NewLogger(cfg.Log, cmd.ErrOrStderr())
	tracer, err := layerz.New(layerz.WithConfig(cfg), layerz.WithLogger(logger))
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(cfgFile, logger)
	if err != nil {
		return err
	}
	watcher.WithDebounce(watchFlags.debounce)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printConfig(cmd.OutOrStdout(), tracer.Config())
	werr := watcher.Watch(ctx, func(next config.Config) {
		if err := tracer.ApplyConfig(next); err != nil {
			logger.Error("config rejected", "error", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "---")
		printConfig(cmd.OutOrStdout(), tracer.Config())
	})
	if err := watcher.Stop(); err != nil && werr == nil {
		werr = err
	}
	return werr
}

func printConfig(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "enabled:            %t\n", cfg.Enabled)
	fmt.Fprintf(w, "tracing_mode:       %s\n", cfg.TracingMode)
	fmt.Fprintf(w, "sample_rate:        %d/%d\n", cfg.SampleRate, config.MaxSampleRate)
	fmt.Fprintf(w, "collect_backtraces: %t\n", cfg.CollectBacktraces)
	fmt.Fprintf(w, "reporter:           queue_size=%d workers=%d\n", cfg.Reporter.QueueSize, cfg.Reporter.Workers)
	fmt.Fprintf(w, "log:                level=%s format=%s\n", cfg.Log.Level, cfg.Log.Format)

	names := make([]string, 0, len(cfg.Layers))
	for name := range cfg.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		enabled, rate, backtraces, _ := cfg.Layer(name)
		fmt.Fprintf(w, "layer %s: enabled=%t sample_rate=%d collect_backtraces=%t\n", name, enabled, rate, backtraces)
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd, configWatchCmd)

	configWatchCmd.Flags().DurationVar(&watchFlags.debounce, "debounce", config.DefaultDebounce, "quiet period before a change is reloaded")
}

