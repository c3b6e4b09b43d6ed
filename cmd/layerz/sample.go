package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/zoobzio/layerz"
)

var sampleFlags struct {
	n     int
	layer string
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Simulate sampling decisions for new traces",
	Long: `Start --n new traces in --layer using the loaded configuration and report
how many were sampled.

Examples:
  layerz sample --n 10000
  LAYERZ_SAMPLE_RATE=250000 layerz sample --n 10000 --layer http`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

func runSample(cmd *cobra.Command, args []string) error {
	if sampleFlags.n <= 0 {
		return fmt.Errorf("--n must be positive, got %d", sampleFlags.n)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	collector := layerz.NewCollector("sample", 1024)
	collector.SetSyncMode(true)
	defer collector.Close()

	tracer, err := layerz.New(
		layerz.WithConfig(cfg),
		layerz.WithReporter(collector),
		layerz.WithLogger(layerz.NewLogger(cfg.Log, cmd.ErrOrStderr())),
		layerz.WithMetrics(layerz.NewMetrics(prometheus.NewRegistry())),
	)
	if err != nil {
		return err
	}

	sampled := 0
	ctx := context.Background()
	for i := 0; i < sampleFlags.n; i++ {
		err := tracer.StartOrContinue(ctx, "", sampleFlags.layer, func(ctx context.Context) error {
			if layerz.Current(ctx).Sampled() {
				sampled++
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	_, rate, _, _ := cfg.Layer(sampleFlags.layer)
	fmt.Fprintf(cmd.OutOrStdout(), "sampled %d of %d traces in layer %q (mode %s, rate %d/%d)\n",
		sampled, sampleFlags.n, sampleFlags.layer, cfg.TracingMode, rate, layerz.MaxSampleRate)
	fmt.Fprintf(cmd.OutOrStdout(), "events reported: %d\n", collector.Count())
	return nil
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().IntVarP(&sampleFlags.n, "n", "n", 1000, "number of traces to start")
	sampleCmd.Flags().StringVar(&sampleFlags.layer, "layer", "sample", "layer name used for the traces")
}
