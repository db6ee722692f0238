package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhiyu/hypergen"
	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/logging"
	"github.com/zhiyu/hypergen/runner"
)

var (
	runInput    string
	runOutput   string
	runStart    int
	runEnd      int
	runDoneFlag string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every item of a JSONL batch",
	Long: "Run reads one JSON object per line from --input, generates an article\n" +
		"for each selected item and appends it to --output with a \"result\" field.\n" +
		"Items already present in the output are skipped.",
	RunE: runBatch,
}

var generateCmd = &cobra.Command{
	Use:   "generate <goal>",
	Short: "Generate one article and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, err := newHypergen(ctx, cfg, "")
		if err != nil {
			return err
		}
		defer h.Close()

		result, err := h.Generate(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input JSONL file")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output JSONL file")
	runCmd.Flags().IntVar(&runStart, "start", 0, "first item to run")
	runCmd.Flags().IntVar(&runEnd, "end", 0, "item to stop before (0 = all)")
	runCmd.Flags().StringVar(&runDoneFlag, "done-flag", "", "file written once the batch completes")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("output")

	addOverrideFlags(runCmd)
	addOverrideFlags(generateCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHypergen(ctx, cfg, fmt.Sprintf("%d-%d", runStart, runEnd))
	if err != nil {
		return err
	}
	defer h.Close()

	sum, err := h.RunBatch(ctx, runInput, runOutput, func(o *runner.Options) {
		o.Start = runStart
		o.End = runEnd
		o.DoneFlag = runDoneFlag
	})
	fmt.Fprintf(cmd.OutOrStdout(), "total=%d skipped=%d succeeded=%d failed=%d\n",
		sum.Total, sum.Skipped, sum.Succeeded, sum.Failed)
	return err
}

// newHypergen builds the façade with a process logger and, when configured,
// a metrics endpoint that lives as long as ctx.
func newHypergen(ctx context.Context, cfg *config.Config, cachePrefix string) (*hypergen.Hypergen, error) {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    os.Stderr,
		Component: "hypergen",
	})
	h, err := hypergen.New(func(o *hypergen.Options) {
		o.Config = cfg
		o.CachePrefix = cachePrefix
		o.Logger = logger
	})
	if err != nil {
		return nil, err
	}
	if addr := cfg.Engine.MetricsAddr; addr != "" {
		go func() {
			if err := h.ServeMetrics(ctx, addr); err != nil {
				logger.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}
	return h, nil
}
