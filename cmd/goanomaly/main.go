// Command goanomaly flags anomalous records in a dataset and writes the
// result as a JSON report. On success the last line on stdout is the report
// path.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/goanomaly/pkg/config"
	"github.com/hed1ad/goanomaly/pkg/logging"
	"github.com/hed1ad/goanomaly/pkg/pipeline"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
)

// newLogger is replaced in tests.
var newLogger = logging.New

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if config.IsArgumentError(err) {
		fmt.Fprint(stderr, cmd.UsageString())
		return exitArgument
	}
	return exitFailure
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goanomaly --data <path> --output <path> [flags]",
		Short: "Detect anomalies in a dataset",
		Long: `goanomaly reads a dataset (a JSON array of records, or YAML, CSV or PCAP),
flags a contamination-sized share of the records as anomalous using the chosen
method, and writes the flags, scores and run metadata to a JSON report.

The final line printed to stdout is the report path.

Every flag can also be set through the environment, e.g. GOANOMALY_METHOD.`,
		Example: `  goanomaly --data records.json --output out/anomalies.json
  goanomaly --data metrics.csv.gz --method local_outlier_factor --contamination 0.05 --output result.json`,
		Args:          argumentErrors(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDetect,
	}

	config.RegisterFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.ArgumentError{Message: err.Error()}
	})

	return cmd
}

func runDetect(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("resolved configuration",
		zap.String("data", cfg.Data),
		zap.String("output", cfg.Output),
		zap.String("method", string(cfg.Method)),
		zap.Float64("contamination", cfg.Contamination),
		zap.String("format", string(cfg.Format)))

	p := pipeline.New(pipeline.WithLogger(logger))
	if _, err := p.Run(cmd.Context(), cfg); err != nil {
		logger.Error("detection failed", zap.Error(err))
		return err
	}

	// Callers capture the report location from the last stdout line.
	fmt.Fprintln(cmd.OutOrStdout(), cfg.Output)
	return nil
}

func argumentErrors(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			var argErr *config.ArgumentError
			if errors.As(err, &argErr) {
				return err
			}
			return &config.ArgumentError{Message: err.Error()}
		}
		return nil
	}
}
