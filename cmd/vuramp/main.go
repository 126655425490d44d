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
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/torosent/vuramp/internal/config"
	"github.com/torosent/vuramp/internal/harness"
	"github.com/torosent/vuramp/internal/history"
	"github.com/torosent/vuramp/internal/logging"
	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/output"
	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
)

// Process exit codes.
const (
	exitOK               = 0
	exitError            = 1
	exitReportFailed     = 97
	exitThresholdsFailed = 99
	exitConfigError      = 104
)

// codedError carries a process exit code through cobra.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &codedError{code: code, err: err}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and maps the outcome to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ce *codedError
	if errors.As(err, &ce) {
		if ce.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ce.err)
		}
		return ce.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "vuramp",
		Short:         "Staged virtual-user HTTP load harness",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitConfigError, err)
	})
	root.AddCommand(newRunCmd(stdout, stderr), newHistoryCmd(stdout))
	return root
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load profile against the configured targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, stdout, stderr)
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}

func runLoad(cmd *cobra.Command, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().FromFlags(cmd.Flags())
	if err != nil {
		return withCode(exitConfigError, err)
	}
	if err := cfg.Validate(); err != nil {
		return withCode(exitConfigError, err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return withCode(exitConfigError, err)
	}
	defer func() { _ = logger.Sync() }()

	summary, err := harness.New(cfg, logger, harness.WithProgressWriter(stderr)).Run(cmd.Context())
	if err != nil {
		if isConfigError(err) {
			return withCode(exitConfigError, err)
		}
		return err
	}

	sinks := []output.Sink{output.WriterSink{W: stdout}}
	var reportErr error
	for _, path := range cfg.SummaryExport {
		fs, err := output.NewFileSink(path)
		if err != nil {
			reportErr = multierr.Append(reportErr, err)
			continue
		}
		sinks = append(sinks, fs)
	}
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			reportErr = multierr.Append(reportErr, err)
		} else {
			defer store.Close()
			sinks = append(sinks, history.Sink{Store: store})
		}
	}
	if err := output.Emit(summary, output.RenderOptions{Color: !cfg.NoColor}, sinks...); err != nil {
		reportErr = multierr.Append(reportErr, err)
	}
	if reportErr != nil {
		logger.Error("writing summary failed", zap.Error(reportErr))
	}

	switch {
	case summary.ThresholdErr != nil:
		return withCode(exitConfigError, summary.ThresholdErr)
	case !summary.Passed():
		return withCode(exitThresholdsFailed, nil)
	case reportErr != nil:
		return withCode(exitReportFailed, nil)
	}
	return nil
}

func isConfigError(err error) bool {
	var verr config.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, threshold.ErrConfiguration) ||
		errors.Is(err, metrics.ErrDuplicateMetric) ||
		errors.Is(err, runner.ErrInvalidStage)
}
