package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
)

// RegisterFlags registers all run flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vuramp run",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Profile flags
	flags.StringArray("stage", nil, "Load stage as duration:target, e.g. 30s:10 (repeatable, replaces configured stages)")
	flags.StringToString("base-url", nil, "Named base URL as name=url (repeatable); 'default' is used by requests without a base")
	flags.StringArray("threshold", nil, "Threshold as metric:expression, e.g. 'http_req_duration:p(95) < 500' (repeatable)")
	flags.Int("max-rps", 0, "Global request rate cap across all VUs (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Duration("graceful-stop", runner.DefaultGracefulStop, "Time to let in-flight iterations finish after the last stage")
	flags.Int64("seed", 0, "Seed for think-time randomness (0 picks one from the clock)")
	flags.Duration("tick", runner.DefaultTickInterval, "Scheduler tick interval")

	// Output flags
	flags.StringArray("summary-export", nil, "Write the summary document to this path; .json, .yaml or .yml (repeatable)")
	flags.Bool("no-color", false, "Disable ANSI colours in the summary")
	flags.BoolP("quiet", "q", false, "Suppress live progress output")
	flags.Bool("log-errors", false, "Log each failed request and iteration")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9090")
	flags.String("history-db", "", "Record the run summary in this history database")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables request tracing")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of iterations to sample (0.0-1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("stage") {
		vals, err := fs.GetStringArray("stage")
		if err != nil {
			return err
		}
		stages := make([]runner.Stage, 0, len(vals))
		for _, v := range vals {
			st, err := ParseStage(v)
			if err != nil {
				return err
			}
			stages = append(stages, st)
		}
		cfg.Stages = stages
	}
	if fs.Changed("base-url") {
		vals, err := fs.GetStringToString("base-url")
		if err != nil {
			return err
		}
		for name, u := range vals {
			cfg.BaseURLs[strings.TrimSpace(name)] = strings.TrimSpace(u)
		}
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		for _, v := range vals {
			th, err := threshold.ParseCombined(v)
			if err != nil {
				return err
			}
			cfg.Thresholds[th.Metric] = append(cfg.Thresholds[th.Metric], threshold.Spec{Expr: th.Raw})
		}
	}
	if fs.Changed("max-rps") {
		val, err := fs.GetInt("max-rps")
		if err != nil {
			return err
		}
		cfg.MaxRPS = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("graceful-stop") {
		val, err := fs.GetDuration("graceful-stop")
		if err != nil {
			return err
		}
		cfg.GracefulStop = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("tick") {
		val, err := fs.GetDuration("tick")
		if err != nil {
			return err
		}
		cfg.Tick = val
	}
	if fs.Changed("summary-export") {
		val, err := fs.GetStringArray("summary-export")
		if err != nil {
			return err
		}
		cfg.SummaryExport = val
	}
	for name, dst := range map[string]*bool{
		"no-color":         &cfg.NoColor,
		"quiet":            &cfg.Quiet,
		"log-errors":       &cfg.LogErrors,
		"tracing-insecure": &cfg.Tracing.Insecure,
	} {
		if fs.Changed(name) {
			val, err := fs.GetBool(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}
	for name, dst := range map[string]*string{
		"log-level":        &cfg.LogLevel,
		"log-format":       &cfg.LogFormat,
		"metrics-addr":     &cfg.MetricsAddr,
		"history-db":       &cfg.HistoryDB,
		"tracing-endpoint": &cfg.Tracing.Endpoint,
		"tracing-protocol": &cfg.Tracing.Protocol,
	} {
		if fs.Changed(name) {
			val, err := fs.GetString(name)
			if err != nil {
				return err
			}
			*dst = strings.TrimSpace(val)
		}
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}
