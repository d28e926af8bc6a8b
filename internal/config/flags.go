package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hbench [flags] <url>",
		Short:         "Concurrent HTTP GET load generator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Load control flags
	flags.IntP("requests", "n", DefaultTotal, "Total number of requests to send")
	flags.IntP("concurrency", "c", DefaultConcurrency, "Number of concurrent workers")
	flags.StringP("timelimit", "t", "", "Stop issuing requests after this long (seconds or a duration such as 30s); implies -n 5000")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Int("rate", 0, "Requests per second limit (0 means unlimited)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing requests (uniform or poisson)")
	flags.Int("retries", 0, "Number of retries per request for refused connections and 5xx/429 responses")
	flags.Duration("graceful-shutdown", DefaultGracefulShutdown, "Max time to wait for in-flight requests after the run is cancelled")

	// Request flags
	flags.StringP("auth", "A", "", "Value sent as the Authorization header")
	flags.StringSlice("header", nil, "Additional request header in key=value form (repeatable)")
	flags.Bool("skip-preflight", false, "Skip resolving the target host before starting")

	// Output flags
	flags.StringP("graph", "g", "", "Write a latency graph to this file (.png, .svg, .pdf, .html, ...)")
	flags.String("output", string(OutputText), "Summary format: text, json or yaml")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("log-level", "warn", "Diagnostic log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Diagnostic log format (console or json)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'latency:p95 < 500')")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing flags
	flags.String("otel-endpoint", "", "OTLP collector endpoint for request traces")
	flags.String("otel-protocol", "grpc", "OTLP protocol (grpc or http)")
	flags.Bool("otel-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("otel-sample-rate", 1.0, "Fraction of requests to trace (0.0 to 1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// parseSeconds accepts a bare number of seconds or a Go duration string.
func parseSeconds(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%q: expected seconds or a duration", raw)
	}
	return d, nil
}

// parseHeaderEntry splits a key=value header flag.
func parseHeaderEntry(entry string) (string, string, error) {
	parts := strings.SplitN(entry, "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("header must be in key=value format: %s", entry)
	}
	key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
	if key == "" {
		return "", "", fmt.Errorf("header key cannot be empty")
	}
	return key, strings.TrimSpace(parts[1]), nil
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("requests") {
		val, err := fs.GetInt("requests")
		if err != nil {
			return err
		}
		cfg.Total = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("timelimit") {
		val, err := fs.GetString("timelimit")
		if err != nil {
			return err
		}
		d, err := parseSeconds(val)
		if err != nil {
			return fmt.Errorf("timelimit: %w", err)
		}
		cfg.TimeLimit = d
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("graceful-shutdown") {
		val, err := fs.GetDuration("graceful-shutdown")
		if err != nil {
			return err
		}
		cfg.GracefulShutdown = val
	}
	if fs.Changed("auth") {
		val, err := fs.GetString("auth")
		if err != nil {
			return err
		}
		cfg.Auth = val
	}
	if fs.Changed("skip-preflight") {
		val, err := fs.GetBool("skip-preflight")
		if err != nil {
			return err
		}
		cfg.SkipPreflight = val
	}
	if fs.Changed("graph") {
		val, err := fs.GetString("graph")
		if err != nil {
			return err
		}
		cfg.GraphFile = strings.TrimSpace(val)
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			key, value, err := parseHeaderEntry(entry)
			if err != nil {
				return err
			}
			cfg.Headers[key] = value
		}
	}

	if fs.Changed("otel-endpoint") {
		val, err := fs.GetString("otel-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otel-protocol") {
		val, err := fs.GetString("otel-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("otel-insecure") {
		val, err := fs.GetBool("otel-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("otel-sample-rate") {
		val, err := fs.GetFloat64("otel-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
