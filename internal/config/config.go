// Package config loads hbench run configuration from flags and an optional config file.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultTotal            = 100
	DefaultConcurrency      = 10
	DefaultTimeout          = 10 * time.Second
	DefaultGracefulShutdown = 5 * time.Second
	// TimeLimitTotal is the request count a time-limited run uses when no count is given.
	TimeLimitTotal = 5000
)

type Config struct {
	TargetURL        string            `mapstructure:"target"`
	Total            int               `mapstructure:"requests"`
	Concurrency      int               `mapstructure:"concurrency"`
	GraphFile        string            `mapstructure:"graph"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	TimeLimit        time.Duration     `mapstructure:"timelimit"`
	Auth             string            `mapstructure:"auth"`
	Headers          map[string]string `mapstructure:"headers"`
	Rate             int               `mapstructure:"rate"`
	Arrival          ArrivalConfig     `mapstructure:"arrival"`
	Retries          int               `mapstructure:"retries"`
	GracefulShutdown time.Duration     `mapstructure:"graceful_shutdown"`
	Output           OutputFormat      `mapstructure:"output"`
	Dashboard        bool              `mapstructure:"dashboard"`
	LogErrors        bool              `mapstructure:"log_errors"`
	LogLevel         string            `mapstructure:"log_level"`
	LogFormat        string            `mapstructure:"log_format"`
	MetricsAddr      string            `mapstructure:"metrics_addr"`
	Thresholds       []string          `mapstructure:"thresholds"`
	Tracing          TracingConfig     `mapstructure:"tracing"`
	SkipPreflight    bool              `mapstructure:"skip_preflight"`
	ConfigFile       string            `mapstructure:"-"`
}

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// TracingConfig controls OpenTelemetry export. Tracing is off unless an endpoint is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
	// Propagate overrides W3C header injection; nil follows Enabled.
	Propagate *bool `mapstructure:"propagate"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// NormalizeTarget prefixes http:// when the target carries no scheme.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || strings.Contains(target, "://") {
		return target
	}
	return "http://" + target
}

// normalize trims free-form values, lowercases enumerations, canonicalizes
// header names and prefixes a scheme onto the target.
func (c *Config) normalize() {
	c.TargetURL = NormalizeTarget(c.TargetURL)
	c.GraphFile = strings.TrimSpace(c.GraphFile)
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)
	c.Output = OutputFormat(strings.ToLower(strings.TrimSpace(string(c.Output))))
	c.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(string(c.Arrival.Model))))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	c.Tracing.Protocol = strings.ToLower(strings.TrimSpace(c.Tracing.Protocol))
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)

	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[http.CanonicalHeaderKey(strings.TrimSpace(k))] = v
	}
	c.Headers = headers
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target URL is required (use --help for usage information)")
	} else if issue := validateTarget(c.TargetURL); issue != "" {
		issues = append(issues, issue)
	}

	if c.Total < 1 {
		issues = append(issues, "requests (-n) must be >= 1")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency (-c) must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.TimeLimit < 0 {
		issues = append(issues, "timelimit must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.GracefulShutdown < 0 {
		issues = append(issues, "graceful-shutdown must be >= 0")
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q is not supported (text, json or yaml)", c.Output))
	}
	if c.Dashboard && c.Output != "" && c.Output != OutputText {
		issues = append(issues, "dashboard and machine-readable output are mutually exclusive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format %q is not supported (console or json)", c.LogFormat))
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but aggressive enough to call out
// before the run starts.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("high rate limit configured (%d RPS); ensure you have authorization to test the target system", c.Rate))
	}
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("high concurrency configured (%d workers); ensure you have authorization to test the target system", c.Concurrency))
	}
	return warnings
}

func validateTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Sprintf("target URL %q is invalid: %v", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("target URL scheme %q is not supported (http or https)", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Sprintf("target URL %q has no host", target)
	}
	return ""
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
