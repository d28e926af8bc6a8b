package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hbench/hbench/internal/config"
	"github.com/hbench/hbench/internal/dashboard"
	"github.com/hbench/hbench/internal/httpclient"
	"github.com/hbench/hbench/internal/logging"
	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/output"
	"github.com/hbench/hbench/internal/runner"
	"github.com/hbench/hbench/internal/threshold"
	"github.com/hbench/hbench/internal/tracing"
)

const (
	progressInterval = time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// errThresholdsFailed makes the process exit with status 2.
var errThresholdsFailed = errors.New("thresholds failed")

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errThresholdsFailed):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(&logging.Config{Level: cfg.LogLevel, Encoding: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.SafeSync()
	log := logger.WithComponent("cli")
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	if cfg.GraphFile != "" {
		if err := output.CheckGraphPath(cfg.GraphFile); err != nil {
			return err
		}
	}

	if !cfg.SkipPreflight {
		if err := httpclient.Preflight(ctx, cfg.TargetURL, nil); err != nil {
			return err
		}
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("flushing traces failed", zap.Error(err))
		}
	}()

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return err
	}
	var execOpts []httpclient.ExecutorOption
	if provider.Enabled() {
		execOpts = append(execOpts, httpclient.WithTracer(provider.Tracer(), provider.ShouldPropagate()))
	}
	var exec runner.Executor = httpclient.NewExecutor(httpclient.NewClient(cfg.Timeout), builder, execOpts...)
	if cfg.LogErrors || logger.IsDebugEnabled() {
		exec = runner.WithLogging(exec, newFailureLogger(logger, cfg.LogErrors))
	}
	if cfg.Retries > 0 {
		exec = runner.WithRetry(exec, newRetryPolicy(cfg.Retries))
	}

	collector := metrics.NewCollector()
	r, err := runner.New(runner.Options{
		Total:            cfg.Total,
		Concurrency:      cfg.Concurrency,
		Executor:         exec,
		Collector:        collector,
		Target:           cfg.TargetURL,
		TimeLimit:        cfg.TimeLimit,
		GracefulShutdown: cfg.GracefulShutdown,
		RatePerSecond:    cfg.Rate,
		ArrivalModel:     toRunnerArrivalModel(cfg.Arrival.Model),
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewPrometheusExporter()
		addr, err := exporter.Start(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
		exporter.SetWorkers(r.Workers())
		collector.AddObserver(exporter)
		log.Info("serving prometheus metrics", zap.String("addr", addr.String()))
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	machineOutput := cfg.Output == config.OutputJSON || cfg.Output == config.OutputYAML
	stopLive, err := startLiveView(cfg, collector, cancelRun, machineOutput, stdout)
	if err != nil {
		return err
	}

	log.Debug("starting run",
		zap.String("target", cfg.TargetURL),
		zap.Int("requests", cfg.Total),
		zap.Int("workers", r.Workers()),
	)
	report, runErr := r.Run(runCtx)
	stopLive()
	if runErr != nil {
		return runErr
	}
	runLog := log.WithFields(zap.String("run_id", report.RunID))
	if report.Cancelled {
		runLog.Info("run stopped before the request budget was spent",
			zap.Int64("issued", report.Total),
			zap.Int64("requested", report.Requested),
		)
	}

	switch cfg.Output {
	case config.OutputJSON:
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	case config.OutputYAML:
		if err := output.PrintYAMLReport(stdout, report); err != nil {
			return err
		}
	default:
		output.PrintReport(stdout, report)
	}

	var results []threshold.Result
	if len(thresholds) > 0 {
		results = threshold.NewEvaluator(thresholds).Evaluate(report)
		thresholdOut := stdout
		if machineOutput {
			thresholdOut = stderr
		}
		output.PrintThresholdResults(thresholdOut, results)
	}

	if cfg.GraphFile != "" {
		meta := output.NewGraphMeta(cfg.GraphFile, cfg.TargetURL, cfg.Concurrency)
		meta.Thresholds = results
		if err := output.RenderGraph(cfg.GraphFile, report, meta); err != nil {
			return err
		}
		runLog.Info("graph written", zap.String("path", cfg.GraphFile))
	}

	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

// startLiveView starts the dashboard or the progress line and returns the
// function that stops it. Machine-readable output gets neither.
func startLiveView(cfg *config.Config, collector *metrics.Collector, cancelRun context.CancelFunc, machineOutput bool, stdout io.Writer) (func(), error) {
	if cfg.Dashboard {
		dash, err := dashboard.New(collector, dashboard.RunInfo{
			TargetURL:   cfg.TargetURL,
			Requests:    cfg.Total,
			Concurrency: cfg.Concurrency,
			TimeLimit:   cfg.TimeLimit,
			Rate:        cfg.Rate,
			Timeout:     cfg.Timeout,
			Retries:     cfg.Retries,
			ConfigFile:  cfg.ConfigFile,
		}, cancelRun)
		if err != nil {
			return nil, err
		}
		dash.Start()
		return dash.Stop, nil
	}
	if machineOutput {
		return func() {}, nil
	}

	fmt.Fprintf(stdout, "Benchmarking %s\n", cfg.TargetURL)
	progress := output.NewProgressReporter(collector, int64(cfg.Total), progressInterval, stdout)
	progress.Start()
	return progress.Stop, nil
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch model {
	case config.ArrivalModelPoisson:
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}

// newRetryPolicy backs off exponentially from baseRetryDelay with up to 50% jitter.
func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: runner.DefaultShouldRetry,
		DelayFunc: func(attempt int, _ metrics.Outcome) time.Duration {
			return retryBackoff(attempt) + source.jitter(retryBackoff(attempt)/2)
		},
	}
}

func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return maxRetryDelay
	}
	backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
	if backoff > maxRetryDelay {
		backoff = maxRetryDelay
	}
	return backoff
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
