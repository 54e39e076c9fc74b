package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/metrics"
	"github.com/theinterneti/augment-adam-sub002/pkg/aggregate"
	"github.com/theinterneti/augment-adam-sub002/pkg/config"
	"github.com/theinterneti/augment-adam-sub002/pkg/decompose"
	"github.com/theinterneti/augment-adam-sub002/pkg/limiter"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/orchestra"
	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
	"github.com/theinterneti/augment-adam-sub002/pkg/runner"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// newBackend builds the client every stage talks to; replaced in tests.
//
//nolint:gochecknoglobals // test seam
var newBackend = func(f *agent.LLMClientFactory) llm.LLMClient {
	return f.Backend()
}

// app is the wired pipeline for one CLI invocation.
type app struct {
	cfg        *config.Config
	configPath string

	factory  *agent.LLMClientFactory
	limiter  *limiter.Limiter
	monitor  resources.Provider
	registry *prometheus.Registry
	orch     *orchestra.Orchestrator
	logger   *logx.Logger
}

// appOptions are per-command overrides on top of the config file.
type appOptions struct {
	parallel    bool
	maxParallel int
	withMetrics bool
	// contextFile is handed to workspace-aware agents as surrounding context.
	contextFile string
}

func newApp(opts *globalOptions, overrides appOptions, logOut io.Writer) (*app, error) {
	cfg, path, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err //nolint:wrapcheck // loader errors name the file
	}

	configureLogging(cfg, opts.debug, logOut)
	logger := logx.NewLogger("adam")
	if path != "" {
		logger.Debug("loaded config from %s", path)
	}

	a := &app{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		registry:   prometheus.NewRegistry(),
	}

	var recorder metrics.Recorder
	var pipelineMetrics *orchestra.Metrics
	if overrides.withMetrics || cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(a.registry)
		pipelineMetrics = orchestra.NewMetrics(a.registry)
	}

	a.factory = agent.NewLLMClientFactory(cfg, recorder, logger.WithComponent("backend"))
	a.limiter = limiter.NewLimiter(cfg.Execution.MaxAgentsPerSize, cfg.Execution.DefaultMaxAgents)
	a.monitor = newMonitor(cfg, opts, a.limiter, logger)

	backend := newBackend(a.factory)
	medium := a.factory.ModelName(selector.SizeMedium)

	dec, err := decompose.New(backend,
		decompose.WithModel(medium),
		decompose.WithTimeout(cfg.Timeouts.Decompose),
		decompose.WithPruneConfig(decompose.PruneConfig{
			Threshold:    cfg.Pruning.Threshold,
			MemoryCutoff: cfg.Pruning.MemoryCutoff,
			MinKeep:      cfg.Pruning.MinKeep,
			MaxKeep:      cfg.Pruning.MaxKeep,
			PerMemory:    cfg.Pruning.PerMemory,
		}),
		decompose.WithLogger(logger.WithComponent("decompose")),
	)
	if err != nil {
		return nil, fmt.Errorf("create decomposer: %w", err)
	}

	var workspace runner.ContextProvider
	if overrides.contextFile != "" {
		text, err := os.ReadFile(overrides.contextFile)
		if err != nil {
			return nil, fmt.Errorf("read context file: %w", err)
		}
		workspace = runner.StaticContext(text)
	}

	runners, err := runner.NewRegistry(runner.Config{
		Client:  backend,
		Models:  a.factory,
		Timeout: cfg.Timeouts.Execute,
		Context: workspace,
		Slots:   a.limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create runners: %w", err)
	}

	agg, err := aggregate.New(backend,
		aggregate.WithModel(medium),
		aggregate.WithTimeout(cfg.Timeouts.Synthesis),
		aggregate.WithLogger(logger.WithComponent("aggregate")),
	)
	if err != nil {
		return nil, fmt.Errorf("create aggregator: %w", err)
	}

	parallel := cfg.Execution.Parallel || overrides.parallel
	maxParallel := cfg.Execution.MaxParallel
	if overrides.maxParallel > 0 {
		maxParallel = overrides.maxParallel
	}

	a.orch, err = orchestra.New(orchestra.Deps{
		Monitor:    a.monitor,
		Decomposer: dec,
		Selector: selector.New(
			selector.WithCosts(cfg.CostTable()),
			selector.WithPreferences(cfg),
			selector.WithLogger(logger.WithComponent("selector")),
		),
		Runner:      runners,
		Aggregator:  agg,
		Parallel:    parallel,
		MaxParallel: maxParallel,
		Metrics:     pipelineMetrics,
		Logger:      logger.WithComponent("orchestra"),
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // construction errors are already descriptive
	}
	return a, nil
}

// newMonitor samples the host. --memory and --cpu pin their own resource and
// leave the other one sampled; pinning both skips sampling entirely.
func newMonitor(cfg *config.Config, opts *globalOptions, counter resources.AgentCounter, logger *logx.Logger) resources.Provider {
	if opts.memory >= 0 && opts.cpu >= 0 {
		return resources.Pinned{
			Base:   resources.Static{Agents: counter},
			Memory: opts.memory,
			CPU:    opts.cpu,
		}
	}
	monitor := resources.NewMonitor(cfg.MonitorConfig(),
		resources.WithAgentCounter(counter),
		resources.WithLogger(logger.WithComponent("resources")),
	)
	if !opts.staticResources() {
		return monitor
	}
	return resources.Pinned{Base: monitor, Memory: opts.memory, CPU: opts.cpu}
}

// configureLogging routes log lines to out only when debugging; everything is
// still buffered for --show-log.
func configureLogging(cfg *config.Config, debug bool, out io.Writer) {
	debug = debug || cfg.Logging.Debug
	logx.SetDebugConfig(debug)
	if len(cfg.Logging.Domains) > 0 {
		logx.SetDebugDomains(cfg.Logging.Domains)
	}
	if debug {
		logx.SetOutput(out)
		return
	}
	logx.SetOutput(io.Discard)
}
