// Package config loads the adam YAML configuration: model-size preferences,
// resource ceilings, stage timeouts, pruning and cost constants, the
// size-to-model mapping and backend credentials.
package config

import (
	"time"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/circuit"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/retry"
	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// Provider names.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// Environment variables consulted when a provider key is not set in the file.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// Config is the full adam configuration.
type Config struct {
	// ModelSize is "auto" or a tier name that replaces every policy choice.
	ModelSize string `yaml:"preferred_model_size"`
	// Reasoning forces reasoning mode on for every assignment.
	Reasoning bool `yaml:"prefer_reasoning_mode"`

	Resources  ResourcesConfig     `yaml:"resources"`
	Timeouts   TimeoutsConfig      `yaml:"timeouts"`
	Pruning    PruningConfig       `yaml:"pruning"`
	Costs      CostsConfig         `yaml:"costs"`
	Execution  ExecutionConfig     `yaml:"execution"`
	Models     map[string]ModelRef `yaml:"models"`
	Providers  ProvidersConfig     `yaml:"providers"`
	Resilience ResilienceConfig    `yaml:"resilience"`
	Metrics    MetricsConfig       `yaml:"metrics"`
	Logging    LoggingConfig       `yaml:"logging"`
}

// ResourcesConfig holds ceilings and fallbacks for the resource monitor.
type ResourcesConfig struct {
	MemoryCeiling  float64       `yaml:"memory_ceiling"`
	CPUCeiling     float64       `yaml:"cpu_ceiling"`
	SampleWindow   time.Duration `yaml:"sample_window"`
	FallbackMemory float64       `yaml:"fallback_memory"`
	FallbackCPU    float64       `yaml:"fallback_cpu"`
	WarnFraction   float64       `yaml:"warn_fraction"`
}

// TimeoutsConfig bounds each kind of backend call.
type TimeoutsConfig struct {
	Decompose time.Duration `yaml:"decompose"`
	Execute   time.Duration `yaml:"execute"`
	Synthesis time.Duration `yaml:"synthesis"`
}

// PruningConfig holds the resource-pressure pruning constants.
type PruningConfig struct {
	Threshold    int     `yaml:"threshold"`
	MemoryCutoff float64 `yaml:"memory_cutoff"`
	MinKeep      int     `yaml:"min_keep"`
	MaxKeep      int     `yaml:"max_keep"`
	PerMemory    float64 `yaml:"per_memory"`
}

// CostsConfig overrides the per-tier cost table.
type CostsConfig struct {
	ReasoningMultiplier float64                  `yaml:"reasoning_multiplier"`
	Tiers               map[string]selector.Cost `yaml:"tiers"`
}

// ExecutionConfig controls how subtasks are scheduled.
type ExecutionConfig struct {
	Parallel         bool           `yaml:"parallel"`
	MaxParallel      int            `yaml:"max_parallel"`
	MaxAgentsPerSize map[string]int `yaml:"max_agents_per_size"`
	DefaultMaxAgents int            `yaml:"default_max_agents"`
}

// ModelRef names the backend model serving one tier.
type ModelRef struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
}

// ProvidersConfig holds per-provider connection settings.
type ProvidersConfig struct {
	Ollama    OllamaConfig `yaml:"ollama"`
	Anthropic APIKeyConfig `yaml:"anthropic"`
	OpenAI    APIKeyConfig `yaml:"openai"`
	Google    APIKeyConfig `yaml:"google"`
}

// OllamaConfig points at an Ollama server.
type OllamaConfig struct {
	Host string `yaml:"host"`
}

// APIKeyConfig holds a hosted provider's credential.
type APIKeyConfig struct {
	APIKey string `yaml:"api_key"`
}

// ResilienceConfig configures the retry and circuit breaker middleware.
type ResilienceConfig struct {
	Retry   retry.Config   `yaml:"retry"`
	Circuit circuit.Config `yaml:"circuit"`
}

// MetricsConfig configures Prometheus export and read-back.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Listen        string `yaml:"listen"`
	PrometheusURL string `yaml:"prometheus_url"`
}

// LoggingConfig configures debug logging.
type LoggingConfig struct {
	Debug   bool     `yaml:"debug"`
	Domains []string `yaml:"domains"`
}

// DefaultModels maps every tier to the qwen3 family on Ollama.
func DefaultModels() map[string]ModelRef {
	models := make(map[string]ModelRef, len(selector.AllSizes))
	for _, size := range selector.AllSizes {
		models[string(size)] = ModelRef{Provider: ProviderOllama, Name: "qwen3:" + size.Label()}
	}
	return models
}

// Default returns the built-in configuration.
func Default() *Config {
	costs := selector.DefaultCosts()
	tiers := make(map[string]selector.Cost, len(costs.Tiers))
	for size, cost := range costs.Tiers {
		tiers[string(size)] = cost
	}

	perSize := make(map[string]int, len(selector.AllSizes))
	for _, size := range selector.AllSizes {
		perSize[string(size)] = 4
	}
	perSize[string(selector.SizeXLarge)] = 2
	perSize[string(selector.SizeMoELarge)] = 2

	mon := resources.DefaultConfig()
	return &Config{
		ModelSize: string(selector.SizeAuto),
		Resources: ResourcesConfig{
			MemoryCeiling:  mon.MemoryCeiling,
			CPUCeiling:     mon.CPUCeiling,
			SampleWindow:   mon.SampleWindow,
			FallbackMemory: mon.FallbackMemory,
			FallbackCPU:    mon.FallbackCPU,
			WarnFraction:   mon.WarnFraction,
		},
		Timeouts: TimeoutsConfig{
			Decompose: 120 * time.Second,
			Execute:   60 * time.Second,
			Synthesis: 120 * time.Second,
		},
		Pruning: PruningConfig{
			Threshold:    10,
			MemoryCutoff: 0.5,
			MinKeep:      5,
			MaxKeep:      10,
			PerMemory:    20,
		},
		Costs: CostsConfig{
			ReasoningMultiplier: costs.ReasoningMultiplier,
			Tiers:               tiers,
		},
		Execution: ExecutionConfig{
			MaxParallel:      4,
			MaxAgentsPerSize: perSize,
			DefaultMaxAgents: 4,
		},
		Models: DefaultModels(),
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{Host: "http://localhost:11434"},
		},
		Resilience: ResilienceConfig{
			Retry:   retry.DefaultConfig,
			Circuit: circuit.DefaultConfig,
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
	}
}

// PreferredModelSize returns the configured override, SizeAuto when unset or invalid.
func (c *Config) PreferredModelSize() selector.ModelSize {
	size, err := selector.ParseModelSize(c.ModelSize)
	if err != nil {
		return selector.SizeAuto
	}
	return size
}

// PreferReasoning reports whether reasoning mode is forced on.
func (c *Config) PreferReasoning() bool {
	return c.Reasoning
}

// MonitorConfig converts the resources section for the resource monitor.
func (c *Config) MonitorConfig() resources.Config {
	return resources.Config{
		MemoryCeiling:  c.Resources.MemoryCeiling,
		CPUCeiling:     c.Resources.CPUCeiling,
		SampleWindow:   c.Resources.SampleWindow,
		FallbackMemory: c.Resources.FallbackMemory,
		FallbackCPU:    c.Resources.FallbackCPU,
		WarnFraction:   c.Resources.WarnFraction,
	}
}

// CostTable converts the costs section for the selector.
func (c *Config) CostTable() selector.Costs {
	costs := selector.Costs{
		Tiers:               make(map[selector.ModelSize]selector.Cost, len(c.Costs.Tiers)),
		ReasoningMultiplier: c.Costs.ReasoningMultiplier,
	}
	for name, cost := range c.Costs.Tiers {
		size, err := selector.ParseModelSize(name)
		if err != nil || size == selector.SizeAuto {
			continue
		}
		costs.Tiers[size] = cost
	}
	return costs
}

// ModelFor returns the backend model serving size.
func (c *Config) ModelFor(size selector.ModelSize) (ModelRef, bool) {
	ref, ok := c.Models[string(size)]
	return ref, ok
}
