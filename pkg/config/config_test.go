package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := finish(Default())
	require.NoError(t, err)

	assert.Equal(t, selector.SizeAuto, cfg.PreferredModelSize())
	assert.False(t, cfg.PreferReasoning())
	assert.InDelta(t, 0.8, cfg.Resources.MemoryCeiling, 1e-9)
	assert.Equal(t, 200*time.Millisecond, cfg.Resources.SampleWindow)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Execute)
	assert.Greater(t, cfg.Timeouts.Decompose, cfg.Timeouts.Execute)
	assert.Equal(t, 2, cfg.Execution.MaxAgentsPerSize["moe-large"])
	assert.Equal(t, 4, cfg.Execution.MaxAgentsPerSize["small"])

	ref, ok := cfg.ModelFor(selector.SizeMoELarge)
	require.True(t, ok)
	assert.Equal(t, ModelRef{Provider: ProviderOllama, Name: "qwen3:235b-a22b"}, ref)

	costs := cfg.CostTable()
	assert.Equal(t, selector.DefaultCosts(), costs)
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Setenv("TEST_ADAM_KEY", "sk-test")

	cfg, err := Parse([]byte(`
preferred_model_size: 8b
prefer_reasoning_mode: true
resources:
  memory_ceiling: 0.6
  sample_window: 500ms
timeouts:
  execute: 30s
costs:
  reasoning_multiplier: 2
  tiers:
    medium: {memory: 0.25, cpu: 0.35}
execution:
  parallel: true
  max_agents_per_size:
    medium: 1
models:
  large:
    provider: anthropic
    name: claude-sonnet-4-5
  small:
    name: llama3.2:3b
providers:
  anthropic:
    api_key: ${TEST_ADAM_KEY}
resilience:
  retry:
    max_attempts: 5
`))
	require.NoError(t, err)

	assert.Equal(t, selector.SizeMedium, cfg.PreferredModelSize())
	assert.True(t, cfg.PreferReasoning())
	assert.InDelta(t, 0.6, cfg.Resources.MemoryCeiling, 1e-9)
	assert.InDelta(t, 0.8, cfg.Resources.CPUCeiling, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.Resources.SampleWindow)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Execute)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Synthesis)
	assert.True(t, cfg.Execution.Parallel)
	assert.Equal(t, 1, cfg.Execution.MaxAgentsPerSize["medium"])
	assert.Equal(t, 2, cfg.Execution.MaxAgentsPerSize["xlarge"])
	assert.Equal(t, "sk-test", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, 5, cfg.Resilience.Retry.MaxAttempts)
	assert.True(t, cfg.Resilience.Retry.Jitter)

	assert.Equal(t, ModelRef{Provider: ProviderAnthropic, Name: "claude-sonnet-4-5"}, cfg.Models["large"])
	assert.Equal(t, ModelRef{Provider: ProviderOllama, Name: "llama3.2:3b"}, cfg.Models["small"])
	assert.Equal(t, "qwen3:8b", cfg.Models["medium"].Name)

	costs := cfg.CostTable()
	assert.InDelta(t, 2.0, costs.ReasoningMultiplier, 1e-9)
	assert.Equal(t, selector.Cost{Memory: 0.25, CPU: 0.35}, costs.Tiers[selector.SizeMedium])
	assert.Equal(t, selector.Cost{Memory: 0.8, CPU: 0.8}, costs.Tiers[selector.SizeXLarge])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADAM_PREFERRED_MODEL_SIZE", "small")
	t.Setenv("ADAM_RESOURCES_CPU_CEILING", "0.5")
	t.Setenv("ADAM_TIMEOUTS_DECOMPOSE", "90s")
	t.Setenv("ADAM_EXECUTION_PARALLEL", "true")
	t.Setenv("ADAM_MODELS_MOE_LARGE_NAME", "qwen3:235b")
	t.Setenv("ADAM_EXECUTION_MAX_AGENTS_PER_SIZE_TINY", "9")
	t.Setenv("ADAM_LOGGING_DOMAINS", "decompose, selector")

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, selector.SizeSmall, cfg.PreferredModelSize())
	assert.InDelta(t, 0.5, cfg.Resources.CPUCeiling, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Decompose)
	assert.True(t, cfg.Execution.Parallel)
	assert.Equal(t, "qwen3:235b", cfg.Models["moe-large"].Name)
	assert.Equal(t, 9, cfg.Execution.MaxAgentsPerSize["tiny"])
	assert.Equal(t, []string{"decompose", "selector"}, cfg.Logging.Domains)
}

func TestSizeKeyAliases(t *testing.T) {
	cfg, err := Parse([]byte(`
costs:
  tiers:
    8b: {memory: 0.11, cpu: 0.12}
models:
  8b: {provider: openai, name: gpt-4o-mini}
  MoE_Large: {name: qwen3:235b}
execution:
  max_agents_per_size:
    8b: 1
    14B: 3
`))
	require.NoError(t, err)

	assert.NotContains(t, cfg.Models, "8b")
	assert.NotContains(t, cfg.Costs.Tiers, "8b")
	assert.NotContains(t, cfg.Execution.MaxAgentsPerSize, "8b")

	// Repeated conversions must agree; map order used to decide the winner.
	for range 50 {
		assert.Equal(t, selector.Cost{Memory: 0.11, CPU: 0.12}, cfg.CostTable().Tiers[selector.SizeMedium])
	}

	ref, ok := cfg.ModelFor(selector.SizeMedium)
	require.True(t, ok)
	assert.Equal(t, ModelRef{Provider: ProviderOpenAI, Name: "gpt-4o-mini"}, ref)

	ref, ok = cfg.ModelFor(selector.SizeMoELarge)
	require.True(t, ok)
	assert.Equal(t, ModelRef{Provider: ProviderOllama, Name: "qwen3:235b"}, ref)

	assert.Equal(t, 1, cfg.Execution.MaxAgentsPerSize["medium"])
	assert.Equal(t, 3, cfg.Execution.MaxAgentsPerSize["large"])
	assert.Equal(t, 4, cfg.Execution.MaxAgentsPerSize["small"])
}

func TestProviderKeysFromEnvironment(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "sk-openai")
	t.Setenv(EnvOllamaHost, "http://gpu-box:11434")

	cfg, err := Parse([]byte("providers: {}"))
	require.NoError(t, err)

	assert.Equal(t, "sk-openai", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:11434", cfg.Providers.Ollama.Host)

	cfg, err = Parse([]byte("providers: {ollama: {host: ''}}"))
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Providers.Ollama.Host)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad size", "preferred_model_size: enormous", "preferred_model_size"},
		{"ceiling above one", "resources: {memory_ceiling: 1.5}", "memory_ceiling"},
		{"zero timeout", "timeouts: {execute: 0s}", "timeouts must be positive"},
		{"keep bounds", "pruning: {min_keep: 8, max_keep: 4}", "min_keep <= max_keep"},
		{"unknown provider", "models: {medium: {provider: bedrock, name: x}}", `unknown provider "bedrock"`},
		{"unknown model size", "models: {gigantic: {provider: ollama, name: x}}", `unknown model size "gigantic"`},
		{"negative cost", "costs: {tiers: {small: {memory: -1, cpu: 0.1}}}", "non-negative"},
		{"multiplier below one", "costs: {reasoning_multiplier: 0.5}", "reasoning multiplier"},
		{"retry attempts", "resilience: {retry: {max_attempts: 0}}", "max_attempts"},
		{"alias collides with name", "costs: {tiers: {medium: {memory: 0.2, cpu: 0.2}, 8b: {memory: 0.3, cpu: 0.3}}}", `"8b" and "medium" both name model size medium`},
		{"alias collides with alias", "models: {MoE_Large: {name: a}, 235b-a22b: {name: b}}", "both name model size moe-large"},
		{"auto agent limit", "execution: {max_agents_per_size: {auto: 3}}", `unknown model size "auto"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("resources: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadAndFind(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	assert.Equal(t, "", FindConfigFile())
	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "", path)
	assert.Equal(t, selector.SizeAuto, cfg.PreferredModelSize())

	xdgPath := filepath.Join(dir, "xdg", "adam", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(xdgPath), 0o755))
	require.NoError(t, os.WriteFile(xdgPath, []byte("preferred_model_size: large\n"), 0o600))
	assert.Equal(t, xdgPath, FindConfigFile())

	require.NoError(t, os.WriteFile("adam.yaml", []byte("preferred_model_size: tiny\n"), 0o600))
	assert.Equal(t, "adam.yaml", FindConfigFile())

	cfg, path, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "adam.yaml", path)
	assert.Equal(t, selector.SizeTiny, cfg.PreferredModelSize())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
