package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// EnvPrefix prefixes environment overrides, e.g. ADAM_RESOURCES_MEMORY_CEILING.
const EnvPrefix = "ADAM_"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a YAML config file over the defaults. ${VAR} placeholders are
// replaced before parsing (unset variables become empty), then ADAM_*
// environment overrides, defaults and validation are applied.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	// Size-keyed maps start empty so that the file's own keys can be
	// canonicalized before the defaults are merged back in.
	config := Default()
	config.Models = nil
	config.Costs.Tiers = nil
	config.Execution.MaxAgentsPerSize = nil
	if err := yaml.Unmarshal([]byte(dataStr), config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return finish(config)
}

// LoadOrDefault loads path, or the first file FindConfigFile locates when path
// is empty, or the defaults when there is no file at all.
func LoadOrDefault(path string) (*Config, string, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		config, err := finish(Default())
		return config, "", err
	}
	config, err := Load(path)
	return config, path, err
}

func finish(config *Config) (*Config, error) {
	if err := canonicalizeSizeKeys(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w: %w", ErrInvalidConfig, err)
	}
	mergeSizeDefaults(config)
	applyEnvOverrides(config)
	applyDefaults(config)
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// FindConfigFile returns ./adam.yaml, ./adam.yml or
// $XDG_CONFIG_HOME/adam/config.yaml, whichever exists first, or "".
func FindConfigFile() string {
	candidates := []string{"adam.yaml", "adam.yml"}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		candidates = append(candidates, filepath.Join(configHome, "adam", "config.yaml"))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// canonicalizeSizeKeys rewrites alias keys such as "8b" or "MoE_Large" in
// every size-keyed map to the canonical size name. Keys that do not parse are
// left alone for validateConfig to report.
func canonicalizeSizeKeys(config *Config) error {
	var err error
	var errs []error
	if config.Models, err = canonicalSizeMap("models", config.Models); err != nil {
		errs = append(errs, err)
	}
	if config.Costs.Tiers, err = canonicalSizeMap("costs.tiers", config.Costs.Tiers); err != nil {
		errs = append(errs, err)
	}
	if config.Execution.MaxAgentsPerSize, err = canonicalSizeMap("execution.max_agents_per_size", config.Execution.MaxAgentsPerSize); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func canonicalSizeMap[V any](section string, m map[string]V) (map[string]V, error) {
	if m == nil {
		return nil, nil
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]V, len(m))
	from := make(map[string]string, len(m))
	for _, name := range names {
		key := name
		if size, err := selector.ParseModelSize(name); err == nil && size != selector.SizeAuto {
			key = string(size)
		}
		if prev, ok := from[key]; ok {
			return nil, fmt.Errorf("%s: %q and %q both name model size %s", section, prev, name, key)
		}
		from[key] = name
		out[key] = m[name]
	}
	return out, nil
}

// mergeSizeDefaults adds the default entry for every size the file left out,
// so environment overrides such as ADAM_MODELS_LARGE_NAME find their key.
func mergeSizeDefaults(config *Config) {
	defaults := Default()
	config.Models = mergeMissing(config.Models, defaults.Models)
	config.Costs.Tiers = mergeMissing(config.Costs.Tiers, defaults.Costs.Tiers)
	config.Execution.MaxAgentsPerSize = mergeMissing(config.Execution.MaxAgentsPerSize, defaults.Execution.MaxAgentsPerSize)
}

func mergeMissing[V any](dst, defaults map[string]V) map[string]V {
	if dst == nil {
		dst = make(map[string]V, len(defaults))
	}
	for key, value := range defaults {
		if _, ok := dst[key]; !ok {
			dst[key] = value
		}
	}
	return dst
}

func applyEnvOverrides(config *Config) {
	v := reflect.ValueOf(config).Elem()
	applyEnvOverridesRecursive(v, v.Type(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, t reflect.Type, prefix string) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		fieldName := strings.Split(yamlTag, ",")[0]
		envKey := strings.ToUpper(prefix + fieldName)

		switch {
		case field.Kind() == reflect.Struct:
			applyEnvOverridesRecursive(field, field.Type(), envKey+"_")
		case field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String:
			// Only keys already present can be overridden, e.g. ADAM_MODELS_MEDIUM_NAME.
			for _, key := range field.MapKeys() {
				mapKey := envKey + "_" + strings.ToUpper(strings.ReplaceAll(key.String(), "-", "_"))
				mapValue := field.MapIndex(key)
				elem := reflect.New(mapValue.Type()).Elem()
				elem.Set(mapValue)
				if elem.Kind() == reflect.Struct {
					applyEnvOverridesRecursive(elem, elem.Type(), mapKey+"_")
				} else if envValue := os.Getenv(mapKey); envValue != "" {
					setFieldFromEnv(elem, envValue)
				}
				field.SetMapIndex(key, elem)
			}
		default:
			if envValue := os.Getenv(envKey); envValue != "" {
				setFieldFromEnv(field, envValue)
			}
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Bool:
		if val, err := strconv.ParseBool(envValue); err == nil {
			field.SetBool(val)
		}
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if val, err := time.ParseDuration(envValue); err == nil {
				field.SetInt(int64(val))
			}
			return
		}
		if val, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			field.SetInt(val)
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(envValue, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
}

// applyDefaults fills gaps the YAML could not: credentials from the
// environment and missing fields inside map entries.
func applyDefaults(config *Config) {
	defaults := Default()

	if config.ModelSize == "" {
		config.ModelSize = string(selector.SizeAuto)
	}

	if config.Providers.Ollama.Host == "" {
		config.Providers.Ollama.Host = os.Getenv(EnvOllamaHost)
	}
	if config.Providers.Ollama.Host == "" {
		config.Providers.Ollama.Host = defaults.Providers.Ollama.Host
	}
	if config.Providers.Anthropic.APIKey == "" {
		config.Providers.Anthropic.APIKey = os.Getenv(EnvAnthropicAPIKey)
	}
	if config.Providers.OpenAI.APIKey == "" {
		config.Providers.OpenAI.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if config.Providers.Google.APIKey == "" {
		config.Providers.Google.APIKey = os.Getenv(EnvGoogleAPIKey)
	}

	if config.Models == nil {
		config.Models = make(map[string]ModelRef)
	}
	for size, ref := range defaults.Models {
		current, ok := config.Models[size]
		if !ok {
			config.Models[size] = ref
			continue
		}
		if current.Provider == "" {
			current.Provider = ProviderOllama
		}
		if current.Name == "" && current.Provider == ref.Provider {
			current.Name = ref.Name
		}
		config.Models[size] = current
	}

	if config.Costs.Tiers == nil {
		config.Costs.Tiers = make(map[string]selector.Cost)
	}
	for size, cost := range defaults.Costs.Tiers {
		if _, ok := config.Costs.Tiers[size]; !ok {
			config.Costs.Tiers[size] = cost
		}
	}

	if config.Execution.MaxAgentsPerSize == nil {
		config.Execution.MaxAgentsPerSize = defaults.Execution.MaxAgentsPerSize
	}
	if config.Execution.MaxParallel <= 0 {
		config.Execution.MaxParallel = defaults.Execution.MaxParallel
	}
	if config.Metrics.Listen == "" {
		config.Metrics.Listen = defaults.Metrics.Listen
	}
}

func validateConfig(config *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := selector.ParseModelSize(config.ModelSize); err != nil {
		fail("preferred_model_size: %w", err)
	}

	r := config.Resources
	if r.MemoryCeiling <= 0 || r.MemoryCeiling > 1 {
		fail("resources.memory_ceiling must be in (0,1], got %v", r.MemoryCeiling)
	}
	if r.CPUCeiling <= 0 || r.CPUCeiling > 1 {
		fail("resources.cpu_ceiling must be in (0,1], got %v", r.CPUCeiling)
	}
	if r.SampleWindow <= 0 {
		fail("resources.sample_window must be positive")
	}
	if r.FallbackMemory < 0 || r.FallbackMemory > 1 || r.FallbackCPU < 0 || r.FallbackCPU > 1 {
		fail("resources fallbacks must be in [0,1]")
	}
	if r.WarnFraction <= 0 || r.WarnFraction > 1 {
		fail("resources.warn_fraction must be in (0,1], got %v", r.WarnFraction)
	}

	if config.Timeouts.Decompose <= 0 || config.Timeouts.Execute <= 0 || config.Timeouts.Synthesis <= 0 {
		fail("timeouts must be positive")
	}

	p := config.Pruning
	if p.MinKeep < 1 || p.MaxKeep < p.MinKeep {
		fail("pruning requires 1 <= min_keep <= max_keep, got %d/%d", p.MinKeep, p.MaxKeep)
	}
	if p.Threshold < 0 || p.PerMemory < 0 || p.MemoryCutoff < 0 || p.MemoryCutoff > 1 {
		fail("pruning threshold, per_memory and memory_cutoff must be non-negative (cutoff <= 1)")
	}

	for name := range config.Costs.Tiers {
		if size, err := selector.ParseModelSize(name); err != nil || size == selector.SizeAuto {
			fail("costs.tiers: unknown model size %q", name)
		}
	}
	if err := config.CostTable().Validate(); err != nil {
		fail("costs: %w", err)
	}

	for name, ref := range config.Models {
		if size, err := selector.ParseModelSize(name); err != nil || size == selector.SizeAuto {
			fail("models: unknown model size %q", name)
			continue
		}
		switch ref.Provider {
		case ProviderOllama, ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		default:
			fail("models.%s: unknown provider %q", name, ref.Provider)
		}
		if ref.Name == "" {
			fail("models.%s: name is required", name)
		}
	}

	for name, n := range config.Execution.MaxAgentsPerSize {
		if size, err := selector.ParseModelSize(name); err != nil || size == selector.SizeAuto {
			fail("execution.max_agents_per_size: unknown model size %q", name)
		}
		if n < 0 {
			fail("execution.max_agents_per_size.%s must be non-negative", name)
		}
	}

	if config.Resilience.Retry.MaxAttempts < 1 {
		fail("resilience.retry.max_attempts must be >= 1")
	}
	if config.Resilience.Circuit.FailureThreshold < 1 || config.Resilience.Circuit.SuccessThreshold < 1 {
		fail("resilience.circuit thresholds must be >= 1")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
