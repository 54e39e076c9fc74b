package selector

import (
	"fmt"
	"strings"
)

// ModelSize is a backend capacity tier.
type ModelSize string

const (
	SizeTiny     ModelSize = "tiny"      // 0.6b
	SizeMini     ModelSize = "mini"      // 1.7b
	SizeSmall    ModelSize = "small"     // 4b
	SizeMedium   ModelSize = "medium"    // 8b
	SizeLarge    ModelSize = "large"     // 14b
	SizeMoESmall ModelSize = "moe-small" // 30b total, 3b active
	SizeXLarge   ModelSize = "xlarge"    // 32b
	SizeMoELarge ModelSize = "moe-large" // 235b total, 22b active

	// SizeAuto is the preference value that keeps the policy table's choice.
	SizeAuto ModelSize = "auto"
)

// AllSizes lists every tier from smallest to largest nominal parameter count.
//
//nolint:gochecknoglobals
var AllSizes = []ModelSize{
	SizeTiny,
	SizeMini,
	SizeSmall,
	SizeMedium,
	SizeLarge,
	SizeMoESmall,
	SizeXLarge,
	SizeMoELarge,
}

//nolint:gochecknoglobals
var sizeLabels = map[string]ModelSize{
	"0.6b":      SizeTiny,
	"1.7b":      SizeMini,
	"4b":        SizeSmall,
	"8b":        SizeMedium,
	"14b":       SizeLarge,
	"30b-a3b":   SizeMoESmall,
	"32b":       SizeXLarge,
	"235b-a22b": SizeMoELarge,
}

// Label returns the nominal parameter label of the tier, e.g. "8b".
func (s ModelSize) Label() string {
	for label, size := range sizeLabels {
		if size == s {
			return label
		}
	}
	return ""
}

// Rank is the tier's position in AllSizes, or -1 when unknown.
func (s ModelSize) Rank() int {
	for i, size := range AllSizes {
		if size == s {
			return i
		}
	}
	return -1
}

// IsMoE reports whether the tier is a mixture-of-experts model.
func (s ModelSize) IsMoE() bool {
	return s == SizeMoESmall || s == SizeMoELarge
}

// ParseModelSize accepts tier names ("medium", "MoE_Large") or parameter
// labels ("8b", "235b-a22b"). "auto" and "" both yield SizeAuto.
func ParseModelSize(s string) (ModelSize, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "-")
	if key == "" || key == string(SizeAuto) {
		return SizeAuto, nil
	}
	for _, size := range AllSizes {
		if string(size) == key {
			return size, nil
		}
	}
	if size, ok := sizeLabels[key]; ok {
		return size, nil
	}
	return "", fmt.Errorf("unknown model size %q", s)
}

// ReasoningMode is whether an agent produces an explicit reasoning trace.
type ReasoningMode string

const (
	ReasoningEnabled  ReasoningMode = "enabled"
	ReasoningDisabled ReasoningMode = "disabled"
)

// Enabled reports whether the mode is ReasoningEnabled.
func (r ReasoningMode) Enabled() bool {
	return r == ReasoningEnabled
}

// ReasoningFrom converts a flag into a ReasoningMode.
func ReasoningFrom(enabled bool) ReasoningMode {
	if enabled {
		return ReasoningEnabled
	}
	return ReasoningDisabled
}

// Cost is an estimated fraction of host memory and CPU an agent consumes.
type Cost struct {
	Memory float64 `yaml:"memory"`
	CPU    float64 `yaml:"cpu"`
}

// Exceeds reports whether c is more expensive than other on either resource.
func (c Cost) Exceeds(other Cost) bool {
	return c.Memory > other.Memory || c.CPU > other.CPU
}

// Costs is the static per-tier cost table.
type Costs struct {
	Tiers               map[ModelSize]Cost
	ReasoningMultiplier float64
}

// DefaultReasoningMultiplier scales both resources when reasoning is enabled.
const DefaultReasoningMultiplier = 1.5

// DefaultCosts returns the stock cost table.
func DefaultCosts() Costs {
	return Costs{
		Tiers: map[ModelSize]Cost{
			SizeXLarge:   {Memory: 0.8, CPU: 0.8},
			SizeLarge:    {Memory: 0.5, CPU: 0.5},
			SizeMoELarge: {Memory: 0.4, CPU: 0.4},
			SizeMedium:   {Memory: 0.3, CPU: 0.3},
			SizeMoESmall: {Memory: 0.2, CPU: 0.2},
			SizeSmall:    {Memory: 0.1, CPU: 0.1},
			SizeMini:     {Memory: 0.05, CPU: 0.05},
			SizeTiny:     {Memory: 0.02, CPU: 0.02},
		},
		ReasoningMultiplier: DefaultReasoningMultiplier,
	}
}

// Estimate returns the cost of running size with the given reasoning mode.
// Unknown tiers cost as much as the most expensive known tier.
func (c Costs) Estimate(size ModelSize, reasoning ReasoningMode) Cost {
	cost, ok := c.Tiers[size]
	if !ok {
		for _, tier := range c.Tiers {
			cost.Memory = max(cost.Memory, tier.Memory)
			cost.CPU = max(cost.CPU, tier.CPU)
		}
	}
	if reasoning.Enabled() {
		mult := c.ReasoningMultiplier
		if mult <= 0 {
			mult = DefaultReasoningMultiplier
		}
		cost.Memory *= mult
		cost.CPU *= mult
	}
	return cost
}

// Smallest returns the cheapest tier in the table.
func (c Costs) Smallest() ModelSize {
	best := SizeTiny
	bestCost, found := c.Tiers[best]
	for _, size := range AllSizes {
		cost, ok := c.Tiers[size]
		if !ok {
			continue
		}
		if !found || cost.Memory+cost.CPU < bestCost.Memory+bestCost.CPU {
			best, bestCost, found = size, cost, true
		}
	}
	return best
}

// Validate checks that every tier has a non-negative cost.
func (c Costs) Validate() error {
	for _, size := range AllSizes {
		cost, ok := c.Tiers[size]
		if !ok {
			return fmt.Errorf("cost table missing tier %s", size)
		}
		if cost.Memory < 0 || cost.CPU < 0 {
			return fmt.Errorf("cost for tier %s must be non-negative", size)
		}
	}
	if c.ReasoningMultiplier < 1 {
		return fmt.Errorf("reasoning multiplier must be >= 1, got %v", c.ReasoningMultiplier)
	}
	return nil
}
