package decompose

import (
	"math"

	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
)

// PruneConfig holds the constants of the resource-pressure pruning rule:
// when more than Threshold subtasks arrive and memory headroom is below
// MemoryCutoff, keep max(MinKeep, min(MaxKeep, floor(memory*PerMemory))).
type PruneConfig struct {
	Threshold    int
	MemoryCutoff float64
	MinKeep      int
	MaxKeep      int
	PerMemory    float64
}

// DefaultPruneConfig returns the stock pruning constants.
func DefaultPruneConfig() PruneConfig {
	return PruneConfig{
		Threshold:    10,
		MemoryCutoff: 0.5,
		MinKeep:      5,
		MaxKeep:      10,
		PerMemory:    20,
	}
}

// Applies reports whether count subtasks at the given memory headroom are pruned.
func (c PruneConfig) Applies(count int, memory float64) bool {
	return count > c.Threshold && memory < c.MemoryCutoff
}

// Constrained reports whether the decomposition prompt should ask for fewer subtasks.
func (c PruneConfig) Constrained(memory float64) bool {
	return memory < c.MemoryCutoff
}

// Limit returns how many subtasks survive pruning at the given memory headroom.
func (c PruneConfig) Limit(memory float64) int {
	if memory < 0 {
		memory = 0
	}
	n := int(math.Floor(memory * c.PerMemory))
	return max(c.MinKeep, min(c.MaxKeep, n))
}

// Prune keeps the most foundational subtasks when the plan is too large for
// the available memory. Subtasks are stably sorted by ascending dependency
// count and the first Limit(memory) are kept; dependencies on dropped subtasks
// are left dangling for plan.Repair to remove. The input is not modified.
func Prune(subtasks []plan.Subtask, memory float64, cfg PruneConfig) []plan.Subtask {
	out := plan.Clone(subtasks)
	if !cfg.Applies(len(out), memory) {
		return out
	}

	plan.SortByDependencyCount(out)
	if limit := cfg.Limit(memory); limit < len(out) {
		out = out[:limit]
	}
	return out
}
