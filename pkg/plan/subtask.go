// Package plan holds the subtask model produced by decomposition and the
// dependency-graph operations the pipeline runs over it.
package plan

import (
	"strconv"
	"strings"
)

// Expertise is the domain category a subtask requires.
type Expertise string

const (
	ExpertiseDevelopment        Expertise = "development"
	ExpertiseTesting            Expertise = "testing"
	ExpertiseReleaseEngineering Expertise = "release-engineering"
	ExpertiseSourceControl      Expertise = "source-control"
	ExpertiseDocumentation      Expertise = "documentation"
	ExpertiseArchitecture       Expertise = "architecture"
	ExpertiseSecurity           Expertise = "security"
	ExpertisePerformance        Expertise = "performance"
)

// AllExpertise lists every known expertise in declaration order.
//
//nolint:gochecknoglobals
var AllExpertise = []Expertise{
	ExpertiseDevelopment,
	ExpertiseTesting,
	ExpertiseReleaseEngineering,
	ExpertiseSourceControl,
	ExpertiseDocumentation,
	ExpertiseArchitecture,
	ExpertiseSecurity,
	ExpertisePerformance,
}

//nolint:gochecknoglobals
var expertiseAliases = map[string]Expertise{
	"dev":          ExpertiseDevelopment,
	"coding":       ExpertiseDevelopment,
	"test":         ExpertiseTesting,
	"tests":        ExpertiseTesting,
	"qa":           ExpertiseTesting,
	"devops":       ExpertiseReleaseEngineering,
	"ci":           ExpertiseReleaseEngineering,
	"ci-cd":        ExpertiseReleaseEngineering,
	"release":      ExpertiseReleaseEngineering,
	"git":          ExpertiseSourceControl,
	"vcs":          ExpertiseSourceControl,
	"docs":         ExpertiseDocumentation,
	"design":       ExpertiseArchitecture,
	"perf":         ExpertisePerformance,
	"optimization": ExpertisePerformance,
}

// Complexity is the difficulty rating of a subtask.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// AllComplexity lists complexities from lowest to highest.
//
//nolint:gochecknoglobals
var AllComplexity = []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh}

// Rank orders complexities: low=0, medium=1, high=2. Unknown values rank as medium.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityLow:
		return 0
	case ComplexityHigh:
		return 2
	default:
		return 1
	}
}

func canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	return s
}

// ParseExpertise normalizes s. Unrecognized values map to development and
// report ok=false.
func ParseExpertise(s string) (Expertise, bool) {
	key := canonical(s)
	for _, e := range AllExpertise {
		if string(e) == key {
			return e, true
		}
	}
	if e, ok := expertiseAliases[key]; ok {
		return e, true
	}
	return ExpertiseDevelopment, false
}

// ParseComplexity normalizes s. Unrecognized values map to medium and report ok=false.
func ParseComplexity(s string) (Complexity, bool) {
	switch canonical(s) {
	case "low", "simple", "easy":
		return ComplexityLow, true
	case "medium", "moderate":
		return ComplexityMedium, true
	case "high", "complex", "hard":
		return ComplexityHigh, true
	default:
		return ComplexityMedium, false
	}
}

// Subtask is one atomic unit of work derived from a user request.
type Subtask struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Expertise    Expertise  `json:"expertise"`
	Complexity   Complexity `json:"complexity"`
	Dependencies []string   `json:"dependencies"`
}

// NextID returns the first id of the form "task-<n>", counting from 1, that
// is not in taken, and marks it taken. Ids are deterministic so the same
// decomposition always yields the same graph.
func NextID(taken map[string]bool) string {
	for n := 1; ; n++ {
		id := "task-" + strconv.Itoa(n)
		if !taken[id] {
			taken[id] = true
			return id
		}
	}
}

// Index maps subtask ids to pointers into subtasks.
func Index(subtasks []Subtask) map[string]*Subtask {
	idx := make(map[string]*Subtask, len(subtasks))
	for i := range subtasks {
		idx[subtasks[i].ID] = &subtasks[i]
	}
	return idx
}

// ByID copies subtasks into a map keyed by id.
func ByID(subtasks []Subtask) map[string]Subtask {
	m := make(map[string]Subtask, len(subtasks))
	for i := range subtasks {
		m[subtasks[i].ID] = subtasks[i]
	}
	return m
}

// Clone deep-copies subtasks including dependency slices.
func Clone(subtasks []Subtask) []Subtask {
	out := make([]Subtask, len(subtasks))
	for i := range subtasks {
		out[i] = subtasks[i]
		if deps := subtasks[i].Dependencies; deps != nil {
			out[i].Dependencies = append(make([]string, 0, len(deps)), deps...)
		}
	}
	return out
}
