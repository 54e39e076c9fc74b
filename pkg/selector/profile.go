package selector

import (
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
)

// Capability is something an agent profile can do.
type Capability string

const (
	CapabilityCodeGeneration Capability = "code-generation"
	CapabilityCodeReview     Capability = "code-review"
	CapabilityTestAuthoring  Capability = "test-authoring"
	CapabilityPipelines      Capability = "pipelines"
	CapabilityVersionControl Capability = "version-control"
	CapabilityTechnicalWrite Capability = "technical-writing"
	CapabilitySystemDesign   Capability = "system-design"
	CapabilityThreatModeling Capability = "threat-modeling"
	CapabilityProfiling      Capability = "profiling"
	CapabilityWorkspaceAware Capability = "workspace-context"
)

// Profile describes which subtasks an agent accepts.
type Profile struct {
	ExpertiseTags map[plan.Expertise]struct{}
	MaxComplexity plan.Complexity
	Capabilities  map[Capability]struct{}
}

// NewProfile builds a profile from tag and capability lists.
func NewProfile(maxComplexity plan.Complexity, tags []plan.Expertise, caps ...Capability) Profile {
	p := Profile{
		ExpertiseTags: make(map[plan.Expertise]struct{}, len(tags)),
		MaxComplexity: maxComplexity,
		Capabilities:  make(map[Capability]struct{}, len(caps)),
	}
	for _, t := range tags {
		p.ExpertiseTags[t] = struct{}{}
	}
	for _, c := range caps {
		p.Capabilities[c] = struct{}{}
	}
	return p
}

// Has reports whether the profile carries capability c.
func (p Profile) Has(c Capability) bool {
	_, ok := p.Capabilities[c]
	return ok
}

// Matches reports whether the subtask's expertise is tagged and its complexity
// does not exceed MaxComplexity.
func (p Profile) Matches(st plan.Subtask) bool {
	if _, ok := p.ExpertiseTags[st.Expertise]; !ok {
		return false
	}
	return st.Complexity.Rank() <= p.MaxComplexity.Rank()
}

// ProfileFor returns the stock profile of the specialized agent for expertise.
// Unknown expertise gets the development profile.
func ProfileFor(expertise plan.Expertise) Profile {
	high := plan.ComplexityHigh
	switch expertise {
	case plan.ExpertiseTesting:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilityTestAuthoring, CapabilityCodeGeneration)
	case plan.ExpertiseReleaseEngineering:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilityPipelines)
	case plan.ExpertiseSourceControl:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilityVersionControl)
	case plan.ExpertiseDocumentation:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilityTechnicalWrite)
	case plan.ExpertiseArchitecture:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilitySystemDesign, CapabilityWorkspaceAware)
	case plan.ExpertiseSecurity:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilityThreatModeling, CapabilityCodeReview, CapabilityWorkspaceAware)
	case plan.ExpertisePerformance:
		return NewProfile(high, []plan.Expertise{expertise}, CapabilityProfiling, CapabilityCodeReview, CapabilityWorkspaceAware)
	default:
		return NewProfile(high, []plan.Expertise{plan.ExpertiseDevelopment}, CapabilityCodeGeneration, CapabilityWorkspaceAware)
	}
}
