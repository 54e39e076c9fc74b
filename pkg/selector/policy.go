package selector

import (
	"errors"
	"fmt"

	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
)

// PolicyKey addresses one cell of the policy table.
type PolicyKey struct {
	Expertise  plan.Expertise
	Complexity plan.Complexity
}

// Choice is the model tier and reasoning mode the policy table prescribes.
type Choice struct {
	ModelSize ModelSize
	Reasoning ReasoningMode
}

// PolicyTable maps expertise x complexity to a Choice. Default answers keys
// that are not in Entries.
type PolicyTable struct {
	Entries map[PolicyKey]Choice
	Default Choice
}

func choice(size ModelSize, reasoning ReasoningMode) Choice {
	return Choice{ModelSize: size, Reasoning: reasoning}
}

// DefaultPolicy returns the stock policy table.
//
// Architecture and development get the large mixture-of-experts tier for high
// complexity work. Release engineering and source control stay on small models
// with reasoning off at every complexity.
func DefaultPolicy() *PolicyTable {
	on, off := ReasoningEnabled, ReasoningDisabled
	rows := map[plan.Expertise][3]Choice{
		plan.ExpertiseArchitecture:       {choice(SizeMedium, on), choice(SizeLarge, on), choice(SizeMoELarge, on)},
		plan.ExpertiseDevelopment:        {choice(SizeSmall, off), choice(SizeMedium, on), choice(SizeMoELarge, on)},
		plan.ExpertiseSecurity:           {choice(SizeSmall, on), choice(SizeMedium, on), choice(SizeLarge, on)},
		plan.ExpertisePerformance:        {choice(SizeSmall, off), choice(SizeMedium, on), choice(SizeMoESmall, on)},
		plan.ExpertiseTesting:            {choice(SizeSmall, off), choice(SizeMedium, off), choice(SizeMedium, on)},
		plan.ExpertiseDocumentation:      {choice(SizeMini, off), choice(SizeSmall, off), choice(SizeMedium, off)},
		plan.ExpertiseReleaseEngineering: {choice(SizeMini, off), choice(SizeSmall, off), choice(SizeSmall, off)},
		plan.ExpertiseSourceControl:      {choice(SizeTiny, off), choice(SizeMini, off), choice(SizeSmall, off)},
	}

	table := &PolicyTable{
		Entries: make(map[PolicyKey]Choice, len(rows)*len(plan.AllComplexity)),
		Default: choice(SizeMedium, off),
	}
	for expertise, row := range rows {
		for i, complexity := range plan.AllComplexity {
			table.Entries[PolicyKey{expertise, complexity}] = row[i]
		}
	}
	return table
}

// Lookup returns the choice for (expertise, complexity), falling back to Default.
func (t *PolicyTable) Lookup(expertise plan.Expertise, complexity plan.Complexity) Choice {
	if c, ok := t.Entries[PolicyKey{expertise, complexity}]; ok {
		return c
	}
	return t.Default
}

// ValidatePolicy checks that the table covers every expertise x complexity
// pair and only names known tiers and reasoning modes.
func ValidatePolicy(t *PolicyTable) error {
	if t == nil {
		return errors.New("policy table is nil")
	}
	if err := validChoice(t.Default); err != nil {
		return fmt.Errorf("default entry: %w", err)
	}

	var errs []error
	for _, expertise := range plan.AllExpertise {
		for _, complexity := range plan.AllComplexity {
			c, ok := t.Entries[PolicyKey{expertise, complexity}]
			if !ok {
				errs = append(errs, fmt.Errorf("missing entry for %s/%s", expertise, complexity))
				continue
			}
			if err := validChoice(c); err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", expertise, complexity, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validChoice(c Choice) error {
	if c.ModelSize.Rank() < 0 {
		return fmt.Errorf("unknown model size %q", c.ModelSize)
	}
	if c.Reasoning != ReasoningEnabled && c.Reasoning != ReasoningDisabled {
		return fmt.Errorf("unknown reasoning mode %q", c.Reasoning)
	}
	return nil
}
