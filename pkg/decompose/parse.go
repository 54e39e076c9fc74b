package decompose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
)

// ErrNoSubtasks is returned by ParseResponse when the response holds no usable list.
var ErrNoSubtasks = errors.New("no subtasks in response")

// rawSubtask is the JSON structure returned by the backend for a single subtask.
// Ids may arrive as numbers, and "depends_on" is accepted for "dependencies".
type rawSubtask struct {
	ID           flexString   `json:"id"`
	Description  string       `json:"description"`
	Title        string       `json:"title"`
	Expertise    string       `json:"expertise"`
	Complexity   string       `json:"complexity"`
	Dependencies []flexString `json:"dependencies"`
	DependsOn    []flexString `json:"depends_on"`
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err //nolint:wrapcheck // json decoding error is descriptive
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type wrapped struct {
	Subtasks []rawSubtask `json:"subtasks"`
	Tasks    []rawSubtask `json:"tasks"`
}

// ParseResponse extracts the subtask list from a backend response. It accepts
// a bare JSON array, an object with a "subtasks" (or "tasks") array, and either
// of those inside a fenced code block, with surrounding prose and any reasoning
// trace ignored. Expertise and complexity are returned as written; Normalize
// maps them onto the known enumerations.
func ParseResponse(response string) ([]plan.Subtask, error) {
	_, body := llm.SplitReasoning(response)

	var lastErr error
	for _, candidate := range candidates(body) {
		raw, err := decode(candidate)
		if err == nil && len(raw) == 0 {
			err = ErrNoSubtasks
		}
		if err != nil {
			lastErr = err
			continue
		}
		return convert(raw)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	preview := body
	if len(preview) > 200 {
		preview = preview[:200] + "... (truncated)"
	}
	return nil, fmt.Errorf("no JSON found in response (got %d chars): %q", len(body), preview)
}

// candidates returns the JSON fragments worth trying, most specific first.
func candidates(body string) []string {
	var out []string

	rest := body
	for {
		start := strings.Index(rest, "```")
		if start == -1 {
			break
		}
		block := rest[start+3:]
		end := strings.Index(block, "```")
		if end == -1 {
			break
		}
		content := block[:end]
		// Drop the info string ("json") on the opening fence line.
		if nl := strings.IndexByte(content, '\n'); nl != -1 && !strings.ContainsAny(content[:nl], "[{") {
			content = content[nl+1:]
		}
		out = append(out, strings.TrimSpace(content))
		rest = block[end+3:]
	}

	// Every complete JSON value opening at a bracket, in order of position, so
	// bracketed prose such as "Steps [1-3]:" ahead of the list is skipped.
	found := false
	for i := 0; i < len(body); i++ {
		if body[i] != '[' && body[i] != '{' {
			continue
		}
		var value json.RawMessage
		if err := json.NewDecoder(strings.NewReader(body[i:])).Decode(&value); err != nil {
			continue
		}
		out = append(out, string(value))
		found = true
	}

	// Nothing decodes: the outermost span still produces a useful error.
	if !found {
		if start, end := strings.IndexAny(body, "[{"), strings.LastIndexAny(body, "]}"); start != -1 && end > start {
			out = append(out, body[start:end+1])
		}
	}
	return out
}

func decode(fragment string) ([]rawSubtask, error) {
	fragment = strings.TrimSpace(fragment)
	if strings.HasPrefix(fragment, "{") {
		var w wrapped
		if err := json.Unmarshal([]byte(fragment), &w); err != nil {
			return nil, fmt.Errorf("unmarshal JSON object: %w", err)
		}
		if w.Subtasks != nil {
			return w.Subtasks, nil
		}
		if w.Tasks != nil {
			return w.Tasks, nil
		}
		return nil, fmt.Errorf("JSON object has no subtasks array")
	}

	var raw []rawSubtask
	if err := json.Unmarshal([]byte(fragment), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal JSON array: %w", err)
	}
	return raw, nil
}

func convert(raw []rawSubtask) ([]plan.Subtask, error) {
	if len(raw) == 0 {
		return nil, ErrNoSubtasks
	}

	subtasks := make([]plan.Subtask, len(raw))
	for i := range raw {
		r := &raw[i]
		description := strings.TrimSpace(r.Description)
		if description == "" {
			description = strings.TrimSpace(r.Title)
		}
		if description == "" {
			return nil, fmt.Errorf("subtask %d (%q) has no description", i+1, r.ID)
		}

		deps := r.Dependencies
		if deps == nil {
			deps = r.DependsOn
		}
		var dependencies []string
		if deps != nil {
			dependencies = make([]string, 0, len(deps))
			for _, d := range deps {
				dependencies = append(dependencies, string(d))
			}
		}

		subtasks[i] = plan.Subtask{
			ID:           strings.TrimSpace(string(r.ID)),
			Description:  description,
			Expertise:    plan.Expertise(r.Expertise),
			Complexity:   plan.Complexity(r.Complexity),
			Dependencies: dependencies,
		}
	}
	return subtasks, nil
}

// Normalize returns a copy of subtasks with every field in canonical form:
// missing or duplicate ids get generated ones, unknown expertise becomes
// development, unknown complexity becomes medium, and dependency lists are
// trimmed and never nil. Normalizing twice yields the same result.
func Normalize(subtasks []plan.Subtask) []plan.Subtask {
	out := make([]plan.Subtask, len(subtasks))

	taken := make(map[string]bool, len(subtasks))
	for i := range subtasks {
		if id := strings.TrimSpace(subtasks[i].ID); id != "" {
			taken[id] = true
		}
	}

	seen := make(map[string]bool, len(subtasks))
	for i := range subtasks {
		st := subtasks[i]

		id := strings.TrimSpace(st.ID)
		if id == "" || seen[id] {
			id = plan.NextID(taken)
		}
		seen[id] = true

		expertise, _ := plan.ParseExpertise(string(st.Expertise))
		complexity, _ := plan.ParseComplexity(string(st.Complexity))

		deps := make([]string, 0, len(st.Dependencies))
		for _, d := range st.Dependencies {
			if d = strings.TrimSpace(d); d != "" {
				deps = append(deps, d)
			}
		}

		out[i] = plan.Subtask{
			ID:           id,
			Description:  strings.TrimSpace(st.Description),
			Expertise:    expertise,
			Complexity:   complexity,
			Dependencies: deps,
		}
	}
	return out
}

// Fallback returns the single subtask used when the response cannot be parsed:
// the whole request as one development task of medium complexity.
func Fallback(request string) []plan.Subtask {
	return []plan.Subtask{{
		ID:           "task-1",
		Description:  strings.TrimSpace(request),
		Expertise:    plan.ExpertiseDevelopment,
		Complexity:   plan.ComplexityMedium,
		Dependencies: []string{},
	}}
}
