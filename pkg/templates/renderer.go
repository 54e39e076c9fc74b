// Package templates provides the embedded prompt templates and their renderer.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.tpl.md agents/*.tpl.md
var templateFS embed.FS

// TemplateData holds the data for template rendering.
type TemplateData struct {
	Extra map[string]any `json:"extra,omitempty"`

	// Decomposition prompt.
	Request      string   `json:"request,omitempty"`
	Expertise    []string `json:"expertise,omitempty"`
	Memory       float64  `json:"memory"`
	CPU          float64  `json:"cpu"`
	ActiveAgents int      `json:"active_agents"`
	Constrained  bool     `json:"constrained,omitempty"`
	MaxSubtasks  int      `json:"max_subtasks,omitempty"`

	// Subtask prompt.
	Description string `json:"description,omitempty"`
	Context     string `json:"context,omitempty"`
}

// TemplateName identifies an embedded template by its path.
type TemplateName string

const (
	// DecomposeTemplate asks the backend for a JSON subtask list.
	DecomposeTemplate TemplateName = "decompose.tpl.md"
	// SynthesisTemplate is the system prompt for merging subtask results.
	SynthesisTemplate TemplateName = "synthesis.tpl.md"
	// SubtaskTemplate is the user prompt for one subtask.
	SubtaskTemplate TemplateName = "subtask.tpl.md"
)

// AgentTemplate returns the system-prompt template for an expertise.
func AgentTemplate(expertise string) TemplateName {
	return TemplateName("agents/" + expertise + ".tpl.md")
}

// Renderer renders the embedded templates.
type Renderer struct {
	templates map[TemplateName]*template.Template
}

//nolint:gochecknoglobals
var (
	sharedOnce     sync.Once
	sharedRenderer *Renderer
	errShared      error
)

// Shared returns a process-wide renderer, parsing templates on first use.
func Shared() (*Renderer, error) {
	sharedOnce.Do(func() {
		sharedRenderer, errShared = NewRenderer()
	})
	return sharedRenderer, errShared
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[TemplateName]*template.Template),
	}

	funcs := template.FuncMap{
		"contains": strings.Contains,
		"join":     strings.Join,
		"percent":  func(f float64) float64 { return f * 100 },
	}

	err := fs.WalkDir(templateFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tpl.md") {
			return nil
		}

		content, err := templateFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}
		tmpl, err := template.New(path).Funcs(funcs).Option("missingkey=zero").Parse(string(content))
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", path, err)
		}
		r.templates[TemplateName(path)] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Has reports whether a template is available.
func (r *Renderer) Has(templateName TemplateName) bool {
	_, ok := r.templates[templateName]
	return ok
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName TemplateName, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// GetAvailableTemplates returns all template names, sorted.
func (r *Renderer) GetAvailableTemplates() []TemplateName {
	names := make([]TemplateName, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
