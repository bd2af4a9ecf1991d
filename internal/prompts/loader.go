package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"solver/internal/domain"
)

//go:embed templates/*.tmpl
var promptFS embed.FS

// Template names. Each role has a system prompt and a user prompt.
const (
	PlannerSystem     = "planner_system"
	PlannerUser       = "planner_user"
	GeneratorSystem   = "generator_system"
	GeneratorUser     = "generator_user"
	CriticSystem      = "critic_system"
	CriticUser        = "critic_user"
	SynthesizerSystem = "synthesizer_system"
	SynthesizerUser   = "synthesizer_user"
)

// Binding is a named value shown to the model.
type Binding struct {
	Name  string
	Value float64
}

// PlanData feeds the planner prompt.
type PlanData struct {
	Query string
}

// GenerateData feeds the generator prompt.
type GenerateData struct {
	Query       string
	Number      int
	Description string
	Bindings    []Binding
	Feedback    string
	// Expected is the critic's proposed value, already formatted.
	Expected string
}

// CritiqueData feeds the critic prompt.
type CritiqueData struct {
	Query       string
	Description string
	Code        string
	Output      float64
	Bindings    []Binding
}

// SynthesisData feeds the synthesizer prompt.
type SynthesisData struct {
	Query   string
	Results []Binding
}

// PromptLoader renders the embedded role prompts.
type PromptLoader struct {
	templates map[string]*template.Template
}

// NewPromptLoader parses every embedded template.
func NewPromptLoader() (*PromptLoader, error) {
	loader := &PromptLoader{templates: make(map[string]*template.Template)}
	if err := loader.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return loader, nil
}

// MustNewPromptLoader panics if the embedded templates do not parse.
func MustNewPromptLoader() *PromptLoader {
	loader, err := NewPromptLoader()
	if err != nil {
		panic(err)
	}
	return loader
}

func (p *PromptLoader) loadTemplates() error {
	entries, err := fs.ReadDir(promptFS, "templates")
	if err != nil {
		return fmt.Errorf("failed to read prompts directory: %w", err)
	}
	funcs := template.FuncMap{"num": FormatValue}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		content, err := promptFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return fmt.Errorf("failed to parse prompt %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return nil
}

// Render executes the named template with data and trims surrounding space.
func (p *PromptLoader) Render(name string, data any) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt template '%s' not found", name)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// ListPrompts returns all available prompt template names, sorted.
func (p *PromptLoader) ListPrompts() []string {
	names := make([]string, 0, len(p.templates))
	for name := range p.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatValue renders a number the way the sandbox reports it: integral
// values without a fractional part.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BindingsFrom lists accepted step values in plan order.
func BindingsFrom(results []domain.StepResult) []Binding {
	out := make([]Binding, 0, len(results))
	for _, r := range results {
		out = append(out, Binding{Name: r.Binding, Value: r.Value})
	}
	return out
}
