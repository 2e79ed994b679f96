// Package prompt loads YAML prompt specifications and executes them
// against an OpenAI-compatible chat-completions endpoint.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	goyaml "gopkg.in/yaml.v3"
)

var validate = validator.New()

// Spec is a prompt specification loaded from YAML: a template with
// ${param} placeholders, the parameters that fill it, and optional
// per-prompt model settings overriding the executor's defaults.
type Spec struct {
	Name             string         `yaml:"name"`
	Description      string         `yaml:"description"`
	Prompt           string         `yaml:"prompt" validate:"required"`
	SystemPrompt     string         `yaml:"system_prompt"`
	Parameters       []Parameter    `yaml:"parameters"`
	Model            string         `yaml:"model"`
	BaseURL          string         `yaml:"base_url"`
	APIKey           string         `yaml:"api_key"`
	GenerationConfig map[string]any `yaml:"generation_config"`
}

// Parameter declares one template parameter.
type Parameter struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" default:"string" validate:"oneof=string int float bool list"`
	Description string `yaml:"description"`
	Required    *bool  `yaml:"required"`
	Default     any    `yaml:"default"`
}

// IsRequired follows the flow-input rule: required unless a default
// makes the parameter satisfiable on its own.
func (p *Parameter) IsRequired() bool {
	if p.Required != nil {
		return *p.Required
	}
	return p.Default == nil
}

// Load reads and validates a prompt file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read prompt file %s: %w", path, err)
	}

	var spec Spec
	if err := goyaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("invalid YAML in prompt file %s: %w", path, err)
	}

	for i := range spec.Parameters {
		if err := defaults.Set(&spec.Parameters[i]); err != nil {
			return nil, fmt.Errorf("prompt %s: %w", path, err)
		}
	}
	if err := validate.Struct(&spec); err != nil {
		return nil, fmt.Errorf("invalid prompt file %s: %w", path, err)
	}

	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &spec, nil
}

var paramPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Render fills the prompt template with the given parameter values,
// applying declared defaults for parameters the caller omitted. A
// placeholder left without a value is an error.
func (s *Spec) Render(params map[string]string) (string, error) {
	values := make(map[string]string, len(params))
	for name, value := range params {
		values[name] = value
	}
	for i := range s.Parameters {
		p := &s.Parameters[i]
		if _, ok := values[p.Name]; ok {
			continue
		}
		if p.Default != nil {
			values[p.Name] = fmt.Sprintf("%v", p.Default)
		} else if p.IsRequired() {
			return "", fmt.Errorf("prompt %q: required parameter %q was not provided", s.Name, p.Name)
		}
	}

	var missing string
	rendered := paramPattern.ReplaceAllStringFunc(s.Prompt, func(m string) string {
		name := paramPattern.FindStringSubmatch(m)[1]
		value, ok := values[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("prompt %q: no value for template parameter %q", s.Name, missing)
	}
	return rendered, nil
}

// List returns the prompts found in a directory, skipping files that do
// not load.
func List(dir string) []*Spec {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil
	}

	var specs []*Spec
	for _, file := range files {
		spec, err := Load(file)
		if err != nil {
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}
