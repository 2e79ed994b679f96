// Package yaml loads flow specifications from YAML documents into the
// runtime's typed form, applying defaults and rejecting malformed shapes
// at load time rather than mid-execution.
package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/expr-lang/expr"
	"github.com/go-playground/validator/v10"
	goyaml "gopkg.in/yaml.v3"

	"github.com/philiporange/orac-sub000/runtime"
)

var validate = validator.New()

// flowDocument mirrors the YAML shape of a flow file. Steps stay a raw
// node so that mapping declaration order survives decoding.
type flowDocument struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Inputs      []inputDocument  `yaml:"inputs"`
	Outputs     []outputDocument `yaml:"outputs"`
	Steps       goyaml.Node      `yaml:"steps"`
}

type inputDocument struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" default:"string" validate:"oneof=string int float bool list"`
	Description string `yaml:"description"`
	Required    *bool  `yaml:"required"`
	Default     any    `yaml:"default"`
}

type outputDocument struct {
	Name        string `yaml:"name" validate:"required"`
	Source      string `yaml:"source" validate:"required"`
	Description string `yaml:"description"`
}

type stepDocument struct {
	Prompt    string            `yaml:"prompt"`
	Skill     string            `yaml:"skill"`
	Inputs    map[string]string `yaml:"inputs"`
	Outputs   []string          `yaml:"outputs"`
	DependsOn []string          `yaml:"depends_on"`
	When      string            `yaml:"when"`
}

// Loader reads flow specifications from YAML files.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Extensions() []string {
	return []string{"*.yaml", "*.yml"}
}

// Load reads and validates a flow file. Any problem with the document is
// a SpecError; graph-level problems (cycles, unknown dependencies inside
// templates) are left to the graph builder.
func (l *Loader) Load(path string) (*runtime.FlowSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, runtime.NewSpecError(path, "cannot read flow file", err)
	}
	return l.LoadBytes(data, path)
}

// LoadBytes parses a flow document from memory. path is used only for
// diagnostics and the fallback flow name.
func (l *Loader) LoadBytes(data []byte, path string) (*runtime.FlowSpec, error) {
	var doc flowDocument
	if err := goyaml.Unmarshal(data, &doc); err != nil {
		return nil, runtime.NewSpecError(path, "invalid YAML", err)
	}

	spec, err := parse(&doc, path)
	if err != nil {
		return nil, err
	}

	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec, nil
}

// parse converts a decoded flow document into a FlowSpec.
func parse(doc *flowDocument, path string) (*runtime.FlowSpec, error) {
	spec := &runtime.FlowSpec{
		Name:        doc.Name,
		Description: doc.Description,
		Steps:       make(map[string]*runtime.FlowStep),
	}

	seen := make(map[string]bool)
	for i := range doc.Inputs {
		in := &doc.Inputs[i]
		if err := defaults.Set(in); err != nil {
			return nil, runtime.NewSpecError(path, "cannot apply input defaults", err)
		}
		if err := validate.Struct(in); err != nil {
			return nil, runtime.NewSpecError(path, fmt.Sprintf("invalid input %q: %v", in.Name, err), err)
		}
		if seen[in.Name] {
			return nil, runtime.NewSpecError(path, fmt.Sprintf("duplicate input %q", in.Name), nil)
		}
		seen[in.Name] = true

		// Required defaults to true, unless a default value makes the
		// input satisfiable without the caller providing one.
		required := in.Default == nil
		if in.Required != nil {
			required = *in.Required
		}
		spec.Inputs = append(spec.Inputs, runtime.FlowInput{
			Name:        in.Name,
			Type:        in.Type,
			Description: in.Description,
			Required:    required,
			Default:     in.Default,
		})
	}

	if err := parseSteps(&doc.Steps, spec, path); err != nil {
		return nil, err
	}

	seen = make(map[string]bool)
	for _, out := range doc.Outputs {
		if err := validate.Struct(out); err != nil {
			return nil, runtime.NewSpecError(path, fmt.Sprintf("invalid output %q: %v", out.Name, err), err)
		}
		if seen[out.Name] {
			return nil, runtime.NewSpecError(path, fmt.Sprintf("duplicate output %q", out.Name), nil)
		}
		seen[out.Name] = true

		parts := strings.Split(out.Source, ".")
		if len(parts) != 2 {
			return nil, runtime.NewSpecError(path,
				fmt.Sprintf("output %q: source %q must have the shape \"step.field\"", out.Name, out.Source), nil)
		}
		if _, ok := spec.Steps[parts[0]]; !ok {
			return nil, runtime.NewSpecError(path,
				fmt.Sprintf("output %q references unknown step %q", out.Name, parts[0]), nil)
		}

		spec.Outputs = append(spec.Outputs, runtime.FlowOutput{
			Name:        out.Name,
			Source:      out.Source,
			Description: out.Description,
		})
	}

	return spec, nil
}

// parseSteps walks the steps mapping node pairwise so that declaration
// order is preserved alongside the keyed lookup.
func parseSteps(node *goyaml.Node, spec *runtime.FlowSpec, path string) error {
	if node.Kind == 0 || (node.Kind == goyaml.ScalarNode && node.Tag == "!!null") {
		return runtime.NewSpecError(path, "flow has no steps", nil)
	}
	if node.Kind != goyaml.MappingNode {
		return runtime.NewSpecError(path, "steps must be a mapping of step name to step definition", nil)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var doc stepDocument
		if err := node.Content[i+1].Decode(&doc); err != nil {
			return runtime.NewSpecError(path, fmt.Sprintf("invalid step %q", name), err)
		}

		if doc.Prompt == "" && doc.Skill == "" {
			return runtime.NewSpecError(path,
				fmt.Sprintf("step %q must have either a prompt or a skill", name), nil)
		}
		if doc.Prompt != "" && doc.Skill != "" {
			return runtime.NewSpecError(path,
				fmt.Sprintf("step %q cannot have both a prompt and a skill", name), nil)
		}
		if _, ok := spec.Steps[name]; ok {
			return runtime.NewSpecError(path, fmt.Sprintf("duplicate step %q", name), nil)
		}

		// The when field is reserved: its syntax is checked here so a
		// future engine can evaluate it, but no step is ever skipped.
		if doc.When != "" {
			if _, err := expr.Compile(doc.When, expr.AllowUndefinedVariables()); err != nil {
				return runtime.NewSpecError(path,
					fmt.Sprintf("step %q: invalid when expression", name), err)
			}
		}

		inputs := doc.Inputs
		if inputs == nil {
			inputs = make(map[string]string)
		}

		spec.Steps[name] = &runtime.FlowStep{
			Name:      name,
			Prompt:    doc.Prompt,
			Skill:     doc.Skill,
			Inputs:    inputs,
			Outputs:   doc.Outputs,
			DependsOn: doc.DependsOn,
			When:      doc.When,
		}
		spec.StepOrder = append(spec.StepOrder, name)
	}

	if len(spec.StepOrder) == 0 {
		return runtime.NewSpecError(path, "flow has no steps", nil)
	}
	return nil
}
