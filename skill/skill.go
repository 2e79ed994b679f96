// Package skill loads YAML skill specifications and runs their scripts
// as sandboxed subprocesses.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	goyaml "gopkg.in/yaml.v3"
)

var validate = validator.New()

// Spec is a skill specification loaded from YAML. The script itself
// lives next to the spec as <name>.py.
type Spec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Version     string         `yaml:"version" default:"1.0.0"`
	Inputs      []Input        `yaml:"inputs"`
	Outputs     []Output       `yaml:"outputs"`
	Metadata    map[string]any `yaml:"metadata"`
	Security    Security       `yaml:"security"`
}

// Input declares one skill input parameter.
type Input struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" default:"string" validate:"oneof=string int float bool list"`
	Description string `yaml:"description"`
	Required    *bool  `yaml:"required"`
	Default     any    `yaml:"default"`
}

// Output declares one field the skill is expected to produce.
type Output struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" default:"string"`
	Description string `yaml:"description"`
}

// Security carries the sandbox settings for a skill.
type Security struct {
	// TimeoutSeconds bounds one script invocation's wall clock.
	TimeoutSeconds int `yaml:"timeout" default:"30" validate:"gte=1,lte=3600"`
}

// IsRequired follows the same rule as flow inputs: required unless a
// default is present.
func (i *Input) IsRequired() bool {
	if i.Required != nil {
		return *i.Required
	}
	return i.Default == nil
}

// Load reads and validates a skill file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read skill file %s: %w", path, err)
	}

	var spec Spec
	if err := goyaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("invalid YAML in skill file %s: %w", path, err)
	}

	if err := defaults.Set(&spec); err != nil {
		return nil, fmt.Errorf("skill %s: %w", path, err)
	}
	for i := range spec.Inputs {
		if err := defaults.Set(&spec.Inputs[i]); err != nil {
			return nil, fmt.Errorf("skill %s: %w", path, err)
		}
	}
	if err := validate.Struct(&spec); err != nil {
		return nil, fmt.Errorf("invalid skill file %s: %w", path, err)
	}

	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &spec, nil
}

// List returns the skills found in a directory that have both a spec and
// a script, skipping anything that does not load.
func List(dir string) []*Spec {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil
	}

	var specs []*Spec
	for _, file := range files {
		script := strings.TrimSuffix(file, filepath.Ext(file)) + ".py"
		if _, err := os.Stat(script); err != nil {
			continue
		}
		spec, err := Load(file)
		if err != nil {
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}
