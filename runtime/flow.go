package runtime

// FlowSpec is a complete flow specification loaded from YAML.
// It is immutable once loaded; the engine never writes to it.
type FlowSpec struct {
	Name        string
	Description string
	Inputs      []FlowInput
	Outputs     []FlowOutput
	Steps       map[string]*FlowStep

	// StepOrder preserves the declaration order of the steps mapping.
	// Execution planning uses it to break ties deterministically.
	StepOrder []string
}

// FlowInput is a flow-level input parameter.
type FlowInput struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
}

// FlowOutput maps a flow output name to a step result field.
// Source has the exact shape "<step>.<field>".
type FlowOutput struct {
	Name        string
	Source      string
	Description string
}

// FlowStep is a single step in a flow. Exactly one of Prompt or Skill
// is set; the loader rejects everything else.
type FlowStep struct {
	Name      string
	Prompt    string
	Skill     string
	Inputs    map[string]string
	Outputs   []string
	DependsOn []string

	// When is reserved for conditional execution. The loader checks its
	// syntax but the engine never evaluates it; every step runs.
	When string
}

// Step returns the step with the given name, or nil.
func (s *FlowSpec) Step(name string) *FlowStep {
	return s.Steps[name]
}

// InputSpec returns the flow input with the given name, or nil.
func (s *FlowSpec) InputSpec(name string) *FlowInput {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i]
		}
	}
	return nil
}
