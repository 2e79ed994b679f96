package runtime

import (
	"fmt"
	"strings"
)

// SpecError reports a malformed or incomplete flow specification.
// It is raised at load time, before any graph work happens.
type SpecError struct {
	Path    string // source file, may be empty for in-memory specs
	Message string
	Err     error
}

func (e *SpecError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("flow spec %s: %s", e.Path, e.Message)
	}
	return "flow spec: " + e.Message
}

func (e *SpecError) Unwrap() error { return e.Err }

func NewSpecError(path, message string, err error) *SpecError {
	return &SpecError{Path: path, Message: message, Err: err}
}

// GraphError reports an unknown step reference or a dependency cycle.
// It is raised at graph-build time, never during step execution.
type GraphError struct {
	Step       string   // step whose declaration caused the error
	Dependency string   // the unknown step name, if any
	Cycle      []string // cycle members, in declaration order
	Message    string
}

func (e *GraphError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("dependency cycle involving steps: %s", strings.Join(e.Cycle, ", "))
	}
	if e.Step != "" {
		return fmt.Sprintf("step %q: %s", e.Step, e.Message)
	}
	return e.Message
}

// ValidationError reports a missing or unusable flow input at call time.
type ValidationError struct {
	Input   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input %q: %s", e.Input, e.Message)
}

// TemplateError reports an unresolvable ${...} reference during a step.
// Fatal for the whole execution; never retried.
type TemplateError struct {
	Step string
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step %q: cannot resolve template variable %q", e.Step, e.Path)
	}
	return fmt.Sprintf("cannot resolve template variable %q", e.Path)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// StepError wraps a failure raised by an external executor.
// The flow aborts at the failing step; later steps are never dispatched.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// OutputError reports a declared flow output whose source cannot be
// resolved after all steps ran.
type OutputError struct {
	Output  string
	Source  string
	Message string
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %q (source %q): %s", e.Output, e.Source, e.Message)
}
