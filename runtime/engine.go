package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Engine executes a single flow specification. The dependency graph and
// execution order are computed once at construction; Execute may be
// called any number of times, each call owning its own Execution.
type Engine struct {
	spec     *FlowSpec
	graph    *DependencyGraph
	order    []string
	executor *Executor
	l        *slog.Logger
	progress ProgressCallback
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a structured logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.l = l }
}

// WithProgressCallback attaches a progress sink. The sink is one-way:
// it has no effect on control flow.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(e *Engine) { e.progress = cb }
}

// NewEngine validates the spec's dependency structure and prepares an
// execution order. A GraphError here means the spec can never run.
func NewEngine(spec *FlowSpec, prompts PromptExecutor, skills SkillExecutor, opts ...Option) (*Engine, error) {
	e := &Engine{spec: spec}
	for _, opt := range opts {
		opt(e)
	}
	if e.l == nil {
		e.l = slog.Default()
	}

	graph, err := BuildGraph(spec)
	if err != nil {
		return nil, err
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	e.graph = graph
	e.order = order
	e.executor = NewExecutor(e.l, prompts, skills, e.progress)
	e.l.Debug("dependency graph built", "flow", spec.Name, "steps", graph.Size(), "order", strings.Join(order, " -> "))
	return e, nil
}

// Spec returns the flow specification the engine was built for.
func (e *Engine) Spec() *FlowSpec { return e.spec }

// ExecutionOrder returns the planned step order.
func (e *Engine) ExecutionOrder() []string {
	order := make([]string, len(e.order))
	copy(order, e.order)
	return order
}

// Graph returns the validated dependency graph.
func (e *Engine) Graph() *DependencyGraph { return e.graph }

// Result is the outcome of a single Execute call.
type Result struct {
	RunID   string         `json:"run_id"`
	Order   []string       `json:"order"`
	Outputs map[string]any `json:"outputs,omitempty"`
	DryRun  bool           `json:"dry_run,omitempty"`
}

// Execute runs the flow. With dryRun set it validates the inputs, then
// stops after planning and returns only the computed order; no executor
// is invoked and no state is touched. On any error the flow aborts and
// no partial outputs are returned.
func (e *Engine) Execute(ctx context.Context, inputs map[string]any, dryRun bool) (*Result, error) {
	e.l.Info("starting flow execution", "flow", e.spec.Name, "dry_run", dryRun)

	emit(e.progress, ProgressEvent{
		Type:       FlowStart,
		Message:    fmt.Sprintf("Starting flow: %s", e.spec.Name),
		TotalSteps: len(e.order),
		Metadata: map[string]any{
			"flow":    e.spec.Name,
			"order":   e.ExecutionOrder(),
			"dry_run": dryRun,
		},
	})

	resolved, err := e.validateInputs(inputs)
	if err != nil {
		e.emitFlowError(err)
		return nil, err
	}

	if dryRun {
		e.l.Info("dry run", "order", strings.Join(e.order, " -> "))
		return &Result{Order: e.ExecutionOrder(), DryRun: true}, nil
	}

	exec := NewExecution(ctx, e.spec, resolved)

	for i, name := range e.order {
		results, err := e.executor.RunStep(exec, e.spec.Steps[name], i+1, len(e.order))
		if err != nil {
			e.emitFlowError(err)
			return nil, err
		}
		exec.AddStepResult(name, results)
	}

	outputs, err := e.resolveOutputs(exec)
	if err != nil {
		e.emitFlowError(err)
		return nil, err
	}

	e.l.Info("flow completed", "flow", e.spec.Name, "outputs", len(outputs))
	emit(e.progress, ProgressEvent{
		Type:        FlowComplete,
		Message:     fmt.Sprintf("Completed flow: %s", e.spec.Name),
		CurrentStep: len(e.order),
		TotalSteps:  len(e.order),
		Metadata:    map[string]any{"flow": e.spec.Name, "outputs": sortedKeys(outputs)},
	})

	return &Result{RunID: exec.ID, Order: e.ExecutionOrder(), Outputs: outputs}, nil
}

// validateInputs checks required flow inputs, applies defaults, and
// coerces every provided value to its declared type. The caller's map is
// never mutated.
func (e *Engine) validateInputs(inputs map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(inputs))
	for name, value := range inputs {
		resolved[name] = value
	}

	for _, in := range e.spec.Inputs {
		if _, ok := resolved[in.Name]; !ok {
			if in.Default != nil {
				resolved[in.Name] = in.Default
			} else if in.Required {
				return nil, &ValidationError{Input: in.Name, Message: "required input is missing"}
			} else {
				// Optional without default: absent, not empty.
				continue
			}
		}

		coerced, err := CoerceValue(resolved[in.Name], in.Type)
		if err != nil {
			return nil, &ValidationError{Input: in.Name, Message: err.Error()}
		}
		resolved[in.Name] = coerced
	}

	return resolved, nil
}

// resolveOutputs maps declared flow outputs onto recorded step results.
func (e *Engine) resolveOutputs(exec *Execution) (map[string]any, error) {
	outputs := make(map[string]any, len(e.spec.Outputs))

	for _, out := range e.spec.Outputs {
		parts := strings.Split(out.Source, ".")
		if len(parts) != 2 {
			return nil, &OutputError{
				Output:  out.Name,
				Source:  out.Source,
				Message: `source must have the shape "step.field"`,
			}
		}

		step, field := parts[0], parts[1]
		if !exec.HasStepResult(step) {
			return nil, &OutputError{
				Output:  out.Name,
				Source:  out.Source,
				Message: fmt.Sprintf("step %q never ran", step),
			}
		}

		value, ok := exec.Lookup(step, field)
		if !ok {
			return nil, &OutputError{
				Output:  out.Name,
				Source:  out.Source,
				Message: fmt.Sprintf("step %q produced no field %q", step, field),
			}
		}
		outputs[out.Name] = value
	}

	return outputs, nil
}

func (e *Engine) emitFlowError(err error) {
	e.l.Error("flow execution failed", "flow", e.spec.Name, "error", err)
	emit(e.progress, ProgressEvent{
		Type:     FlowError,
		Message:  fmt.Sprintf("Flow %q failed: %v", e.spec.Name, err),
		Metadata: map[string]any{"flow": e.spec.Name},
	})
}
