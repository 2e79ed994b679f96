package runtime

import (
	"fmt"
	"log/slog"
)

// Executor dispatches individual flow steps: it resolves the step's input
// templates against the execution context, invokes the prompt or skill
// executor, and normalizes the result into a field mapping.
type Executor struct {
	l        *slog.Logger
	prompts  PromptExecutor
	skills   SkillExecutor
	progress ProgressCallback
}

func NewExecutor(l *slog.Logger, prompts PromptExecutor, skills SkillExecutor, progress ProgressCallback) *Executor {
	if l == nil {
		l = slog.Default()
	}
	return &Executor{
		l:        l,
		prompts:  prompts,
		skills:   skills,
		progress: progress,
	}
}

// RunStep executes one step. position is 1-based; total is the number of
// steps in the whole flow. Executor failures come back as a StepError,
// unresolvable templates as a TemplateError; neither is retried.
func (e *Executor) RunStep(exec *Execution, step *FlowStep, position, total int) (map[string]any, error) {
	e.l.InfoContext(exec, "executing flow step", "step", step.Name, "position", position, "total", total)

	emit(e.progress, ProgressEvent{
		Type:        FlowStepStart,
		Message:     fmt.Sprintf("Executing step: %s", step.Name),
		CurrentStep: position,
		TotalSteps:  total,
		StepName:    step.Name,
		Metadata:    map[string]any{"prompt": step.Prompt, "skill": step.Skill},
	})

	resolved, err := e.resolveInputs(exec, step)
	if err != nil {
		e.emitStepError(step, position, total, err)
		return nil, err
	}

	var result any
	switch {
	case step.Prompt != "":
		result, err = e.prompts.Execute(exec, step.Prompt, resolved)
	case step.Skill != "":
		result, err = e.skills.Execute(exec, step.Skill, resolved)
	default:
		// The loader rejects this shape; it can only appear for specs
		// built by hand.
		err = fmt.Errorf("step has neither prompt nor skill")
	}
	if err != nil {
		wrapped := &StepError{Step: step.Name, Err: err}
		e.emitStepError(step, position, total, wrapped)
		return nil, wrapped
	}

	results := wrapResult(result, step)
	e.l.DebugContext(exec, "step completed", "step", step.Name, "fields", len(results))

	emit(e.progress, ProgressEvent{
		Type:        FlowStepComplete,
		Message:     fmt.Sprintf("Completed step: %s", step.Name),
		CurrentStep: position,
		TotalSteps:  total,
		StepName:    step.Name,
		Metadata:    map[string]any{"result_fields": sortedKeys(results)},
	})

	return results, nil
}

func (e *Executor) resolveInputs(exec *Execution, step *FlowStep) (map[string]string, error) {
	resolved := make(map[string]string, len(step.Inputs))
	for _, param := range sortedKeys(step.Inputs) {
		value, err := ResolveTemplate(step.Inputs[param], exec)
		if err != nil {
			if terr, ok := err.(*TemplateError); ok {
				terr.Step = step.Name
			}
			return nil, err
		}
		resolved[param] = value
	}
	return resolved, nil
}

func (e *Executor) emitStepError(step *FlowStep, position, total int, err error) {
	emit(e.progress, ProgressEvent{
		Type:        FlowError,
		Message:     fmt.Sprintf("Step %q failed: %v", step.Name, err),
		CurrentStep: position,
		TotalSteps:  total,
		StepName:    step.Name,
	})
}

// wrapResult normalizes an executor result into a field mapping. A
// mapping passes through unchanged; a scalar is keyed by the step's
// first declared output, falling back to "result".
func wrapResult(result any, step *FlowStep) map[string]any {
	if m, ok := result.(map[string]any); ok {
		return m
	}
	if len(step.Outputs) > 0 {
		return map[string]any{step.Outputs[0]: result}
	}
	return map[string]any{"result": result}
}
