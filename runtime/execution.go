package runtime

import (
	"context"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// Execution is the per-run accumulator of flow inputs and completed step
// results. It is owned by exactly one Execute call and mutated append-only
// as steps finish; it is never shared across concurrent executions.
//
// Execution implements context.Context by delegating to the context the
// run was started with, so executors receive deadlines and cancellation
// through the same value that carries flow state.
type Execution struct {
	ID   string
	Flow *FlowSpec

	store *gabs.Container
	ctx   context.Context
}

func NewExecution(ctx context.Context, flow *FlowSpec, inputs map[string]any) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}

	store := gabs.New()
	store.Object("inputs")
	for name, value := range inputs {
		// Explicit path segments: input names must not be split on dots.
		store.Set(value, "inputs", name)
	}

	return &Execution{
		ID:    uuid.New().String(),
		Flow:  flow,
		store: store,
		ctx:   ctx,
	}
}

func (e *Execution) Deadline() (time.Time, bool) { return e.ctx.Deadline() }
func (e *Execution) Done() <-chan struct{}       { return e.ctx.Done() }
func (e *Execution) Err() error                  { return e.ctx.Err() }
func (e *Execution) Value(key any) any           { return e.ctx.Value(key) }

// AddStepResult records a completed step's result mapping.
func (e *Execution) AddStepResult(step string, results map[string]any) {
	for field, value := range results {
		e.store.Set(value, step, field)
	}
	if len(results) == 0 {
		e.store.Object(step)
	}
}

// Lookup walks the context by path segments: the first segment is either
// the reserved identifier "inputs" or a step name, each later segment a
// field lookup. The boolean reports whether the full path resolved.
func (e *Execution) Lookup(path ...string) (any, bool) {
	if !e.store.Exists(path...) {
		return nil, false
	}
	return e.store.Search(path...).Data(), true
}

// HasStepResult reports whether a step's results were recorded.
func (e *Execution) HasStepResult(step string) bool {
	return e.store.Exists(step)
}

// StepResult returns a recorded step result mapping, or nil.
func (e *Execution) StepResult(step string) map[string]any {
	v, ok := e.store.Search(step).Data().(map[string]any)
	if !ok {
		return nil
	}
	return v
}
