package runtime

import "context"

// PromptExecutor runs a templated text-generation call.
// The returned value is either a string or a map[string]any; the
// dispatcher wraps scalars into a result mapping.
type PromptExecutor interface {
	Execute(ctx context.Context, name string, params map[string]string) (any, error)
}

// SkillExecutor runs a sandboxed script. Timeouts are the executor's
// concern; a timeout surfaces as an ordinary error.
type SkillExecutor interface {
	Execute(ctx context.Context, name string, inputs map[string]string) (any, error)
}

// SpecLoader loads a flow specification from a source path.
type SpecLoader interface {
	Load(path string) (*FlowSpec, error)
}
