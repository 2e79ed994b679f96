package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/philiporange/orac-sub000/runtime"
)

// Executor implements runtime.SkillExecutor by running skill scripts as
// subprocesses: inputs go in as JSON on stdin, the result comes back as
// JSON on stdout, and the spec's security timeout bounds the wall clock.
type Executor struct {
	dir         string
	interpreter string
	l           *slog.Logger
	progress    runtime.ProgressCallback
}

// Option configures an Executor.
type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.l = l }
}

func WithProgressCallback(cb runtime.ProgressCallback) Option {
	return func(e *Executor) { e.progress = cb }
}

// WithInterpreter overrides the script interpreter (default python3).
func WithInterpreter(interpreter string) Option {
	return func(e *Executor) { e.interpreter = interpreter }
}

func NewExecutor(dir string, opts ...Option) *Executor {
	e := &Executor{dir: dir, interpreter: "python3"}
	for _, opt := range opts {
		opt(e)
	}
	if e.l == nil {
		e.l = slog.Default()
	}
	return e
}

// Execute runs the named skill with the given inputs. Inputs are coerced
// to the spec's declared types before the script sees them; a mapping
// result must contain every declared output.
func (e *Executor) Execute(ctx context.Context, name string, inputs map[string]string) (any, error) {
	spec, err := Load(filepath.Join(e.dir, name+".yaml"))
	if err != nil {
		return nil, err
	}

	e.emit(runtime.SkillStart, fmt.Sprintf("Running skill: %s", name), name)

	payload, err := e.validateInputs(spec, inputs)
	if err != nil {
		e.emit(runtime.SkillError, fmt.Sprintf("Skill %q failed: %v", name, err), name)
		return nil, err
	}

	result, err := e.runScript(ctx, spec, payload)
	if err != nil {
		e.emit(runtime.SkillError, fmt.Sprintf("Skill %q failed: %v", name, err), name)
		return nil, err
	}

	if err := validateOutputs(spec, result); err != nil {
		e.emit(runtime.SkillError, fmt.Sprintf("Skill %q failed: %v", name, err), name)
		return nil, err
	}

	e.emit(runtime.SkillComplete, fmt.Sprintf("Completed skill: %s", name), name)
	return result, nil
}

func (e *Executor) validateInputs(spec *Spec, inputs map[string]string) (map[string]any, error) {
	payload := make(map[string]any, len(spec.Inputs))

	for i := range spec.Inputs {
		in := &spec.Inputs[i]

		var raw any
		if v, ok := inputs[in.Name]; ok {
			raw = v
		} else if in.Default != nil {
			raw = in.Default
		} else if in.IsRequired() {
			return nil, fmt.Errorf("skill %q: required input %q is missing", spec.Name, in.Name)
		} else {
			continue
		}

		value, err := runtime.CoerceValue(raw, in.Type)
		if err != nil {
			return nil, fmt.Errorf("skill %q: input %q: %w", spec.Name, in.Name, err)
		}
		payload[in.Name] = value
	}

	return payload, nil
}

func (e *Executor) runScript(ctx context.Context, spec *Spec, payload map[string]any) (any, error) {
	script := filepath.Join(e.dir, spec.Name+".py")

	stdin, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("skill %q: cannot encode inputs: %w", spec.Name, err)
	}

	timeout := time.Duration(spec.Security.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.l.InfoContext(ctx, "running skill script", "skill", spec.Name, "script", script, "timeout", timeout)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.interpreter, script)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("skill %q: timed out after %s", spec.Name, timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("skill %q: script failed: %s: %w", spec.Name, detail, err)
		}
		return nil, fmt.Errorf("skill %q: script failed: %w", spec.Name, err)
	}

	var result any
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("skill %q: script produced invalid JSON: %w", spec.Name, err)
	}
	return result, nil
}

// validateOutputs checks a mapping result against the declared outputs.
// Scalar results are always valid; the dispatcher wraps them.
func validateOutputs(spec *Spec, result any) error {
	m, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	for _, out := range spec.Outputs {
		if _, ok := m[out.Name]; !ok {
			return fmt.Errorf("skill %q: missing declared output %q", spec.Name, out.Name)
		}
	}
	return nil
}

func (e *Executor) emit(typ runtime.ProgressType, message, name string) {
	if e.progress == nil {
		return
	}
	e.progress(runtime.ProgressEvent{
		Type:      typ,
		Message:   message,
		Metadata:  map[string]any{"skill": name},
		Timestamp: time.Now(),
	})
}
