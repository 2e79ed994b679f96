package runtime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// stubExecutor records calls and serves canned results keyed by
// prompt/skill name.
type stubExecutor struct {
	mu      sync.Mutex
	calls   []string
	params  map[string]map[string]string
	results map[string]any
	errs    map[string]error
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		params:  make(map[string]map[string]string),
		results: make(map[string]any),
		errs:    make(map[string]error),
	}
}

func (s *stubExecutor) Execute(ctx context.Context, name string, params map[string]string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	s.params[name] = params
	if err := s.errs[name]; err != nil {
		return nil, err
	}
	if result, ok := s.results[name]; ok {
		return result, nil
	}
	return fmt.Sprintf("output of %s", name), nil
}

func TestEngine_ExecutesInDependencyOrder(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "report", Prompt: "report", Inputs: map[string]string{
			"summary": "${summarize.result}",
			"label":   "${classify.result}",
		}},
		&FlowStep{Name: "fetch", Skill: "fetch", Inputs: map[string]string{
			"url": "${inputs.url}",
		}, Outputs: []string{"body"}},
		&FlowStep{Name: "classify", Prompt: "classify", Inputs: map[string]string{
			"text": "${fetch.body}",
		}},
		&FlowStep{Name: "summarize", Prompt: "summarize", Inputs: map[string]string{
			"text": "${fetch.body}",
		}},
	)
	spec.Inputs = []FlowInput{{Name: "url", Type: "string", Required: true}}
	spec.Outputs = []FlowOutput{{Name: "report", Source: "report.result"}}

	prompts := newStubExecutor()
	skills := newStubExecutor()
	skills.results["fetch"] = map[string]any{"body": "page text"}
	prompts.results["report"] = "final report"

	engine, err := NewEngine(spec, prompts, skills)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := engine.Execute(context.Background(), map[string]any{"url": "https://example.com"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// fetch first, then classify and summarize in declaration order,
	// report last.
	wantOrder := []string{"fetch", "classify", "summarize", "report"}
	if !reflect.DeepEqual(result.Order, wantOrder) {
		t.Errorf("Expected order %v, got %v", wantOrder, result.Order)
	}
	if !reflect.DeepEqual(skills.calls, []string{"fetch"}) {
		t.Errorf("Expected skill calls [fetch], got %v", skills.calls)
	}
	if !reflect.DeepEqual(prompts.calls, []string{"classify", "summarize", "report"}) {
		t.Errorf("Expected prompt calls [classify summarize report], got %v", prompts.calls)
	}

	if got := skills.params["fetch"]["url"]; got != "https://example.com" {
		t.Errorf("Expected resolved url input, got %q", got)
	}
	if got := prompts.params["classify"]["text"]; got != "page text" {
		t.Errorf("Expected resolved text input, got %q", got)
	}

	if got := result.Outputs["report"]; got != "final report" {
		t.Errorf("Expected output 'final report', got %v", got)
	}
	if result.RunID == "" {
		t.Error("Expected a run ID")
	}
}

// echoExecutor returns {"result": <rendered input param>} so chained
// steps can be traced end to end.
type echoExecutor struct {
	calls []string
}

func (e *echoExecutor) Execute(ctx context.Context, name string, params map[string]string) (any, error) {
	e.calls = append(e.calls, name)
	return map[string]any{"result": "echo(" + params["text"] + ")"}, nil
}

func TestEngine_ChainedResultsFlowThrough(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "gather", Prompt: "gather", Inputs: map[string]string{
			"text": "${inputs.topic}",
		}},
		&FlowStep{Name: "summarize", Prompt: "summarize",
			DependsOn: []string{"gather"},
			Inputs:    map[string]string{"text": "${gather.result}"}},
	)
	spec.Inputs = []FlowInput{{Name: "topic", Type: "string", Required: true}}
	spec.Outputs = []FlowOutput{{Name: "summary", Source: "summarize.result"}}

	prompts := &echoExecutor{}
	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := engine.Execute(context.Background(), map[string]any{"topic": "bees"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(prompts.calls, []string{"gather", "summarize"}) {
		t.Errorf("Expected gather before summarize, got %v", prompts.calls)
	}
	if got := result.Outputs["summary"]; got != "echo(echo(bees))" {
		t.Errorf("Expected 'echo(echo(bees))', got %v", got)
	}
}

func TestEngine_DryRunTouchesNothing(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "a", Prompt: "a"},
		&FlowStep{Name: "b", Prompt: "b", DependsOn: []string{"a"}},
	)
	spec.Inputs = []FlowInput{{Name: "must", Type: "string", Required: true}}

	prompts := newStubExecutor()
	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := engine.Execute(context.Background(), map[string]any{"must": "x"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.DryRun {
		t.Error("Expected DryRun to be set")
	}
	if !reflect.DeepEqual(result.Order, []string{"a", "b"}) {
		t.Errorf("Expected order [a b], got %v", result.Order)
	}
	if len(prompts.calls) != 0 {
		t.Errorf("Expected no executor calls, got %v", prompts.calls)
	}
	if result.Outputs != nil {
		t.Errorf("Expected no outputs, got %v", result.Outputs)
	}
}

func TestEngine_DryRunValidatesInputs(t *testing.T) {
	spec := specOf(&FlowStep{Name: "a", Prompt: "a"})
	spec.Inputs = []FlowInput{{Name: "must", Type: "string", Required: true}}

	prompts := newStubExecutor()
	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = engine.Execute(context.Background(), nil, true)
	if err == nil {
		t.Fatal("Expected dry run to report the missing required input")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if verr.Input != "must" {
		t.Errorf("Expected input 'must', got %q", verr.Input)
	}
	if len(prompts.calls) != 0 {
		t.Errorf("Expected no executor calls, got %v", prompts.calls)
	}
}

func TestEngine_MissingRequiredInput(t *testing.T) {
	spec := specOf(&FlowStep{Name: "a", Prompt: "a"})
	spec.Inputs = []FlowInput{{Name: "url", Type: "string", Required: true}}

	engine, err := NewEngine(spec, newStubExecutor(), newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = engine.Execute(context.Background(), nil, false)
	if err == nil {
		t.Fatal("Expected error for missing required input")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if verr.Input != "url" {
		t.Errorf("Expected input 'url', got %q", verr.Input)
	}
}

func TestEngine_AppliesInputDefaults(t *testing.T) {
	spec := specOf(&FlowStep{Name: "a", Prompt: "a", Inputs: map[string]string{
		"lang": "${inputs.lang}",
	}})
	spec.Inputs = []FlowInput{{Name: "lang", Type: "string", Default: "en"}}

	prompts := newStubExecutor()
	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Execute(context.Background(), nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := prompts.params["a"]["lang"]; got != "en" {
		t.Errorf("Expected default 'en', got %q", got)
	}
}

func TestEngine_CoercesInputs(t *testing.T) {
	spec := specOf(&FlowStep{Name: "a", Prompt: "a", Inputs: map[string]string{
		"n": "${inputs.count}",
	}})
	spec.Inputs = []FlowInput{{Name: "count", Type: "int", Required: true}}

	prompts := newStubExecutor()
	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Execute(context.Background(), map[string]any{"count": "42"}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := prompts.params["a"]["n"]; got != "42" {
		t.Errorf("Expected '42', got %q", got)
	}
}

func TestEngine_FailFast(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "a", Prompt: "a"},
		&FlowStep{Name: "b", Prompt: "b", DependsOn: []string{"a"}},
		&FlowStep{Name: "c", Prompt: "c", DependsOn: []string{"b"}},
	)

	prompts := newStubExecutor()
	prompts.errs["b"] = errors.New("model unavailable")

	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := engine.Execute(context.Background(), nil, false)
	if err == nil {
		t.Fatal("Expected error from failing step")
	}
	if result != nil {
		t.Errorf("Expected nil result on failure, got %v", result)
	}

	var serr *StepError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *StepError, got %T", err)
	}
	if serr.Step != "b" {
		t.Errorf("Expected failing step 'b', got %q", serr.Step)
	}
	// c must never have started.
	if !reflect.DeepEqual(prompts.calls, []string{"a", "b"}) {
		t.Errorf("Expected calls [a b], got %v", prompts.calls)
	}
}

func TestEngine_ScalarResultWrapping(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "gen", Prompt: "gen", Outputs: []string{"text"}},
		&FlowStep{Name: "use", Prompt: "use", Inputs: map[string]string{
			"in": "${gen.text}",
		}},
	)

	prompts := newStubExecutor()
	prompts.results["gen"] = "scalar value"

	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Execute(context.Background(), nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := prompts.params["use"]["in"]; got != "scalar value" {
		t.Errorf("Expected 'scalar value', got %q", got)
	}
}

func TestEngine_ScalarResultDefaultKey(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "gen", Prompt: "gen"},
		&FlowStep{Name: "use", Prompt: "use", Inputs: map[string]string{
			"in": "${gen.result}",
		}},
	)

	prompts := newStubExecutor()
	prompts.results["gen"] = "fallback keyed"

	engine, err := NewEngine(spec, prompts, newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Execute(context.Background(), nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := prompts.params["use"]["in"]; got != "fallback keyed" {
		t.Errorf("Expected 'fallback keyed', got %q", got)
	}
}

func TestEngine_OutputErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"bad shape", "justastep", "shape"},
		{"missing field", "a.nothere", "no field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := specOf(&FlowStep{Name: "a", Prompt: "a"})
			spec.Outputs = []FlowOutput{{Name: "out", Source: tt.source}}

			engine, err := NewEngine(spec, newStubExecutor(), newStubExecutor())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, err = engine.Execute(context.Background(), nil, false)
			if err == nil {
				t.Fatal("Expected output resolution error")
			}
			var oerr *OutputError
			if !errors.As(err, &oerr) {
				t.Fatalf("Expected *OutputError, got %T", err)
			}
			if !strings.Contains(oerr.Message, tt.message) {
				t.Errorf("Expected message containing %q, got %q", tt.message, oerr.Message)
			}
		})
	}
}

func TestEngine_ProgressEvents(t *testing.T) {
	spec := specOf(
		&FlowStep{Name: "a", Prompt: "a"},
		&FlowStep{Name: "b", Prompt: "b", DependsOn: []string{"a"}},
	)

	tracker := &ProgressTracker{}
	engine, err := NewEngine(spec, newStubExecutor(), newStubExecutor(),
		WithProgressCallback(tracker.Track))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Execute(context.Background(), nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(tracker.ByType(FlowStart)); n != 1 {
		t.Errorf("Expected 1 flow_start event, got %d", n)
	}
	if n := len(tracker.ByType(FlowStepStart)); n != 2 {
		t.Errorf("Expected 2 flow_step_start events, got %d", n)
	}
	if n := len(tracker.ByType(FlowStepComplete)); n != 2 {
		t.Errorf("Expected 2 flow_step_complete events, got %d", n)
	}
	if n := len(tracker.ByType(FlowComplete)); n != 1 {
		t.Errorf("Expected 1 flow_complete event, got %d", n)
	}

	steps := tracker.ByType(FlowStepStart)
	if steps[0].CurrentStep != 1 || steps[0].TotalSteps != 2 {
		t.Errorf("Expected step 1/2, got %d/%d", steps[0].CurrentStep, steps[0].TotalSteps)
	}
}

func TestEngine_ErrorEventOnFailure(t *testing.T) {
	spec := specOf(&FlowStep{Name: "a", Prompt: "a"})

	prompts := newStubExecutor()
	prompts.errs["a"] = errors.New("boom")

	tracker := &ProgressTracker{}
	engine, err := NewEngine(spec, prompts, newStubExecutor(),
		WithProgressCallback(tracker.Track))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Execute(context.Background(), nil, false); err == nil {
		t.Fatal("Expected error")
	}
	if len(tracker.ByType(FlowError)) == 0 {
		t.Error("Expected a flow_error event")
	}
	if len(tracker.ByType(FlowComplete)) != 0 {
		t.Error("Unexpected flow_complete event after failure")
	}
}

func TestEngine_InputMapNotMutated(t *testing.T) {
	spec := specOf(&FlowStep{Name: "a", Prompt: "a"})
	spec.Inputs = []FlowInput{{Name: "lang", Type: "string", Default: "en"}}

	engine, err := NewEngine(spec, newStubExecutor(), newStubExecutor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inputs := map[string]any{}
	if _, err := engine.Execute(context.Background(), inputs, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 0 {
		t.Errorf("Caller's input map was mutated: %v", inputs)
	}
}
