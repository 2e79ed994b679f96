package runtime

import (
	"context"
	"testing"
	"time"
)

func TestExecution_InputsAreAddressable(t *testing.T) {
	exec := newTestExecution(map[string]any{"url": "https://example.com"})

	v, ok := exec.Lookup("inputs", "url")
	if !ok || v != "https://example.com" {
		t.Errorf("Expected input lookup to resolve, got %v, %v", v, ok)
	}

	if _, ok := exec.Lookup("inputs", "missing"); ok {
		t.Error("Expected missing input lookup to fail")
	}
}

func TestExecution_StepResults(t *testing.T) {
	exec := newTestExecution(nil)

	if exec.HasStepResult("fetch") {
		t.Error("Expected no result before the step ran")
	}

	exec.AddStepResult("fetch", map[string]any{"body": "text", "status": 200})

	if !exec.HasStepResult("fetch") {
		t.Error("Expected recorded result")
	}
	if v, _ := exec.Lookup("fetch", "status"); v != 200 {
		t.Errorf("Expected 200, got %v", v)
	}
	if m := exec.StepResult("fetch"); m["body"] != "text" {
		t.Errorf("Expected result mapping, got %v", m)
	}
}

func TestExecution_EmptyResultStillRecorded(t *testing.T) {
	exec := newTestExecution(nil)
	exec.AddStepResult("noop", map[string]any{})

	if !exec.HasStepResult("noop") {
		t.Error("Expected empty result to count as ran")
	}
}

func TestExecution_DistinctRunIDs(t *testing.T) {
	a := newTestExecution(nil)
	b := newTestExecution(nil)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected distinct non-empty run IDs, got %q and %q", a.ID, b.ID)
	}
}

func TestExecution_DelegatesContext(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()

	exec := NewExecution(ctx, &FlowSpec{Name: "test"}, nil)

	if _, ok := exec.Deadline(); !ok {
		t.Error("Expected deadline to pass through")
	}

	cancel()
	select {
	case <-exec.Done():
	default:
		t.Error("Expected cancellation to pass through")
	}
}
