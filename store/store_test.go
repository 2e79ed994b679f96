package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id, flow string, started time.Time) Run {
	return Run{
		ID:         id,
		Flow:       flow,
		Status:     StatusSucceeded,
		Inputs:     map[string]any{"url": "https://example.com"},
		Outputs:    map[string]any{"summary": "short"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestRecordAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", "summarize", time.Now())
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Flow != "summarize" {
		t.Errorf("Expected flow 'summarize', got %q", got.Flow)
	}
	if got.Status != StatusSucceeded {
		t.Errorf("Expected status %q, got %q", StatusSucceeded, got.Status)
	}
	if got.Inputs["url"] != "https://example.com" {
		t.Errorf("Expected decoded inputs, got %v", got.Inputs)
	}
	if got.Outputs["summary"] != "short" {
		t.Errorf("Expected decoded outputs, got %v", got.Outputs)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetRun(context.Background(), "ghost"); err == nil {
		t.Fatal("Expected error for unknown run")
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"old", "mid", "new"} {
		if err := s.RecordRun(ctx, sampleRun(id, "f", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[2].ID != "old" {
		t.Errorf("Expected newest first, got %v, %v, %v", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestListRuns_FilterByFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RecordRun(ctx, sampleRun("a", "alpha", time.Now()))
	s.RecordRun(ctx, sampleRun("b", "beta", time.Now()))

	runs, err := s.ListRuns(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].Flow != "alpha" {
		t.Errorf("Expected only alpha runs, got %v", runs)
	}
}

func TestRecordRun_FailedRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("failed-1", "f", time.Now())
	run.Status = StatusFailed
	run.Error = "step \"b\" failed"
	run.Outputs = nil

	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetRun(ctx, "failed-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusFailed || got.Error == "" {
		t.Errorf("Expected failed run with error, got %+v", got)
	}
}
