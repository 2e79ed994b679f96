package runtime

import "time"

// ProgressType identifies a kind of progress event.
type ProgressType string

const (
	// Flow events.
	FlowStart        ProgressType = "flow_start"
	FlowStepStart    ProgressType = "flow_step_start"
	FlowStepComplete ProgressType = "flow_step_complete"
	FlowComplete     ProgressType = "flow_complete"
	FlowError        ProgressType = "flow_error"

	// Single executor events, emitted by prompt/skill executors.
	PromptStart    ProgressType = "prompt_start"
	PromptComplete ProgressType = "prompt_complete"
	PromptError    ProgressType = "prompt_error"
	SkillStart     ProgressType = "skill_start"
	SkillComplete  ProgressType = "skill_complete"
	SkillError     ProgressType = "skill_error"
)

// ProgressEvent is a one-way notification emitted during execution.
// Sinks must not affect control flow; the engine behaves identically
// whether or not a callback is attached.
type ProgressEvent struct {
	Type        ProgressType   `json:"type"`
	Message     string         `json:"message"`
	CurrentStep int            `json:"current_step,omitempty"` // 1-based
	TotalSteps  int            `json:"total_steps,omitempty"`
	StepName    string         `json:"step_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Percentage returns execution progress in percent, when step counts are
// known. The boolean reports whether a percentage is available.
func (e ProgressEvent) Percentage() (float64, bool) {
	if e.CurrentStep == 0 || e.TotalSteps == 0 {
		return 0, false
	}
	return float64(e.CurrentStep) / float64(e.TotalSteps) * 100, true
}

// ProgressCallback receives progress events. Nil callbacks are allowed
// everywhere and mean "no sink attached".
type ProgressCallback func(ProgressEvent)

func emit(cb ProgressCallback, event ProgressEvent) {
	if cb == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	cb(event)
}

// ProgressTracker collects events for programmatic inspection instead of
// display.
type ProgressTracker struct {
	Events []ProgressEvent

	start time.Time
	end   time.Time
}

// Track records an event; use it as a ProgressCallback.
func (t *ProgressTracker) Track(event ProgressEvent) {
	if t.start.IsZero() {
		t.start = event.Timestamp
	}
	t.Events = append(t.Events, event)

	switch event.Type {
	case FlowComplete, FlowError, PromptComplete, PromptError:
		t.end = event.Timestamp
	}
}

// Duration returns the wall time between the first and the last terminal
// event, when both are known.
func (t *ProgressTracker) Duration() (time.Duration, bool) {
	if t.start.IsZero() || t.end.IsZero() {
		return 0, false
	}
	return t.end.Sub(t.start), true
}

// Last returns the most recent event, or a zero event when none were
// recorded.
func (t *ProgressTracker) Last() ProgressEvent {
	if len(t.Events) == 0 {
		return ProgressEvent{}
	}
	return t.Events[len(t.Events)-1]
}

// ByType returns all recorded events of one type.
func (t *ProgressTracker) ByType(typ ProgressType) []ProgressEvent {
	var events []ProgressEvent
	for _, e := range t.Events {
		if e.Type == typ {
			events = append(events, e)
		}
	}
	return events
}
