package cmd

import (
	"fmt"
	"io"

	"github.com/philiporange/orac-sub000/runtime"
)

// consoleProgress renders progress events as plain lines on w.
func consoleProgress(w io.Writer) runtime.ProgressCallback {
	return func(e runtime.ProgressEvent) {
		switch e.Type {
		case runtime.FlowStart:
			fmt.Fprintf(w, "%s\n", e.Message)
		case runtime.FlowStepStart:
			fmt.Fprintf(w, "[%d/%d] %s\n", e.CurrentStep, e.TotalSteps, e.Message)
		case runtime.FlowComplete:
			fmt.Fprintf(w, "%s\n", e.Message)
		case runtime.FlowError:
			fmt.Fprintf(w, "error: %s\n", e.Message)
		}
	}
}
