// Package runtime contains the flow execution engine: typed flow
// specifications, dependency-graph construction with cycle detection,
// deterministic topological planning, ${...} template resolution against
// a per-run execution context, and the step-dispatch loop that feeds
// prompt and skill executors.
package runtime
