// Package app wires the engine together: it scans the flows, prompts,
// and skills directories, builds executors, and hands out ready-to-run
// engines by flow name.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/creasty/defaults"

	"github.com/philiporange/orac-sub000/prompt"
	"github.com/philiporange/orac-sub000/runtime"
	yamlengine "github.com/philiporange/orac-sub000/runtime/engine/yaml"
	"github.com/philiporange/orac-sub000/skill"
)

// Config locates the asset directories and carries the prompt executor
// settings.
type Config struct {
	FlowsDir   string        `yaml:"flows_dir" default:"flows"`
	PromptsDir string        `yaml:"prompts_dir" default:"prompts"`
	SkillsDir  string        `yaml:"skills_dir" default:"skills"`
	Prompt     prompt.Config `yaml:"prompt"`
}

// FlowInfo is a catalog entry for one loadable flow.
type FlowInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
}

// App holds the loaded flow registry and the executors shared by every
// engine it builds.
type App struct {
	Flows map[string]*runtime.FlowSpec

	cfg      Config
	loader   *yamlengine.Loader
	prompts  runtime.PromptExecutor
	skills   runtime.SkillExecutor
	l        *slog.Logger
	progress runtime.ProgressCallback
}

// Option configures an App.
type Option func(*App)

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.l = l }
}

func WithProgressCallback(cb runtime.ProgressCallback) Option {
	return func(a *App) { a.progress = cb }
}

// WithExecutors overrides the prompt and skill executors, mainly for
// tests.
func WithExecutors(prompts runtime.PromptExecutor, skills runtime.SkillExecutor) Option {
	return func(a *App) {
		a.prompts = prompts
		a.skills = skills
	}
}

// New scans cfg.FlowsDir and builds the registry. Flows that fail to
// load are skipped with a warning so one broken file does not take the
// whole catalog down.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("app config: %w", err)
	}

	a := &App{
		Flows:  make(map[string]*runtime.FlowSpec),
		cfg:    cfg,
		loader: yamlengine.NewLoader(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.l == nil {
		a.l = slog.Default()
	}

	if a.prompts == nil {
		prompts, err := prompt.NewExecutor(cfg.PromptsDir, cfg.Prompt,
			prompt.WithLogger(a.l), prompt.WithProgressCallback(a.progress))
		if err != nil {
			return nil, err
		}
		a.prompts = prompts
	}
	if a.skills == nil {
		a.skills = skill.NewExecutor(cfg.SkillsDir,
			skill.WithLogger(a.l), skill.WithProgressCallback(a.progress))
	}

	files, err := filepath.Glob(filepath.Join(cfg.FlowsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning flows dir: %w", err)
	}
	for _, file := range files {
		spec, err := a.loader.Load(file)
		if err != nil {
			a.l.Warn("skipping flow that failed to load", "file", file, "error", err)
			continue
		}
		a.Flows[spec.Name] = spec
	}

	return a, nil
}

// Engine builds an execution engine for a registered flow. Graph
// validation happens here, so an unrunnable flow fails before any
// executor is touched.
func (a *App) Engine(name string) (*runtime.Engine, error) {
	spec, ok := a.Flows[name]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q", name)
	}
	return runtime.NewEngine(spec, a.prompts, a.skills,
		runtime.WithLogger(a.l),
		runtime.WithProgressCallback(a.progress))
}

// ListFlows returns catalog entries sorted by registry order.
func (a *App) ListFlows() []FlowInfo {
	infos := make([]FlowInfo, 0, len(a.Flows))
	for _, name := range sortedFlowNames(a.Flows) {
		spec := a.Flows[name]
		infos = append(infos, FlowInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Steps:       len(spec.Steps),
		})
	}
	return infos
}

func sortedFlowNames(flows map[string]*runtime.FlowSpec) []string {
	names := make([]string, 0, len(flows))
	for name := range flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
