// Package cmd wires the command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/philiporange/orac-sub000/app"
	"github.com/philiporange/orac-sub000/prompt"
)

var (
	flowsDir   string
	promptsDir string
	skillsDir  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "orac",
	Short: "Orac - flow execution engine",
	Long: `Orac runs YAML-defined flows: multi-step pipelines that chain
LLM prompts and local skills through a dependency graph.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flowsDir, "flows-dir", "flows", "Directory containing flow YAML files")
	rootCmd.PersistentFlags().StringVar(&promptsDir, "prompts-dir", "prompts", "Directory containing prompt YAML files")
	rootCmd.PersistentFlags().StringVar(&skillsDir, "skills-dir", "skills", "Directory containing skill definitions")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newApp(opts ...app.Option) (*app.App, error) {
	cfg := app.Config{
		FlowsDir:   flowsDir,
		PromptsDir: promptsDir,
		SkillsDir:  skillsDir,
		Prompt: prompt.Config{
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.Prompt.BaseURL = base
	}
	if model := os.Getenv("ORAC_MODEL"); model != "" {
		cfg.Prompt.Model = model
	}

	opts = append([]app.Option{app.WithLogger(newLogger())}, opts...)
	return app.New(cfg, opts...)
}
