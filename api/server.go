// Package api exposes the flow engine over HTTP.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philiporange/orac-sub000/app"
	"github.com/philiporange/orac-sub000/runtime"
	"github.com/philiporange/orac-sub000/store"
)

// Server handles flow execution requests.
type Server struct {
	app  *app.App
	runs *store.Store // optional
	l    *slog.Logger
}

// NewServer builds the HTTP surface. runs may be nil to disable history.
func NewServer(a *app.App, runs *store.Store, l *slog.Logger) *Server {
	if l == nil {
		l = slog.Default()
	}
	return &Server{app: a, runs: runs, l: l}
}

// Router returns a gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())

	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.Group("/api/v1")
	v1.GET("/flows", s.listFlows)
	v1.GET("/flows/:name", s.showFlow)
	v1.POST("/flows/:name/run", s.runFlow)
	v1.GET("/runs", s.listRuns)
	v1.GET("/runs/:id", s.getRun)

	return g
}

func (s *Server) listFlows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"flows": s.app.ListFlows()})
}

func (s *Server) showFlow(c *gin.Context) {
	name := c.Param("name")
	spec, ok := s.app.Flows[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown flow: " + name})
		return
	}

	engine, err := s.app.Engine(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	steps := make([]gin.H, 0, len(spec.StepOrder))
	for _, stepName := range spec.StepOrder {
		step := spec.Steps[stepName]
		steps = append(steps, gin.H{
			"name":       step.Name,
			"prompt":     step.Prompt,
			"skill":      step.Skill,
			"depends_on": step.DependsOn,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"name":        spec.Name,
		"description": spec.Description,
		"steps":       steps,
		"order":       engine.ExecutionOrder(),
	})
}

type runRequest struct {
	Inputs map[string]any `json:"inputs"`
	DryRun bool           `json:"dry_run"`
}

func (s *Server) runFlow(c *gin.Context) {
	name := c.Param("name")
	if _, ok := s.app.Flows[name]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown flow: " + name})
		return
	}

	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	engine, err := s.app.Engine(name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	started := time.Now()
	result, err := engine.Execute(c.Request.Context(), req.Inputs, req.DryRun)
	if err != nil {
		s.l.Error("flow execution failed", "flow", name, "error", err)
		s.record(c, name, req.Inputs, nil, "", err, started)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if !result.DryRun {
		s.record(c, name, req.Inputs, result.Outputs, result.RunID, nil, started)
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is disabled"})
		return
	}
	runs, err := s.runs.ListRuns(c.Request.Context(), c.Query("flow"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is disabled"})
		return
	}
	run, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) record(c *gin.Context, flow string, inputs, outputs map[string]any, runID string, execErr error, started time.Time) {
	if s.runs == nil {
		return
	}

	run := store.Run{
		ID:         runID,
		Flow:       flow,
		Status:     store.StatusSucceeded,
		Inputs:     inputs,
		Outputs:    outputs,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if execErr != nil {
		run.Status = store.StatusFailed
		run.Error = execErr.Error()
	}
	if run.ID == "" {
		run.ID = flow + "-" + started.UTC().Format("20060102T150405.000000000")
	}

	if err := s.runs.RecordRun(c.Request.Context(), run); err != nil {
		s.l.Warn("failed to record run", "flow", flow, "error", err)
	}
}

// statusFor maps engine errors onto HTTP statuses: caller mistakes are
// 4xx, execution failures 500.
func statusFor(err error) int {
	var (
		specErr       *runtime.SpecError
		graphErr      *runtime.GraphError
		validationErr *runtime.ValidationError
	)
	switch {
	case errors.As(err, &specErr), errors.As(err, &graphErr), errors.As(err, &validationErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
