package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-resty/resty/v2"

	"github.com/philiporange/orac-sub000/runtime"
)

// Config holds the executor's connection defaults. Per-prompt settings
// in a Spec override these.
type Config struct {
	BaseURL string        `yaml:"base_url" default:"https://api.openai.com/v1" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model" default:"gpt-4o-mini"`
	Timeout time.Duration `yaml:"timeout" default:"120s"`
}

// Executor implements runtime.PromptExecutor over an OpenAI-compatible
// chat-completions API.
type Executor struct {
	dir      string
	cfg      Config
	client   *resty.Client
	l        *slog.Logger
	progress runtime.ProgressCallback
}

// Option configures an Executor.
type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.l = l }
}

func WithProgressCallback(cb runtime.ProgressCallback) Option {
	return func(e *Executor) { e.progress = cb }
}

// NewExecutor builds a prompt executor reading specs from dir.
func NewExecutor(dir string, cfg Config, opts ...Option) (*Executor, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("prompt executor config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("prompt executor config: %w", err)
	}

	e := &Executor{dir: dir, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.l == nil {
		e.l = slog.Default()
	}

	e.client = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return e, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Extra    map[string]any `json:"-"`
}

// MarshalJSON folds generation_config keys into the request body next to
// model and messages, the way the API expects them.
func (r chatRequest) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"model":    r.Model,
		"messages": r.Messages,
	}
	for k, v := range r.Extra {
		body[k] = v
	}
	return json.Marshal(body)
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Execute loads the named prompt spec, renders its template with the
// resolved parameters, and calls the completion endpoint. A completion
// that parses as a JSON object comes back as a map; anything else is the
// raw string.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]string) (any, error) {
	spec, err := Load(filepath.Join(e.dir, name+".yaml"))
	if err != nil {
		return nil, err
	}

	message, err := spec.Render(params)
	if err != nil {
		return nil, err
	}

	e.emit(runtime.PromptStart, fmt.Sprintf("Running prompt: %s", name), name)
	e.l.InfoContext(ctx, "calling completion endpoint", "prompt", name, "model", e.model(spec))

	req := chatRequest{
		Model: e.model(spec),
		Extra: spec.GenerationConfig,
	}
	if spec.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: spec.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: message})

	var out chatResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetAuthToken(e.apiKey(spec)).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(e.endpoint(spec))
	if err != nil {
		e.emit(runtime.PromptError, fmt.Sprintf("Prompt %q failed: %v", name, err), name)
		return nil, fmt.Errorf("prompt %q: completion request: %w", name, err)
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if out.Error != nil {
			msg = out.Error.Message
		}
		e.emit(runtime.PromptError, fmt.Sprintf("Prompt %q failed: %s", name, msg), name)
		return nil, fmt.Errorf("prompt %q: completion endpoint returned %s: %s", name, resp.Status(), msg)
	}
	if len(out.Choices) == 0 {
		e.emit(runtime.PromptError, fmt.Sprintf("Prompt %q returned no choices", name), name)
		return nil, fmt.Errorf("prompt %q: completion endpoint returned no choices", name)
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	e.emit(runtime.PromptComplete, fmt.Sprintf("Completed prompt: %s", name), name)

	if structured, ok := parseJSONObject(content); ok {
		return structured, nil
	}
	return content, nil
}

// endpoint returns the completions path for a call. A prompt spec with
// its own base_url overrides the executor's default; an absolute URL
// makes resty bypass the client's base URL.
func (e *Executor) endpoint(spec *Spec) string {
	if spec.BaseURL != "" {
		return strings.TrimSuffix(spec.BaseURL, "/") + "/chat/completions"
	}
	return "/chat/completions"
}

func (e *Executor) model(spec *Spec) string {
	if spec.Model != "" {
		return spec.Model
	}
	return e.cfg.Model
}

// apiKey resolves the key for a call. Prompt specs may carry a literal
// key or a ${ENV_VAR} reference.
func (e *Executor) apiKey(spec *Spec) string {
	key := spec.APIKey
	if key == "" {
		key = e.cfg.APIKey
	}
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		return os.Getenv(key[2 : len(key)-1])
	}
	return key
}

func (e *Executor) emit(typ runtime.ProgressType, message, name string) {
	if e.progress == nil {
		return
	}
	e.progress(runtime.ProgressEvent{
		Type:      typ,
		Message:   message,
		Metadata:  map[string]any{"prompt": name},
		Timestamp: time.Now(),
	})
}

// parseJSONObject reports whether a completion is a JSON object and
// returns it decoded when it is.
func parseJSONObject(content string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(content)
	// Models often fence JSON answers in markdown blocks.
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, false
	}
	return out, true
}
