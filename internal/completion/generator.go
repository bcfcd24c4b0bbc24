package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"codepad/internal/logging"
)

var tracer = otel.Tracer("codepad.completion")

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "codellama:latest"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Generator produces raw completion text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Config selects and configures a generator.
type Config struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NewGenerator builds the generator named by cfg.Provider ("ollama" by
// default, or "openai").
func NewGenerator(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllama(cfg), nil
	case "openai":
		return NewOpenAI(cfg)
	}
	return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
	options    map[string]any
	log        *zap.Logger
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllama(cfg Config) *Ollama {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	options := map[string]any{}
	if cfg.Temperature > 0 {
		options["temperature"] = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		options["num_predict"] = cfg.MaxTokens
	}
	return &Ollama{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
		options:    options,
		log:        logging.Named("ollama"),
	}
}

func (o *Ollama) Model() string { return o.model }

// Generate implements Generator.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "Ollama.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model), attribute.Int("llm.prompt_bytes", len(prompt)))

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: o.options,
	})
	if err != nil {
		fail(span, err)
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		fail(span, err)
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		fail(span, err)
		return "", fmt.Errorf("ollama call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(span, err)
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		fail(span, err)
		o.log.Warn("ollama error", zap.Int("status", resp.StatusCode), zap.String("model", o.model))
		return "", err
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		fail(span, err)
		return "", fmt.Errorf("parse ollama response: %w", err)
	}
	span.SetAttributes(attribute.Int("llm.response_bytes", len(out.Response)))
	return out.Response, nil
}

// OpenAI uses the chat completions API of OpenAI or a compatible server.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai provider requires an api key")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (o *OpenAI) Model() string { return o.model }

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAI.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a code completion engine. Output only code."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
	}
	if o.maxTokens > 0 {
		req.MaxCompletionTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		fail(span, err)
		return "", fmt.Errorf("openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("openai returned no choices")
		fail(span, err)
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}
