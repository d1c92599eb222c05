package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storyweaver-server/internal/models"
)

// systemPrompt establishes the storyteller persona for every generation call.
const systemPrompt = "You are a master storyteller who creates immersive, emotionally intelligent interactive stories. Always respond with valid JSON."

const (
	defaultTemperature = 0.8
	defaultMaxTokens   = 500
)

// ErrGenerationFailed marks upstream transport/status failures and empty
// completions. Unlike classification errors this one propagates: without
// generated content there is nothing to render, so the caller reports a
// retryable failure and leaves story state untouched.
var ErrGenerationFailed = errors.New("story generation failed")

var (
	genRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweaver_generation_requests_total",
			Help: "Total number of text generation requests by model and outcome.",
		},
		[]string{"model", "status"},
	)
	genRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyweaver_generation_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	genPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyweaver_generation_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
)

// StoryGenerator turns a composed prompt into chapter content plus a bounded
// choice list.
type StoryGenerator interface {
	Generate(ctx context.Context, prompt string) (models.GeneratedChapter, error)
}

// Options configure a client independent of the chosen backend.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func (o *Options) fill() {
	if o.Temperature == 0 {
		o.Temperature = defaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = defaultMaxTokens
	}
}

// --- OpenAI-compatible backend ---

// Compile-time check to ensure implementation satisfies the interface.
var _ StoryGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator calls any OpenAI-compatible chat completion API via
// go-openai.
type OpenAIGenerator struct {
	client *openaigo.Client
	opts   Options
	logger *zap.Logger
}

// NewOpenAIGenerator creates a generator against the given base URL.
func NewOpenAIGenerator(apiKey, baseURL string, timeout time.Duration, opts Options, logger *zap.Logger) *OpenAIGenerator {
	opts.fill()
	clientCfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIGenerator{
		client: openaigo.NewClientWithConfig(clientCfg),
		opts:   opts,
		logger: logger.Named("OpenAIGenerator"),
	}
}

// Generate implements StoryGenerator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (models.GeneratedChapter, error) {
	if strings.TrimSpace(prompt) == "" {
		genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "error"}).Inc()
		return models.GeneratedChapter{}, fmt.Errorf("%w: empty prompt", ErrGenerationFailed)
	}

	observePromptTokens(g.opts.Model, prompt)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model: g.opts.Model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(g.opts.Temperature),
		MaxTokens:   g.opts.MaxTokens,
	})
	duration := time.Since(start)

	if err != nil {
		g.logger.Error("AI API request failed", zap.Error(err), zap.Duration("elapsed", duration))
		genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "error"}).Inc()
		return models.GeneratedChapter{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		g.logger.Error("AI API returned empty completion", zap.Duration("elapsed", duration))
		genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "error_empty_response"}).Inc()
		return models.GeneratedChapter{}, fmt.Errorf("%w: received empty completion", ErrGenerationFailed)
	}

	genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "success"}).Inc()
	genRequestDuration.With(prometheus.Labels{"model": g.opts.Model}).Observe(duration.Seconds())

	rawText := resp.Choices[0].Message.Content
	g.logger.Debug("AI completion received",
		zap.Duration("elapsed", duration),
		zap.Int("responseBytes", len(rawText)),
		zap.Int("totalTokens", resp.Usage.TotalTokens),
	)

	return ParseResponse(rawText), nil
}

// --- Ollama backend ---

// Compile-time check to ensure implementation satisfies the interface.
var _ StoryGenerator = (*OllamaGenerator)(nil)

// OllamaGenerator calls a local Ollama server.
type OllamaGenerator struct {
	client *ollamaapi.Client
	opts   Options
	logger *zap.Logger
}

// NewOllamaGenerator creates a generator against an Ollama host URL.
func NewOllamaGenerator(host string, timeout time.Duration, opts Options, logger *zap.Logger) (*OllamaGenerator, error) {
	opts.fill()
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaGenerator{
		client: ollamaapi.NewClient(hostURL, &http.Client{Timeout: timeout}),
		opts:   opts,
		logger: logger.Named("OllamaGenerator"),
	}, nil
}

// Generate implements StoryGenerator.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (models.GeneratedChapter, error) {
	if strings.TrimSpace(prompt) == "" {
		genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "error"}).Inc()
		return models.GeneratedChapter{}, fmt.Errorf("%w: empty prompt", ErrGenerationFailed)
	}

	observePromptTokens(g.opts.Model, prompt)

	stream := false
	req := &ollamaapi.ChatRequest{
		Model: g.opts.Model,
		Messages: []ollamaapi.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": g.opts.Temperature,
			"num_predict": g.opts.MaxTokens,
		},
	}

	var rawText string
	start := time.Now()
	err := g.client.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
		rawText += resp.Message.Content
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		g.logger.Error("Ollama request failed", zap.Error(err), zap.Duration("elapsed", duration))
		genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "error"}).Inc()
		return models.GeneratedChapter{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if rawText == "" {
		genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "error_empty_response"}).Inc()
		return models.GeneratedChapter{}, fmt.Errorf("%w: received empty completion", ErrGenerationFailed)
	}

	genRequestsTotal.With(prometheus.Labels{"model": g.opts.Model, "status": "success"}).Inc()
	genRequestDuration.With(prometheus.Labels{"model": g.opts.Model}).Observe(duration.Seconds())

	return ParseResponse(rawText), nil
}

// observePromptTokens records a token-count estimate for the outgoing prompt.
// Unknown models fall back to the cl100k_base encoding.
func observePromptTokens(model, prompt string) {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if tke, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			return
		}
	}
	genPromptTokens.With(prometheus.Labels{"model": model}).Observe(float64(len(tke.Encode(prompt, nil, nil))))
}
