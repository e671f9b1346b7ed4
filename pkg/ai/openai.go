package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ChatGPTConfig defines configuration options for the ChatGPT provider.
type ChatGPTConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// ChatGPTProvider implements Provider against the OpenAI chat completion API.
type ChatGPTProvider struct {
	client *openai.Client
	cfg    ChatGPTConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewChatGPTProvider builds a ChatGPT provider using the given configuration.
// The provider is constructed even without an API key so the service can
// report a configuration error at request time rather than refuse to boot.
func NewChatGPTProvider(cfg ChatGPTConfig) *ChatGPTProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	var client *openai.Client
	if cfg.APIKey != "" {
		client = openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey))
	}

	return &ChatGPTProvider{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/kita-live/kita-api/pkg/ai/openai"),
		logger: logger,
	}
}

// Ask sends the prompt to OpenAI and extracts the generated text.
func (p *ChatGPTProvider) Ask(parent context.Context, prompt string) (Reply, error) {
	if p.client == nil {
		return Reply{}, fmt.Errorf("chatgpt: %w", ErrMissingCredential)
	}

	ctx, span := p.tracer.Start(parent, "chatgpt.ask", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	askDuration.WithLabelValues("chatgpt").Observe(time.Since(start).Seconds())
	if err != nil {
		askFailures.WithLabelValues("chatgpt").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("chatgpt ask: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("chatgpt: no choices returned")
		askFailures.WithLabelValues("chatgpt").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, err
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		askFailures.WithLabelValues("chatgpt").Inc()
		return Reply{}, fmt.Errorf("chatgpt: empty completion text")
	}

	return Reply{Text: text, ModelName: "ChatGPT"}, nil
}
