package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// ClaudeConfig defines configuration options for the Claude provider.
type ClaudeConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// ClaudeProvider implements Provider against the Anthropic messages API.
type ClaudeProvider struct {
	cfg    ClaudeConfig
	client *http.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClaudeProvider builds a Claude provider using the given configuration.
func NewClaudeProvider(cfg ClaudeConfig) *ClaudeProvider {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &ClaudeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 90 * time.Second},
		tracer: otel.Tracer("github.com/kita-live/kita-api/pkg/ai/anthropic"),
		logger: logger,
	}
}

// Ask sends the prompt to Anthropic and extracts the generated text from the
// content[0].text envelope field.
func (p *ClaudeProvider) Ask(parent context.Context, prompt string) (Reply, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return Reply{}, fmt.Errorf("claude: %w", ErrMissingCredential)
	}

	ctx, span := p.tracer.Start(parent, "claude.ask", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
	))
	defer span.End()

	body, err := json.Marshal(claudeRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("claude marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicEndpoint, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("claude build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := p.client.Do(req)
	askDuration.WithLabelValues("claude").Observe(time.Since(start).Seconds())
	if err != nil {
		askFailures.WithLabelValues("claude").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		askFailures.WithLabelValues("claude").Inc()
		return Reply{}, fmt.Errorf("claude read response: %w", err)
	}

	var decoded claudeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		askFailures.WithLabelValues("claude").Inc()
		return Reply{}, fmt.Errorf("claude parse response: %w", err)
	}

	if decoded.Error != nil && decoded.Error.Message != "" {
		askFailures.WithLabelValues("claude").Inc()
		p.logger.Warn().Str("provider", "claude").Msg("upstream returned an error envelope")
		return Reply{}, fmt.Errorf("claude upstream error: %s", decoded.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		askFailures.WithLabelValues("claude").Inc()
		return Reply{}, fmt.Errorf("claude upstream status %d", resp.StatusCode)
	}

	if len(decoded.Content) == 0 || strings.TrimSpace(decoded.Content[0].Text) == "" {
		askFailures.WithLabelValues("claude").Inc()
		return Reply{}, fmt.Errorf("claude: missing text in response")
	}

	return Reply{Text: decoded.Content[0].Text, ModelName: "Claude"}, nil
}
