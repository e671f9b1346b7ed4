package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const geminiEndpointFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiConfig defines configuration options for the Gemini provider.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// GeminiProvider implements Provider against the Google generative language API.
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGeminiProvider builds a Gemini provider using the given configuration.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 90 * time.Second},
		tracer: otel.Tracer("github.com/kita-live/kita-api/pkg/ai/gemini"),
		logger: logger,
	}
}

// Ask sends the prompt to Gemini and extracts the generated text from the
// candidates[0].content.parts[0].text envelope field.
func (p *GeminiProvider) Ask(parent context.Context, prompt string) (Reply, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return Reply{}, fmt.Errorf("gemini: %w", ErrMissingCredential)
	}

	ctx, span := p.tracer.Start(parent, "gemini.ask", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
	))
	defer span.End()

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGeneration{MaxOutputTokens: p.cfg.MaxTokens},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("gemini marshal request: %w", err)
	}

	endpoint := fmt.Sprintf(geminiEndpointFormat, p.cfg.Model) + "?key=" + url.QueryEscape(p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("gemini build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	askDuration.WithLabelValues("gemini").Observe(time.Since(start).Seconds())
	if err != nil {
		askFailures.WithLabelValues("gemini").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		askFailures.WithLabelValues("gemini").Inc()
		return Reply{}, fmt.Errorf("gemini read response: %w", err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		askFailures.WithLabelValues("gemini").Inc()
		return Reply{}, fmt.Errorf("gemini parse response: %w", err)
	}

	if decoded.Error != nil && decoded.Error.Message != "" {
		askFailures.WithLabelValues("gemini").Inc()
		p.logger.Warn().Str("provider", "gemini").Msg("upstream returned an error envelope")
		return Reply{}, fmt.Errorf("gemini upstream error: %s", decoded.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		askFailures.WithLabelValues("gemini").Inc()
		return Reply{}, fmt.Errorf("gemini upstream status %d", resp.StatusCode)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		askFailures.WithLabelValues("gemini").Inc()
		return Reply{}, fmt.Errorf("gemini: missing text in response")
	}

	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		askFailures.WithLabelValues("gemini").Inc()
		return Reply{}, fmt.Errorf("gemini: empty candidate text")
	}

	return Reply{Text: text, ModelName: "Gemini"}, nil
}
