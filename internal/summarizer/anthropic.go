package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/metrics"
)

// AnthropicConfig selects the model and response budget.
type AnthropicConfig struct {
	// APIKey overrides the ANTHROPIC_API_KEY environment variable when set.
	APIKey    string
	Model     string
	MaxTokens int64
}

// AnthropicSummarizer implements pipeline.Summarizer against the Anthropic
// Messages API.
type AnthropicSummarizer struct {
	client anthropic.Client
	cfg    AnthropicConfig
	logger *zap.Logger
}

// NewAnthropic builds a summarizer client. The SDK reads ANTHROPIC_API_KEY
// from the environment unless cfg.APIKey is set.
func NewAnthropic(cfg AnthropicConfig, logger *zap.Logger) *AnthropicSummarizer {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &AnthropicSummarizer{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Summarize sends the page content to the model under the given system
// prompt and returns the concatenated text blocks of the response.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, systemPrompt, content string) (string, error) {
	start := time.Now()
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.cfg.Model),
		MaxTokens: s.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	metrics.ObserveSummaryDuration(time.Since(start))

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("anthropic messages: empty response")
	}
	s.logger.Debug("summary generated",
		zap.String("model", s.cfg.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}
