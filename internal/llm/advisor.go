// Package llm adapts the Anthropic Messages API to the consumption
// extraction and narrative operations the recommendation assembler needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-logr/logr"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

const (
	DefaultModel     = "claude-sonnet-4-6"
	DefaultTimeout   = 20 * time.Second
	DefaultMaxTokens = 512

	// extraction answers are a single number
	extractionMaxTokens = 16
)

// Messager is the subset of the Anthropic client used here.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config holds LLM configuration.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Advisor implements recommend.LanguageModel on Claude.
type Advisor struct {
	messages  Messager
	model     string
	maxTokens int
	timeout   time.Duration
	log       logr.Logger
}

// Option customizes an Advisor.
type Option func(*Advisor)

// WithMessager replaces the Anthropic client, for tests.
func WithMessager(m Messager) Option {
	return func(a *Advisor) { a.messages = m }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(a *Advisor) { a.log = l }
}

// NewAdvisor creates an Advisor. An API key is required unless a Messager
// is injected.
func NewAdvisor(cfg Config, opts ...Option) (*Advisor, error) {
	a := &Advisor{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		log:       logr.Discard(),
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.messages == nil {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("anthropic API key not configured")
		}
		reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
		}
		client := anthropic.NewClient(reqOpts...)
		a.messages = &client.Messages
	}
	return a, nil
}

func (a *Advisor) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		sb.WriteString(b.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// ExtractDailyConsumption asks the model for a daily kWh figure implied by
// text. It returns recommend.ErrNoEstimate when the answer holds no
// positive number.
func (a *Advisor) ExtractDailyConsumption(ctx context.Context, text string) (float64, error) {
	answer, err := a.complete(ctx, extractionSystemPrompt, buildExtractionPrompt(text), extractionMaxTokens)
	if err != nil {
		return 0, err
	}
	v, err := ParseConsumption(answer)
	if err != nil {
		a.log.V(1).Info("Model answer held no consumption figure", "answer", answer)
		return 0, err
	}
	return v, nil
}

// GenerateNarrative asks the model for a plain-language recommendation.
func (a *Advisor) GenerateNarrative(ctx context.Context, req recommend.NarrativeRequest) (string, error) {
	text, err := a.complete(ctx, narrativeSystemPrompt, buildNarrativePrompt(req), a.maxTokens)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("empty narrative from model")
	}
	return text, nil
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)

// ParseConsumption returns the first non-negative decimal number in s.
// Zero, or no number at all, yields recommend.ErrNoEstimate.
func ParseConsumption(s string) (float64, error) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("%w: %q", recommend.ErrNoEstimate, s)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", recommend.ErrNoEstimate, s)
	}
	return v, nil
}
