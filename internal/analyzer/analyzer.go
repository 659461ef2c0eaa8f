package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
)

// Analysis is the ingestion-time assessment of an article. All scores are in [0,100].
type Analysis struct {
	Summary         string  `json:"summary"`
	ImpactScore     float64 `json:"impactScore"`
	FinancialImpact float64 `json:"financialImpact"`
	CareerImpact    float64 `json:"careerImpact"`
	PersonalImpact  float64 `json:"personalImpact"`
}

// Analyzer assesses article content.
type Analyzer interface {
	Analyze(ctx context.Context, title, content, category string) (*Analysis, error)
}

const systemPrompt = `You analyze cryptocurrency and blockchain news for its impact on readers.
Return ONLY a JSON object with these fields:
- summary: two or three sentence neutral summary (string)
- impactScore: overall market impact from 0 to 100 (number)
- financialImpact: impact on readers' finances from 0 to 100 (number)
- careerImpact: impact on careers in the industry from 0 to 100 (number)
- personalImpact: impact on readers' daily lives from 0 to 100 (number)`

const maxPromptContent = 8000

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Disabled is used when no analysis provider is configured.
type Disabled struct{}

func (Disabled) Analyze(context.Context, string, string, string) (*Analysis, error) {
	return nil, fmt.Errorf("%w: no provider configured", domain.ErrAnalysisUnavailable)
}

// OpenAIAnalyzer uses a chat completion in JSON mode.
type OpenAIAnalyzer struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewOpenAIAnalyzer(cfg Config) *OpenAIAnalyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}
	return &OpenAIAnalyzer{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		sleep:      sleepCtx,
	}
}

// Analyze retries transport and parse failures with exponential backoff. The
// final failure is reported as domain.ErrAnalysisUnavailable.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, title, content, category string) (*Analysis, error) {
	start := time.Now()
	defer func() {
		metrics.AnalyzerRequestDuration.Observe(time.Since(start).Seconds())
	}()

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(title, content, category)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			if err := a.sleep(ctx, calculateBackoff(a.retryDelay, attempt)); err != nil {
				lastErr = err
				break
			}
		}

		analysis, err := a.analyzeOnce(ctx, req)
		if err == nil {
			metrics.AnalyzerRequestsTotal.WithLabelValues("success").Inc()
			return analysis, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		a.logger.Warn("content analysis attempt failed", "attempt", attempt+1, "error", err)
		if errors.Is(err, context.Canceled) {
			break
		}
	}

	metrics.AnalyzerRequestsTotal.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("%w: %v", domain.ErrAnalysisUnavailable, lastErr)
}

func (a *OpenAIAnalyzer) analyzeOnce(ctx context.Context, req openai.ChatCompletionRequest) (*Analysis, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}
	return ParseAnalysis(resp.Choices[0].Message.Content)
}

// ParseAnalysis decodes a model reply, tolerating a fenced code block, and
// clamps every score into [0,100]. A missing or non-finite impactScore is an error.
func ParseAnalysis(raw string) (*Analysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var wire struct {
		Summary         string   `json:"summary"`
		ImpactScore     *float64 `json:"impactScore"`
		FinancialImpact float64  `json:"financialImpact"`
		CareerImpact    float64  `json:"careerImpact"`
		PersonalImpact  float64  `json:"personalImpact"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &wire); err != nil {
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}
	if wire.ImpactScore == nil || math.IsNaN(*wire.ImpactScore) || math.IsInf(*wire.ImpactScore, 0) {
		return nil, errors.New("analysis is missing impactScore")
	}
	return &Analysis{
		Summary:         strings.TrimSpace(wire.Summary),
		ImpactScore:     clampScore(*wire.ImpactScore),
		FinancialImpact: clampScore(wire.FinancialImpact),
		CareerImpact:    clampScore(wire.CareerImpact),
		PersonalImpact:  clampScore(wire.PersonalImpact),
	}, nil
}

func userPrompt(title, content, category string) string {
	if len(content) > maxPromptContent {
		n := maxPromptContent
		for n > 0 && !utf8.RuneStart(content[n]) {
			n--
		}
		content = content[:n]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if category != "" {
		fmt.Fprintf(&b, "Category: %s\n", category)
	}
	fmt.Fprintf(&b, "\n%s", content)
	return b.String()
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
