package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	gradingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "ai",
		Name:      "grading_duration_seconds",
		Help:      "Duration of AI grading requests",
	}, []string{"model"})

	gradingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "ai",
		Name:      "grading_failures_total",
		Help:      "Number of AI grading failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grading-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// Grade sends the configuration to OpenAI and scores the reply.
func (g *OpenAIGrader) Grade(parent context.Context, input GradingInput) (GradingResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("grading.papers", len(input.Papers)),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	gradingDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return GradingResult{}, g.fail(span, fmt.Errorf("openai grade: %w", err))
	}
	if len(resp.Choices) == 0 {
		return GradingResult{}, g.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	papers, err := ParseResponse(strings.TrimSpace(resp.Choices[0].Message.Content), input)
	if err != nil {
		return GradingResult{}, g.fail(span, err)
	}

	g.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("grading completed")

	return GradingResult{Model: g.cfg.Model, Papers: papers}, nil
}

func (g *OpenAIGrader) fail(span trace.Span, err error) error {
	gradingFailures.WithLabelValues(g.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func graderSystemPrompt() string {
	return "You are an academic paper grader. For every paper respond with a JSON object " +
		`{"papers":[{"name":string,"scores":{"relevance":n,"grammar":n,"structure":n,"depth":n},"feedback":string}]}` +
		" where every score is between 0 and 1. Judge each paper against the rubric."
}

// BuildPrompt renders the grading configuration as the user message.
func BuildPrompt(input GradingInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Rubric\n")
	if input.RubricText != "" {
		builder.WriteString(input.RubricText)
		builder.WriteString("\n")
	}
	writeDocuments(&builder, input.RubricFiles)

	builder.WriteString("\n## Papers\n")
	writeDocuments(&builder, input.Papers)
	if input.PapersText != "" {
		builder.WriteString("- inline:\n")
		builder.WriteString(input.PapersText)
		builder.WriteString("\n")
	}

	builder.WriteString("\n## Criteria (threshold / weightage)\n")
	keys := make([]string, 0, len(input.Thresholds))
	for key := range input.Thresholds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&builder, "- %s: %.1f / %.2f\n", key, input.Thresholds[key], input.Weightages[key])
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func writeDocuments(builder *strings.Builder, docs []Document) {
	for _, doc := range docs {
		fmt.Fprintf(builder, "- %s (%s)", doc.Name, doc.Handle)
		if doc.MimeType != "" {
			fmt.Fprintf(builder, " [%s]", doc.MimeType)
		}
		builder.WriteString("\n")
	}
}
