// Package chat implements Q-Bot, the data-grounded assistant for the
// QA dashboard. Every question is answered against a JSON snapshot of
// the current reports and parts, never from model memory.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/dedup"
	"github.com/solidqa/partboard/internal/issues"
	"github.com/solidqa/partboard/internal/telemetry"
	"github.com/solidqa/partboard/internal/types"
)

const (
	defaultModel   = "claude-3-5-haiku-latest"
	maxRetries     = 3
	initialBackoff = 1 * time.Second

	// Answer given when no API key is configured. The dashboard shows
	// it verbatim instead of an error state.
	missingKeyAnswer = "I'm currently unable to connect to my AI brain. The API key is missing."
)

// Service answers dashboard questions through the Anthropic API.
type Service struct {
	client    anthropic.Client
	model     anthropic.Model
	available bool
	db        *client.DB
	issues    *issues.Service
}

// New creates the assistant. ANTHROPIC_API_KEY takes precedence over
// the explicit key; with no key at all the service stays up and
// answers every question with the missing-key notice.
func New(apiKey, model string, db *client.DB) *Service {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if model == "" {
		model = defaultModel
	}
	s := &Service{
		model:  anthropic.Model(model),
		db:     db,
		issues: issues.NewService(db),
	}
	if apiKey != "" {
		s.client = anthropic.NewClient(option.WithAPIKey(apiKey))
		s.available = true
		aiMetricsOnce.Do(initAIMetrics)
	}
	return s
}

// Available reports whether an API key is configured.
func (s *Service) Available() bool { return s.available }

// reportStats is one report in the data context, with its issue counts.
type reportStats struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	UploadDate  string `json:"uploadDate"`
	TotalIssues int    `json:"totalIssues"`
	IssueCount  int    `json:"issueCount"`
	OpenIssues  int    `json:"openIssues"`
}

type dataContext struct {
	Summary *issues.Summary   `json:"summary"`
	Reports []reportStats     `json:"reports"`
	Parts   []types.PartGroup `json:"parts"`
}

// buildContext snapshots the database into the JSON the model reads.
func (s *Service) buildContext(ctx context.Context) (*dataContext, error) {
	summary, err := s.issues.Summarize(ctx)
	if err != nil {
		return nil, err
	}

	issuesRes := s.db.From(types.TableIssues).Execute(ctx)
	if issuesRes.Err != nil {
		return nil, fmt.Errorf("chat context issues: %w", issuesRes.Err)
	}
	reportsRes := s.db.From(types.TableReports).Order("uploaded_at", false).Execute(ctx)
	if reportsRes.Err != nil {
		return nil, fmt.Errorf("chat context reports: %w", reportsRes.Err)
	}

	allIssues := types.IssuesFromRecords(issuesRes.Data)
	byReport := make(map[string][]types.Issue)
	for _, i := range allIssues {
		byReport[i.ReportID] = append(byReport[i.ReportID], i)
	}

	reports := make([]reportStats, 0, len(reportsRes.Data))
	for _, rec := range reportsRes.Data {
		r := types.ReportFromRecord(rec)
		stats := reportStats{
			ID:          r.ID,
			FileName:    r.FileName,
			UploadDate:  r.UploadedAt.Format(time.RFC3339),
			TotalIssues: r.TotalIssues,
			IssueCount:  len(byReport[r.ID]),
		}
		for _, i := range byReport[r.ID] {
			if !i.IsCorrected {
				stats.OpenIssues++
			}
		}
		reports = append(reports, stats)
	}

	return &dataContext{
		Summary: summary,
		Reports: reports,
		Parts:   dedup.MergeIssues(allIssues),
	}, nil
}

// Ask answers one question grounded on the current data. Without an
// API key it returns the missing-key notice instead of failing.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	if !s.available {
		return missingKeyAnswer, nil
	}
	data, err := s.buildContext(ctx)
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal data context: %w", err)
	}
	system := fmt.Sprintf(systemPromptTemplate, payload)
	return s.callWithRetry(ctx, system, question)
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/solidqa/partboard/ai")
	aiMetrics.inputTokens, _ = m.Int64Counter("pb.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("pb.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("pb.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (s *Service) callWithRetry(ctx context.Context, system, question string) (string, error) {
	tracer := telemetry.Tracer("github.com/solidqa/partboard/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("pb.ai.model", string(s.model)),
		attribute.String("pb.ai.operation", "chat"),
	)

	params := anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := s.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("pb.ai.model", string(s.model))
			if aiMetrics.inputTokens != nil {
				aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(
				attribute.Int64("pb.ai.input_tokens", message.Usage.InputTokens),
				attribute.Int64("pb.ai.output_tokens", message.Usage.OutputTokens),
				attribute.Int("pb.ai.attempts", attempt+1),
			)

			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return "", fmt.Errorf("failed after %d retries: %w", maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		if statusCode == 429 || statusCode >= 500 {
			return true
		}
		return false
	}
	return false
}

const systemPromptTemplate = `You are "Q-Bot", an expert AI assistant for the SolidWorks QA Portal. Your persona is helpful, insightful, and strictly data-driven. Your primary function is to help users understand their QA data by answering questions based ONLY on the provided JSON 'Data Context'.

**Core Rules:**
1. NEVER make up information. If the answer is not in the data, state that you don't have enough information.
2. DO NOT mention that you are an AI or that you are using a JSON context. Respond as a helpful analyst.
3. ALWAYS provide numbers as plain text (no bold, no asterisks, no underscores). For example: There have been 25 reports processed until now.

**Answering Strategy:**
- Summary questions: use the summary object; mention total open issues, the correction rate, and the most common issue category from summary.issuesByCategory.
- Report-specific questions: use the reports array and compare issueCount per report.
- Trend questions: compare issueCount of recent reports to older ones using uploadDate.
- Part lookups: search the parts array; if found, give part number, issue types, status, dates, and the report file name matched via report_id. If not found, respond: "I couldn't find any information for that part number in the uploaded reports."
- Category questions: give the count from summary.issuesByCategory, then list at most 3-4 example part numbers.

**Data Context:**
` + "```json\n%s\n```"
