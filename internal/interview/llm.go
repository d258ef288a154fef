package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/prepwise/coach-go/internal/budget"
)

// maxTopics caps how many interview topics a single session probes. More than
// eight questions makes a mock interview a slog for the candidate.
const maxTopics = 8

// Prompts for each collaborator role.
const (
	preprocessSystem = `You are an expert technical recruiter. Condense the job description you are
given into a focused summary for interview preparation. Retain the role title,
seniority level, required technical skills, and key responsibilities. Drop
benefits, company marketing, and legal boilerplate. Respond with the summary
only.`

	topicsSystem = `You are an expert technical interviewer planning a mock interview. From the
job description you are given, list the distinct technical topics an
interviewer should probe, most important first. Respond with one topic per
line and nothing else. No numbering, no bullets, no commentary.`

	questionSystem = `You are an expert technical interviewer conducting a mock interview. Write
exactly one open-ended interview question probing the topic you are given.
When resume excerpts are provided, ground the question in the candidate's
actual experience. Address the candidate by name. Respond with the question
only.`

	evaluateSystem = `You are an expert technical interviewer writing post-interview feedback.
Evaluate the interview transcript against the job description. Assess
technical depth, communication, and relevance to the role. Be specific:
quote the candidate where it supports your point.

Structure your feedback as a written report. End the report with a single
line containing only a JSON object scoring the dimensions from 0 to 10, e.g.
{"technical": 7.5, "communication": 8.0, "relevance": 6.0, "overall": 7.0}`
)

// Models groups the chat models backing the collaborators. A single model may
// serve every role; evaluation commonly uses a stronger one.
type Models struct {
	// Chat backs preprocessing, topic extraction, and question generation.
	Chat Generator
	// Eval backs evaluation. Falls back to Chat when nil.
	Eval Generator
}

// Generator is the minimal LLM surface the collaborators call. Wrap an eino
// chat model with WrapModel to satisfy it.
type Generator interface {
	// Generate produces the model's reply to the input messages.
	Generate(ctx context.Context, input []*schema.Message) (*schema.Message, error)
}

// WrapModel adapts an eino chat model to the Generator interface.
func WrapModel(m model.BaseChatModel) Generator {
	return modelGenerator{m: m}
}

// modelGenerator discards the variadic option surface the collaborators
// never use.
type modelGenerator struct {
	m model.BaseChatModel
}

func (g modelGenerator) Generate(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
	return g.m.Generate(ctx, input) //nolint:wrapcheck // thin adapter
}

// LLM implements every collaborator interface on top of eino chat models.
type LLM struct {
	chat Generator
	eval Generator
	// maxContextTokens bounds the estimated prompt size; retrieved context is
	// trimmed to fit.
	maxContextTokens int
	log              *slog.Logger
}

// NewLLM wires the collaborators from the given models. maxContextTokens <= 0
// selects budget.DefaultMaxContextTokens.
func NewLLM(m Models, maxContextTokens int, log *slog.Logger) (*LLM, error) {
	if m.Chat == nil {
		return nil, fmt.Errorf("interview: chat model must not be nil")
	}
	if m.Eval == nil {
		m.Eval = m.Chat
	}
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLM{chat: m.Chat, eval: m.Eval, maxContextTokens: maxContextTokens, log: log}, nil
}

// Clean condenses the job description.
func (l *LLM) Clean(ctx context.Context, jobDescription string) (string, error) {
	msg, err := l.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(preprocessSystem),
		schema.UserMessage(jobDescription),
	})
	if err != nil {
		return "", fmt.Errorf("interview: preprocess job description: %w", err)
	}
	out := strings.TrimSpace(msg.Content)
	if out == "" {
		return "", fmt.Errorf("interview: preprocess returned empty output")
	}
	return out, nil
}

// Topics extracts interview topics from the job description, one per response
// line, capped at maxTopics.
func (l *LLM) Topics(ctx context.Context, jobDescription string) ([]string, error) {
	msg, err := l.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(topicsSystem),
		schema.UserMessage(jobDescription),
	})
	if err != nil {
		return nil, fmt.Errorf("interview: extract topics: %w", err)
	}

	topics := parseTopicLines(msg.Content)
	if len(topics) == 0 {
		return nil, fmt.Errorf("interview: no topics in model output")
	}
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics, nil
}

// parseTopicLines splits model output into topics, stripping list markers the
// model may add despite instructions and dropping duplicates.
func parseTopicLines(out string) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		// Strip "1." / "2)" style numbering.
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 && isDigits(line[:i]) {
			line = strings.TrimSpace(line[i+1:])
		}
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, line)
	}
	return topics
}

// isDigits reports whether s is entirely ASCII digits.
func isDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Question generates one interview question, grounding it in the retrieved
// resume excerpts. Excerpts are trimmed to the context budget before the
// prompt is assembled.
func (l *LLM) Question(ctx context.Context, in GenInput) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nCandidate: %s\n", in.Topic, in.CandidateName)

	fixed := []*schema.Message{
		schema.SystemMessage(questionSystem),
		schema.UserMessage(sb.String()),
	}
	snippets := budget.TrimSnippets(fixed, in.Context, l.maxContextTokens)
	if dropped := len(in.Context) - len(snippets); dropped > 0 {
		l.log.WarnContext(ctx, "budget: dropped resume excerpts to fit context window",
			"session_id", in.SessionID, "topic", in.Topic, "dropped", dropped)
	}
	if len(snippets) > 0 {
		sb.WriteString("\nResume excerpts:\n")
		for i, s := range snippets {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, s)
		}
	}

	msg, err := l.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(questionSystem),
		schema.UserMessage(sb.String()),
	})
	if err != nil {
		return "", fmt.Errorf("interview: generate question for %q: %w", in.Topic, err)
	}
	out := strings.TrimSpace(msg.Content)
	if out == "" {
		return "", fmt.Errorf("interview: empty question for %q", in.Topic)
	}
	return out, nil
}

// Evaluate scores the transcript against the job description. The report is
// the full model output; scores are parsed from its trailing JSON line and
// may be empty when the model omitted them.
func (l *LLM) Evaluate(ctx context.Context, transcript, jobDescription string) (string, map[string]float64, error) {
	var sb strings.Builder
	sb.WriteString("Job description:\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\nInterview transcript:\n")
	sb.WriteString(transcript)

	msg, err := l.eval.Generate(ctx, []*schema.Message{
		schema.SystemMessage(evaluateSystem),
		schema.UserMessage(sb.String()),
	})
	if err != nil {
		return "", nil, fmt.Errorf("interview: evaluate transcript: %w", err)
	}
	report := strings.TrimSpace(msg.Content)
	if report == "" {
		return "", nil, fmt.Errorf("interview: evaluation returned empty output")
	}

	scores := parseScoreLine(report)
	if len(scores) == 0 {
		l.log.WarnContext(ctx, "evaluation output carried no score line")
	}
	return report, scores, nil
}

// parseScoreLine scans the report bottom-up for a line holding a JSON object
// of dimension scores. A malformed or absent line yields nil — the report
// still stands on its own.
func parseScoreLine(report string) map[string]float64 {
	lines := strings.Split(report, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var scores map[string]float64
		if err := json.Unmarshal([]byte(line), &scores); err == nil && len(scores) > 0 {
			return scores
		}
	}
	return nil
}
