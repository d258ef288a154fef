package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prepwise/coach-go/internal/session"
)

// Trigger runs the evaluation for a session whose responses are recorded.
type Trigger struct {
	store *session.Store
	eval  Evaluator
	log   *slog.Logger
}

// NewTrigger constructs an evaluation Trigger.
func NewTrigger(store *session.Store, eval Evaluator, log *slog.Logger) (*Trigger, error) {
	if store == nil || eval == nil {
		return nil, fmt.Errorf("interview: store and evaluator must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Trigger{store: store, eval: eval, log: log}, nil
}

// Evaluate renders the session's transcript, scores it, and completes the
// session. On failure the session is moved to its error state and the
// returned error wraps ErrEvaluationFailed.
func (t *Trigger) Evaluate(ctx context.Context, sessionID string) error {
	s, err := t.store.Require(sessionID)
	if err != nil {
		return err
	}
	if s.Status != session.StatusEvaluating {
		return fmt.Errorf("interview: session %s is %s, not %s: %w",
			sessionID, s.Status, session.StatusEvaluating, session.ErrInvalidState)
	}

	transcript := RenderTranscript(s.Transcript)
	report, scores, err := t.eval.Evaluate(ctx, transcript, s.JobDescription)
	if err != nil {
		t.log.ErrorContext(ctx, "evaluation failed",
			"session_id", sessionID, "error", err)
		if ferr := t.store.Fail(sessionID, err.Error()); ferr != nil {
			t.log.ErrorContext(ctx, "could not mark session failed",
				"session_id", sessionID, "error", ferr)
		}
		return fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}

	if err := t.store.Complete(sessionID, report, scores); err != nil {
		return fmt.Errorf("interview: complete session: %w", err)
	}

	t.log.InfoContext(ctx, "session evaluated",
		"session_id", sessionID, "scored_dimensions", len(scores))
	return nil
}

// EvaluateTranscript scores a caller-supplied transcript without touching any
// session. It backs the stateless evaluation endpoint.
func (t *Trigger) EvaluateTranscript(ctx context.Context, entries []session.TranscriptEntry, jobDescription string) (string, map[string]float64, error) {
	report, scores, err := t.eval.Evaluate(ctx, RenderTranscript(entries), jobDescription)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}
	return report, scores, nil
}

// RenderTranscript formats transcript entries for the evaluation prompt.
func RenderTranscript(entries []session.TranscriptEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[QUESTION %d: %s]\n", e.Index, e.Topic)
		fmt.Fprintf(&sb, "Interviewer: %s\n", e.Question)
		fmt.Fprintf(&sb, "Candidate: %s\n\n", e.Response)
	}
	return strings.TrimSpace(sb.String())
}
