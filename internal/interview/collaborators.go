// Package interview orchestrates the mock-interview lifecycle: preparing a
// session from a job description and resume, generating grounded questions
// per topic, and evaluating the candidate's responses.
//
// The LLM-facing work is split into four narrow collaborator interfaces so
// the pipeline can be tested with fakes and so each prompt lives next to the
// call that uses it.
package interview

import (
	"context"
	"errors"
)

// ErrEvaluationFailed is returned when the evaluation call could not produce
// a report. The session is moved to its error state by the caller.
var ErrEvaluationFailed = errors.New("interview: evaluation failed")

// ErrPreprocess is returned when job description preprocessing fails. The
// cleaned job description is the input to every later stage, so the session
// cannot proceed without it.
var ErrPreprocess = errors.New("interview: preprocessing failed")

// Result is the outcome of one unit of pipeline work. Exactly one of Text or
// Err is meaningful: a non-nil Err marks the unit failed and Text is empty.
type Result struct {
	// Text is the unit's output on success.
	Text string
	// Err is the unit's failure, nil on success.
	Err error
}

// Preprocessor condenses a raw job description into the focused summary the
// downstream stages work from.
type Preprocessor interface {
	// Clean returns a condensed version of the job description retaining
	// role, required skills, and seniority signals.
	Clean(ctx context.Context, jobDescription string) (string, error)
}

// TopicExtractor derives the interview topics from a (preprocessed) job
// description.
type TopicExtractor interface {
	// Topics returns the distinct technical topics to probe, most important
	// first.
	Topics(ctx context.Context, jobDescription string) ([]string, error)
}

// GenInput carries everything a QuestionGenerator needs for one question.
type GenInput struct {
	// Topic is the subject the question must probe.
	Topic string
	// Context holds resume excerpts relevant to the topic, most relevant
	// first. May be empty when retrieval found nothing.
	Context []string
	// CandidateName personalizes the question phrasing.
	CandidateName string
	// SessionID identifies the session for logging and tracing.
	SessionID string
}

// QuestionGenerator produces one interview question for a topic, grounded in
// the candidate's resume where context is available.
type QuestionGenerator interface {
	// Question returns a single interview question for the input topic.
	Question(ctx context.Context, in GenInput) (string, error)
}

// Evaluator scores a completed interview transcript against the job
// description.
type Evaluator interface {
	// Evaluate returns a textual report and per-dimension scores for the
	// transcript. scores may be empty when the model's output carries none.
	Evaluate(ctx context.Context, transcript, jobDescription string) (report string, scores map[string]float64, err error)
}

// ResumeIndexer is the slice of the retrieval service the pipeline depends
// on: ingesting the resume and looking up per-topic context.
type ResumeIndexer interface {
	// Ingest indexes the resume under the session and returns the chunk count.
	Ingest(ctx context.Context, sessionID string, document []byte) (int, error)
	// Retrieve returns the top-k resume excerpts for the query.
	Retrieve(ctx context.Context, sessionID, query string, k int) ([]string, error)
}
