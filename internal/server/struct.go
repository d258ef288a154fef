package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prepwise/coach-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. Session
	// creation runs the full preparation pipeline inline, so this must cover
	// several model calls.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all /api/v1/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry is where the server's metrics register.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// runner prepares a freshly created session end to end.
// *interview.Pipeline satisfies it; tests inject a fake.
type runner interface {
	// Run indexes the resume, extracts topics, and publishes the questions.
	Run(ctx context.Context, sessionID string, resume []byte) error
}

// evaluator scores finished interviews. *interview.Trigger satisfies it;
// tests inject a fake.
type evaluator interface {
	// Evaluate scores the stored session transcript and completes the session.
	Evaluate(ctx context.Context, sessionID string) error
	// EvaluateTranscript scores a caller-supplied transcript without touching
	// any session.
	EvaluateTranscript(ctx context.Context, entries []session.TranscriptEntry, jobDescription string) (string, map[string]float64, error)
}

// docCleaner drops a session's indexed resume. *rag.Service satisfies it.
type docCleaner interface {
	Clear(ctx context.Context, sessionID string) error
}

// Server is the HTTP server that exposes the interview coach API.
type Server struct {
	// store is the session registry shared with the pipeline and evaluator.
	store *session.Store
	// pipeline prepares new sessions; set to *interview.Pipeline in
	// production, overridden by a fake in tests.
	pipeline runner
	// eval scores finished interviews.
	eval evaluator
	// docs drops a session's resume index on delete. May be nil.
	docs docCleaner
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
}

// createSessionRequest is the JSON body for POST /api/v1/sessions.
type createSessionRequest struct {
	// CandidateName is the interviewee's display name.
	CandidateName string `json:"candidate_name"`
	// JobDescription is the raw job posting text the interview targets.
	JobDescription string `json:"job_description"`
	// Resume is the candidate's plain-text resume.
	Resume string `json:"resume"`
}

// sessionResponse is the JSON representation of a session returned by the
// create and get endpoints.
type sessionResponse struct {
	// ID is the server-assigned session identifier.
	ID string `json:"id"`
	// Status is the session lifecycle state.
	Status string `json:"status"`
	// CandidateName echoes the name supplied at creation.
	CandidateName string `json:"candidate_name"`
	// Topics are the interview topics, parallel to Questions.
	Topics []string `json:"topics,omitempty"`
	// Questions are the generated interview questions.
	Questions []string `json:"questions,omitempty"`
	// TotalQuestions is len(Questions).
	TotalQuestions int `json:"total_questions"`
	// CreatedAt is the session creation time in RFC 3339.
	CreatedAt string `json:"created_at"`
	// LastActivity is the time of the most recent lifecycle change in RFC 3339.
	LastActivity string `json:"last_activity"`
	// Error carries the failure message for sessions in the error state.
	Error string `json:"error,omitempty"`
}

// responsesRequest is the JSON body for POST /api/v1/sessions/{id}/responses.
type responsesRequest struct {
	// Responses are the candidate's answers, one per question, in question order.
	Responses []string `json:"responses"`
}

// evaluationResponse is the JSON body returned by the evaluation endpoints.
type evaluationResponse struct {
	// Report is the free-form evaluation text.
	Report string `json:"report"`
	// Scores maps evaluation dimensions to 0-10 scores. May be empty when the
	// model returned no parseable score line.
	Scores map[string]float64 `json:"scores,omitempty"`
	// Transcript echoes the scored interview turns. Empty for stateless
	// evaluations, which already hold the transcript they submitted.
	Transcript []transcriptEntry `json:"transcript,omitempty"`
}

// transcriptEntry is one question/answer turn in a stateless evaluation request.
type transcriptEntry struct {
	// Topic is the subject the question probed.
	Topic string `json:"topic"`
	// Question is the interviewer's question.
	Question string `json:"question"`
	// Response is the candidate's answer.
	Response string `json:"response"`
}

// evaluateRequest is the JSON body for POST /api/v1/evaluate.
type evaluateRequest struct {
	// Transcript is the interview to score, in turn order.
	Transcript []transcriptEntry `json:"transcript"`
	// JobDescription is the job posting the interview targeted.
	JobDescription string `json:"job_description"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
