// Package session implements the in-memory interview session registry and its
// state machine. A Session moves through a fixed lifecycle:
//
//	Initializing → Ready → Evaluating → Completed
//
// with Error reachable from any non-terminal status. The Store is the sole
// owner of session records: all mutation happens through its methods, under
// its lock, and every mutation refreshes the session's last-activity time.
// Session records live in process memory only and are lost on restart; the
// vector index is the one durable artifact (see internal/rag).
package session

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	// StatusInitializing means the question-generation pipeline has not yet
	// published topics and questions.
	StatusInitializing Status = "initializing"
	// StatusReady means topics and questions are published and the session is
	// waiting for the candidate's batched responses.
	StatusReady Status = "ready"
	// StatusEvaluating means responses are recorded and the evaluation call
	// is in flight.
	StatusEvaluating Status = "evaluating"
	// StatusCompleted means the evaluation report has been published.
	StatusCompleted Status = "completed"
	// StatusError is the terminal failure state. Once set, the record is
	// frozen: only reads and Delete are permitted.
	StatusError Status = "error"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Sentinel errors returned by Store operations. Callers branch on these with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrAlreadyExists is returned by Create when the session id is taken.
	ErrAlreadyExists = errors.New("session: already exists")
	// ErrNotFound is returned when no session has the given id.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidState is returned when an operation is not legal for the
	// session's current status. This signals protocol misuse by the caller,
	// not a transient fault — it is never silently corrected.
	ErrInvalidState = errors.New("session: invalid state for operation")
	// ErrLengthMismatch is returned by RecordResponses when the response
	// batch does not match the question count exactly.
	ErrLengthMismatch = errors.New("session: response count does not match question count")
)

// TranscriptEntry is one interviewer/candidate turn in question order.
type TranscriptEntry struct {
	// Index is the 1-based question number.
	Index int `json:"index"`
	// Topic is the assessment area the question probes.
	Topic string `json:"topic"`
	// Question is the interviewer's question text.
	Question string `json:"question"`
	// Response is the candidate's answer text.
	Response string `json:"response"`
	// Timestamp is when the response batch was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Session is the complete state of one interview session. Instances handed
// out by the Store are deep copies — mutating them has no effect on the
// registry.
type Session struct {
	// ID is the opaque, process-unique session identifier.
	ID string
	// CandidateName is the display name of the person being interviewed.
	CandidateName string
	// JobDescription is the (preprocessed) job description text.
	JobDescription string
	// ResumeRef is an opaque reference to the source document, empty when no
	// resume was supplied.
	ResumeRef string
	// Status is the current lifecycle state.
	Status Status
	// CreatedAt is when the session was registered.
	CreatedAt time.Time
	// LastActivity is refreshed by every Store mutation touching this record.
	LastActivity time.Time

	// Topics is the ordered list of assessment areas. Immutable once set;
	// its order defines question order.
	Topics []string
	// Questions holds one question per topic, same index.
	Questions []string
	// Responses holds one answer per question, recorded as a single batch.
	Responses []string

	// Transcript is rebuilt deterministically from topics+questions+responses
	// when responses are recorded. It is never an independent source of truth.
	Transcript []TranscriptEntry
	// Report is the evaluation report text, set on completion.
	Report string
	// Scores is an open-ended score map parsed from the evaluation, may be empty.
	Scores map[string]float64
	// ErrMessage is set only when Status is StatusError.
	ErrMessage string
}

// TotalQuestions returns the number of questions in the interview. Zero is a
// valid, if unusual, Ready state — callers must handle it.
func (s *Session) TotalQuestions() int { return len(s.Questions) }

// QuestionsAnswered returns the number of recorded responses.
func (s *Session) QuestionsAnswered() int { return len(s.Responses) }

// clone returns a deep copy of s so callers never share slices or maps with
// the record owned by the Store.
func (s *Session) clone() *Session {
	cp := *s
	cp.Topics = append([]string(nil), s.Topics...)
	cp.Questions = append([]string(nil), s.Questions...)
	cp.Responses = append([]string(nil), s.Responses...)
	cp.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	if s.Scores != nil {
		cp.Scores = make(map[string]float64, len(s.Scores))
		for k, v := range s.Scores {
			cp.Scores[k] = v
		}
	}
	return &cp
}
