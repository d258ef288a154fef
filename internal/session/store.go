package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the process-wide session registry. It is safe for concurrent use
// from multiple request-handling goroutines.
//
// A single RWMutex serializes all registry access. The expensive work in this
// system (embedding, LLM calls) happens in external services, never while the
// lock is held: readers receive deep copies, and mutators re-acquire the lock
// only for the short publish section. Two concurrent calls referencing the
// same id therefore cannot interleave mid-mutation, while a slow external
// call never blocks unrelated sessions.
type Store struct {
	// mu guards sessions and every record reachable from it.
	mu sync.RWMutex
	// sessions maps session id to the canonical record.
	sessions map[string]*Session
	// log is the structured logger for lifecycle events.
	log *slog.Logger
	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewStore constructs an empty Store. The registry is built once at process
// start and injected into every component that needs it — there is no
// package-level singleton.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		log:      log,
		now:      time.Now,
	}
}

// Create registers a new session in StatusInitializing and returns a copy of
// it. The existence check and insert happen in one critical section, so of
// two concurrent Create calls with the same id exactly one succeeds and the
// other fails with ErrAlreadyExists.
func (st *Store) Create(id, candidateName, jobDescription, resumeRef string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}

	now := st.now()
	s := &Session{
		ID:             id,
		CandidateName:  candidateName,
		JobDescription: jobDescription,
		ResumeRef:      resumeRef,
		Status:         StatusInitializing,
		CreatedAt:      now,
		LastActivity:   now,
	}
	st.sessions[id] = s

	st.log.Info("session created",
		slog.String("session_id", id),
		slog.String("candidate", candidateName),
	)
	return s.clone(), nil
}

// Get returns a copy of the session with the given id, or nil if absent.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil
	}
	return s.clone()
}

// Require returns a copy of the session or ErrNotFound. All mutating
// operations below use the same lookup internally.
func (st *Store) Require(id string) (*Session, error) {
	s := st.Get(id)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// SetTopicsAndQuestions publishes the generated interview content and
// transitions the session to StatusReady. Both lists are set together and
// must be of equal length — that invariant holds from the first moment the
// session is observable as Ready. Only legal from StatusInitializing.
func (st *Store) SetTopicsAndQuestions(id string, topics, questions []string) error {
	if len(topics) != len(questions) {
		return fmt.Errorf("session: %d topics but %d questions", len(topics), len(questions))
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Status != StatusInitializing {
		return fmt.Errorf("%w: cannot publish questions while %s", ErrInvalidState, s.Status)
	}

	s.Topics = append([]string(nil), topics...)
	s.Questions = append([]string(nil), questions...)
	s.Status = StatusReady
	s.LastActivity = st.now()

	st.log.Info("session ready",
		slog.String("session_id", id),
		slog.Int("questions", len(questions)),
	)
	return nil
}

// RecordResponses stores the candidate's batched answers, rebuilds the
// transcript from topics+questions+responses, and transitions the session to
// StatusEvaluating. The batch length must match the question count exactly;
// the zero-question case is trivially satisfied by an empty batch.
func (st *Store) RecordResponses(id string, responses []string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Status != StatusReady {
		return fmt.Errorf("%w: cannot record responses while %s", ErrInvalidState, s.Status)
	}
	if len(responses) != len(s.Questions) {
		return fmt.Errorf("%w: expected %d, got %d", ErrLengthMismatch, len(s.Questions), len(responses))
	}

	s.Responses = append([]string(nil), responses...)

	now := st.now()
	s.Transcript = make([]TranscriptEntry, 0, len(s.Questions))
	for i, q := range s.Questions {
		topic := ""
		if i < len(s.Topics) {
			topic = s.Topics[i]
		}
		s.Transcript = append(s.Transcript, TranscriptEntry{
			Index:     i + 1,
			Topic:     topic,
			Question:  q,
			Response:  responses[i],
			Timestamp: now,
		})
	}

	s.Status = StatusEvaluating
	s.LastActivity = now

	st.log.Info("responses recorded",
		slog.String("session_id", id),
		slog.Int("count", len(responses)),
	)
	return nil
}

// Complete publishes the evaluation result and transitions the session to
// StatusCompleted. Only legal from StatusEvaluating.
func (st *Store) Complete(id, report string, scores map[string]float64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Status != StatusEvaluating {
		return fmt.Errorf("%w: cannot complete while %s", ErrInvalidState, s.Status)
	}

	s.Report = report
	if scores != nil {
		s.Scores = make(map[string]float64, len(scores))
		for k, v := range scores {
			s.Scores[k] = v
		}
	}
	s.Status = StatusCompleted
	s.LastActivity = st.now()

	st.log.Info("session completed", slog.String("session_id", id))
	return nil
}

// Fail moves the session to the terminal StatusError from any non-terminal
// status and records the failure message. Calling Fail on a terminal session
// returns ErrInvalidState — a completed or already-failed record is frozen.
func (st *Store) Fail(id, message string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Status.Terminal() {
		return fmt.Errorf("%w: cannot fail a %s session", ErrInvalidState, s.Status)
	}

	s.Status = StatusError
	s.ErrMessage = message
	s.LastActivity = st.now()

	st.log.Error("session failed",
		slog.String("session_id", id),
		slog.String("error", message),
	)
	return nil
}

// Delete removes the record. It is idempotent and returns whether anything
// was removed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	st.log.Info("session deleted", slog.String("session_id", id))
	return true
}

// List returns copies of all registered sessions in unspecified order.
func (st *Store) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s.clone())
	}
	return out
}

// Len returns the number of registered sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
