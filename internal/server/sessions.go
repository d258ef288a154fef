package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prepwise/coach-go/internal/logging"
	"github.com/prepwise/coach-go/internal/session"
)

// minJobDescriptionChars is the minimum job description length accepted at
// session creation. Anything shorter carries too little signal to extract
// topics from.
const minJobDescriptionChars = 50

// toSessionResponse maps a session record to its JSON representation.
func toSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		Status:         string(s.Status),
		CandidateName:  s.CandidateName,
		Topics:         s.Topics,
		Questions:      s.Questions,
		TotalQuestions: s.TotalQuestions(),
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		LastActivity:   s.LastActivity.Format(time.RFC3339),
		Error:          s.ErrMessage,
	}
}

// handleCreateSession handles POST /api/v1/sessions. It registers the
// session, runs the full preparation pipeline inline, and responds once the
// questions are published. Clients get a complete interview in one round trip.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(strings.TrimSpace(req.JobDescription)) < minJobDescriptionChars {
		s.writeError(w, r, http.StatusBadRequest, "job description too short")
		return
	}
	id := uuid.NewString()
	if _, err := s.store.Create(id, req.CandidateName, req.JobDescription, ""); err != nil {
		if errors.Is(err, session.ErrAlreadyExists) {
			s.writeError(w, r, http.StatusConflict, "session already exists")
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, "could not create session")
		return
	}
	s.metrics.sessionsCreatedTotal.Inc()

	start := time.Now()
	err := s.pipeline.Run(r.Context(), id, []byte(req.Resume))
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.pipelineDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("session preparation failed", "session_id", id, "error", err)
		if got := s.store.Get(id); got != nil {
			s.writeJSON(w, r, http.StatusInternalServerError, toSessionResponse(got))
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, "session preparation failed")
		return
	}

	got := s.store.Get(id)
	if got == nil {
		// Deleted between publish and read; treat as expired.
		s.writeError(w, r, http.StatusNotFound, "session expired")
		return
	}
	s.writeJSON(w, r, http.StatusOK, toSessionResponse(got))
}

// handleGetSession handles GET /api/v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	got := s.store.Get(r.PathValue("id"))
	if got == nil {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, r, http.StatusOK, toSessionResponse(got))
}

// handleRecordResponses handles POST /api/v1/sessions/{id}/responses. The
// batch is stored atomically and evaluation starts in the background; the
// client polls the evaluation endpoint for the result.
func (s *Server) handleRecordResponses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := logging.FromContext(r.Context())

	var req responsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.RecordResponses(id, req.Responses); err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			s.writeError(w, r, http.StatusNotFound, "session not found")
		case errors.Is(err, session.ErrLengthMismatch), errors.Is(err, session.ErrInvalidState):
			s.writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, r, http.StatusInternalServerError, "could not record responses")
		}
		return
	}

	// Evaluation outlives this request; detach from the request context but
	// keep its logger.
	evalCtx := logging.WithLogger(context.Background(), log)
	go func() {
		start := time.Now()
		err := s.eval.Evaluate(evalCtx, id)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			log.Error("background evaluation failed", "session_id", id, "error", err)
		}
		s.metrics.evaluationsTotal.WithLabelValues(outcome).Inc()
		s.metrics.evaluationDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	got := s.store.Get(id)
	if got == nil {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, r, http.StatusOK, toSessionResponse(got))
}

// handleGetEvaluation handles GET /api/v1/sessions/{id}/evaluation.
func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	got := s.store.Get(r.PathValue("id"))
	if got == nil {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}

	switch got.Status {
	case session.StatusCompleted:
		entries := make([]transcriptEntry, len(got.Transcript))
		for i, e := range got.Transcript {
			entries[i] = transcriptEntry{Topic: e.Topic, Question: e.Question, Response: e.Response}
		}
		s.writeJSON(w, r, http.StatusOK, evaluationResponse{
			Report:     got.Report,
			Scores:     got.Scores,
			Transcript: entries,
		})
	case session.StatusEvaluating:
		s.writeError(w, r, http.StatusBadRequest, "evaluation in progress")
	case session.StatusError:
		s.writeError(w, r, http.StatusInternalServerError, got.ErrMessage)
	default:
		s.writeError(w, r, http.StatusBadRequest, "session has no evaluation")
	}
}

// handleDeleteSession handles DELETE /api/v1/sessions/{id}. The resume index
// is dropped best effort; the session record is the source of truth.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Delete(id) {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	if s.docs != nil {
		if err := s.docs.Clear(r.Context(), id); err != nil {
			logging.FromContext(r.Context()).Warn("could not drop resume index",
				"session_id", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvaluateTranscript handles POST /api/v1/evaluate. It scores a
// caller-supplied transcript without creating a session.
func (s *Server) handleEvaluateTranscript(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Transcript) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "transcript is required")
		return
	}

	entries := make([]session.TranscriptEntry, len(req.Transcript))
	for i, e := range req.Transcript {
		entries[i] = session.TranscriptEntry{
			Index:    i + 1,
			Topic:    e.Topic,
			Question: e.Question,
			Response: e.Response,
		}
	}

	report, scores, err := s.eval.EvaluateTranscript(r.Context(), entries, req.JobDescription)
	if err != nil {
		logging.FromContext(r.Context()).Error("transcript evaluation failed", "error", err)
		s.writeError(w, r, http.StatusBadGateway, "evaluation failed")
		return
	}
	s.metrics.evaluationsTotal.WithLabelValues("ok").Inc()
	s.writeJSON(w, r, http.StatusOK, evaluationResponse{Report: report, Scores: scores})
}
