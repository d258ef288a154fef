package interview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prepwise/coach-go/internal/session"
)

const (
	// defaultQuestionTimeout bounds one retrieve-and-generate unit. A stuck
	// model call must not hold the whole session in Initializing.
	defaultQuestionTimeout = 60 * time.Second

	// topicRetrieveK is how many resume excerpts each question is grounded on.
	topicRetrieveK = 3
)

// Pipeline prepares a freshly created session: it condenses the job
// description and indexes the resume in parallel, extracts topics, then fans
// out one worker per topic to retrieve context and generate that topic's
// question. The session reaches Ready in a single publish once every worker
// has reported.
type Pipeline struct {
	store *session.Store
	docs  ResumeIndexer
	pre   Preprocessor
	top   TopicExtractor
	gen   QuestionGenerator

	// questionTimeout bounds each per-topic worker.
	questionTimeout time.Duration
	log             *slog.Logger
}

// PipelineConfig holds the pipeline's collaborators and tuning.
type PipelineConfig struct {
	// Store is the session registry the pipeline publishes into.
	Store *session.Store
	// Docs ingests the resume and serves per-topic lookups.
	Docs ResumeIndexer
	// Preprocessor condenses the job description. Optional: when nil the raw
	// job description feeds the later stages.
	Preprocessor Preprocessor
	// TopicExtractor derives the interview topics.
	TopicExtractor TopicExtractor
	// QuestionGenerator writes one question per topic.
	QuestionGenerator QuestionGenerator
	// QuestionTimeout bounds each per-topic worker. Zero selects the default.
	QuestionTimeout time.Duration
	// Logger is the structured logger.
	Logger *slog.Logger
}

// NewPipeline validates the collaborators and constructs a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("interview: store must not be nil")
	}
	if cfg.Docs == nil {
		return nil, fmt.Errorf("interview: resume indexer must not be nil")
	}
	if cfg.TopicExtractor == nil || cfg.QuestionGenerator == nil {
		return nil, fmt.Errorf("interview: topic extractor and question generator must not be nil")
	}
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = defaultQuestionTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		store:           cfg.Store,
		docs:            cfg.Docs,
		pre:             cfg.Preprocessor,
		top:             cfg.TopicExtractor,
		gen:             cfg.QuestionGenerator,
		questionTimeout: cfg.QuestionTimeout,
		log:             cfg.Logger,
	}, nil
}

// fallbackQuestion is published for a topic whose worker failed or timed out.
// A generic question keeps the interview whole; the failure is logged.
func fallbackQuestion(topic string) string {
	return fmt.Sprintf("Tell me about your experience with %s.", topic)
}

// Run prepares the session end to end and publishes its questions. A
// preprocessing failure is fatal: the session is moved to its error state and
// the error returned. A resume indexing failure only degrades grounding, and
// per-topic failures degrade to fallback questions.
func (p *Pipeline) Run(ctx context.Context, sessionID string, resume []byte) error {
	s, err := p.store.Require(sessionID)
	if err != nil {
		return err
	}

	// The job description summary and the resume index have no data
	// dependency; build both at once.
	var (
		wg    sync.WaitGroup
		jdRes Result
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		jdRes = p.preprocess(ctx, s.JobDescription)
	}()
	if len(resume) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := p.docs.Ingest(ctx, sessionID, resume)
			if err != nil {
				// Questions fall back to ungrounded generation; retrieval will
				// find no collection for this session.
				p.log.WarnContext(ctx, "resume indexing failed, questions will be ungrounded",
					"session_id", sessionID, "error", err)
				return
			}
			p.log.InfoContext(ctx, "resume indexed",
				"session_id", sessionID, "chunks", n)
		}()
	}
	wg.Wait()

	if jdRes.Err != nil {
		return p.fail(ctx, sessionID, fmt.Errorf("%w: %v", ErrPreprocess, jdRes.Err))
	}

	topics, err := p.top.Topics(ctx, jdRes.Text)
	if err != nil {
		// Degrade to an empty interview rather than erroring the session: the
		// resume is indexed and the operator can see what happened in the log.
		p.log.WarnContext(ctx, "topic extraction failed, publishing empty interview",
			"session_id", sessionID, "error", err)
		topics = nil
	}

	questions := p.generateAll(ctx, sessionID, s.CandidateName, topics)

	if err := p.store.SetTopicsAndQuestions(sessionID, topics, questions); err != nil {
		return p.fail(ctx, sessionID, fmt.Errorf("interview: publish questions: %w", err))
	}

	p.log.InfoContext(ctx, "session ready",
		"session_id", sessionID, "topics", len(topics))
	return nil
}

// preprocess condenses the job description. The raw text passes through when
// no collaborator is configured; a configured collaborator failing is fatal,
// since every later stage works from its output.
func (p *Pipeline) preprocess(ctx context.Context, jd string) Result {
	if p.pre == nil {
		return Result{Text: jd}
	}
	cleaned, err := p.pre.Clean(ctx, jd)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: cleaned}
}

// generateAll runs one worker per topic. Each worker retrieves its own
// context and generates its question under an individual timeout, so one
// topic's latency never delays another's generation. The returned slice is
// parallel to topics; failed units carry the fallback question.
func (p *Pipeline) generateAll(ctx context.Context, sessionID, candidate string, topics []string) []string {
	if len(topics) == 0 {
		return nil
	}

	results := make([]Result, len(topics))
	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unitCtx, cancel := context.WithTimeout(ctx, p.questionTimeout)
			defer cancel()
			results[i] = p.generateOne(unitCtx, sessionID, candidate, topic)
		}()
	}
	wg.Wait()

	questions := make([]string, len(topics))
	for i, r := range results {
		if r.Err != nil {
			p.log.WarnContext(ctx, "question generation failed, using fallback",
				"session_id", sessionID, "topic", topics[i], "error", r.Err)
			questions[i] = fallbackQuestion(topics[i])
			continue
		}
		questions[i] = r.Text
	}
	return questions
}

// generateOne retrieves topic context and generates the question. A
// retrieval failure degrades to an ungrounded question; a generation failure
// fails the unit.
func (p *Pipeline) generateOne(ctx context.Context, sessionID, candidate, topic string) Result {
	excerpts, err := p.docs.Retrieve(ctx, sessionID, topic, topicRetrieveK)
	if err != nil {
		p.log.WarnContext(ctx, "context retrieval failed, generating ungrounded question",
			"session_id", sessionID, "topic", topic, "error", err)
		excerpts = nil
	}

	q, err := p.gen.Question(ctx, GenInput{
		Topic:         topic,
		Context:       excerpts,
		CandidateName: candidate,
		SessionID:     sessionID,
	})
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: q}
}

// fail moves the session to its error state and returns err. The store
// refusing the transition (terminal race) is logged, not propagated.
func (p *Pipeline) fail(ctx context.Context, sessionID string, err error) error {
	if ferr := p.store.Fail(sessionID, err.Error()); ferr != nil {
		p.log.ErrorContext(ctx, "could not mark session failed",
			"session_id", sessionID, "error", ferr)
	}
	return err
}
