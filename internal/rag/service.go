package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Retrieval bounds. Four chunks of context is enough to ground a question
// without drowning the prompt; ten is the hard ceiling a caller can request.
const (
	defaultTopK = 4
	maxTopK     = 10
)

// Service is the retrieval facade used by the interview pipeline. It owns the
// extract -> chunk -> embed -> index path on ingestion and the embed -> search
// path on retrieval, keyed by session.
type Service struct {
	// extractor converts the raw document into plain text.
	extractor Extractor
	// chunker windows the extracted text.
	chunker *Chunker
	// embedder produces vectors for chunks and queries.
	embedder Embedder
	// index stores and searches per-session collections.
	index Index
	// log is the structured logger.
	log *slog.Logger
}

// NewService wires the retrieval facade from its collaborators. A nil
// extractor defaults to plain-text passthrough.
func NewService(extractor Extractor, chunker *Chunker, embedder Embedder, index Index, log *slog.Logger) (*Service, error) {
	if chunker == nil {
		return nil, fmt.Errorf("rag: chunker must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if extractor == nil {
		extractor = TextExtractor{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		log:       log,
	}, nil
}

// CollectionName derives the per-session collection name. Hyphens are not
// universally legal in collection identifiers, so UUID-style ids are
// normalized to underscores.
func CollectionName(sessionID string) string {
	return "resume_" + strings.ReplaceAll(sessionID, "-", "_")
}

// Ingest extracts, chunks, embeds, and indexes the document under the
// session's collection, fully replacing any prior content (last write wins).
// Returns the number of chunks indexed, or ErrEmptyDocument when extraction
// yields no text.
func (s *Service) Ingest(ctx context.Context, sessionID string, document []byte) (int, error) {
	text, err := s.extractor.Extract(ctx, document)
	if err != nil {
		return 0, fmt.Errorf("rag: extract document: %w", err)
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, ErrEmptyDocument
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("rag: embed %d chunks: %w", len(pieces), err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("rag: embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	chunks := make([]Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = Chunk{
			Content: content,
			Seq:     i,
			Metadata: map[string]string{
				"session_id":   sessionID,
				"source":       "resume",
				"chunk":        strconv.Itoa(i),
				"total_chunks": strconv.Itoa(len(pieces)),
			},
		}
	}

	collection := CollectionName(sessionID)
	if err := s.index.Replace(ctx, collection, chunks, vectors); err != nil {
		return 0, fmt.Errorf("rag: index %s: %w", collection, err)
	}

	s.log.InfoContext(ctx, "document ingested",
		"session_id", sessionID,
		"collection", collection,
		"chunks", len(chunks))
	return len(chunks), nil
}

// Retrieve embeds the query and returns the text of the top-k most similar
// chunks for the session. k is clamped to [1, 10]; zero or negative selects
// the default of 4. Returns ErrNoCollection when the session was never
// ingested; an empty (non-nil error free) result means nothing relevant.
func (s *Service) Retrieve(ctx context.Context, sessionID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = defaultTopK
	}
	if k > maxTopK {
		k = maxTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for query")
	}

	hits, err := s.index.Search(ctx, CollectionName(sessionID), vectors[0], k)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Content
	}
	return texts, nil
}

// Clear drops the session's collection. Clearing a session that was never
// ingested is not an error.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	collection := CollectionName(sessionID)
	if err := s.index.Drop(ctx, collection); err != nil {
		return fmt.Errorf("rag: drop %s: %w", collection, err)
	}
	s.log.InfoContext(ctx, "collection dropped", "session_id", sessionID, "collection", collection)
	return nil
}

// Ping checks the backing index.
func (s *Service) Ping(ctx context.Context) error {
	return s.index.Ping(ctx)
}
