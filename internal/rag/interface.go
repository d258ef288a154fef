// Package rag implements the per-session document retrieval subsystem:
// chunking an extracted resume into overlapping windows, embedding the
// chunks, indexing them in a per-session collection, and serving top-k
// context lookups keyed by topic.
//
// The vector index is the only durable artifact in the system. The default
// backend persists collections in a SQLite database under a local root
// directory and survives process restarts; a Qdrant backend is available for
// deployments that already run one. Concrete backends satisfy the Index
// interface so the service layer never depends on a specific store.
package rag

import (
	"context"
	"errors"
	"sort"
)

// Sentinel errors returned by the retrieval subsystem.
var (
	// ErrEmptyDocument is returned by Ingest when the extracted text is blank.
	ErrEmptyDocument = errors.New("rag: document contains no extractable text")
	// ErrNoCollection is returned by Index.Search and Service.Retrieve when
	// the session has never been ingested. It is distinct from an empty
	// result set, which means "ingested but nothing relevant".
	ErrNoCollection = errors.New("rag: no collection for session")
)

// Chunk is the unit of indexed text: one bounded window of the source
// document. Chunks are immutable once created.
type Chunk struct {
	// Content is the raw text of the window.
	Content string
	// Seq is the chunk's position within its source document, starting at 0.
	// It is the stable tie-breaker for equal similarity scores.
	Seq int
	// Metadata holds key-value pairs attached at ingestion time
	// (session id, source tag, total chunk count, caller extras).
	Metadata map[string]string
}

// Hit is one search result: a chunk plus its similarity score.
type Hit struct {
	// Chunk is the matched chunk.
	Chunk Chunk
	// Score is the cosine similarity to the query vector.
	Score float32
}

// sortHits orders hits by score descending, ties by ascending Seq. Every
// backend runs it before returning so Search ordering never depends on the
// store's own result order.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Seq < hits[j].Chunk.Seq
	})
}

// Embedder converts text into dense vector embeddings. It is an external
// collaborator used by both the ingestion and query paths.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index stores and searches per-session chunk collections.
// Implementations must be safe to call from multiple goroutines, and Replace
// must publish atomically: a Search racing a Replace for the same collection
// observes either the old or the new collection, never a partial one.
type Index interface {
	// Replace atomically swaps the named collection for the given chunks and
	// their embeddings. vectors[i] is the embedding of chunks[i]. A missing
	// collection is created; an existing one is fully replaced.
	Replace(ctx context.Context, collection string, chunks []Chunk, vectors [][]float32) error

	// Search returns the k nearest chunks by similarity, descending, with
	// ties broken by ascending Seq. Returns ErrNoCollection when the
	// collection does not exist.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error)

	// Drop removes the named collection. Dropping an absent collection is
	// not an error.
	Drop(ctx context.Context, collection string) error

	// Ping checks whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the index.
	Close() error
}

// Extractor converts a source document into plain text. Non-text formats
// (PDF and friends) are handled by external extractors behind this seam.
type Extractor interface {
	// Extract returns the plain text of the document.
	Extract(ctx context.Context, document []byte) (string, error)
}

// TextExtractor is the trivial Extractor for documents that already are
// plain text.
type TextExtractor struct{}

// Extract returns the document bytes as a string.
func (TextExtractor) Extract(_ context.Context, document []byte) (string, error) {
	return string(document), nil
}
