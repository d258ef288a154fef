package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// fakeEmbedder returns a deterministic one-dimensional vector per text and
// records every batch it was asked to embed.
type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

// fakeIndex records Replace/Drop calls and serves canned search results.
type fakeIndex struct {
	replaced   map[string][]Chunk
	dropped    []string
	searchHits []Hit
	searchErr  error
	lastK      int
	lastName   string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{replaced: make(map[string][]Chunk)}
}

func (f *fakeIndex) Replace(_ context.Context, collection string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("fake: mismatched lengths")
	}
	f.replaced[collection] = chunks
	return nil
}

func (f *fakeIndex) Search(_ context.Context, collection string, _ []float32, k int) ([]Hit, error) {
	f.lastName = collection
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeIndex) Drop(_ context.Context, collection string) error {
	f.dropped = append(f.dropped, collection)
	return nil
}

func (f *fakeIndex) Ping(context.Context) error { return nil }
func (f *fakeIndex) Close() error               { return nil }

// newTestService builds a Service over the given fakes with a small chunker.
func newTestService(t *testing.T, emb *fakeEmbedder, idx *fakeIndex) *Service {
	t.Helper()
	chunker, err := NewChunker(10, 2)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	svc, err := NewService(nil, chunker, emb, idx, slog.Default())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func Test_CollectionName_NormalizesHyphens(t *testing.T) {
	t.Parallel()
	got := CollectionName("9b2d-44aa-01")
	if got != "resume_9b2d_44aa_01" {
		t.Errorf("want resume_9b2d_44aa_01, got %s", got)
	}
}

func Test_Ingest_EmptyDocument(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{}, newFakeIndex())
	if _, err := svc.Ingest(context.Background(), "s1", []byte("   \n ")); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("want ErrEmptyDocument, got %v", err)
	}
}

// Test_Ingest_ChunksAndMetadata verifies the full ingestion path: windowed
// chunks land in the session collection carrying positional metadata.
func Test_Ingest_ChunksAndMetadata(t *testing.T) {
	t.Parallel()
	idx := newFakeIndex()
	svc := newTestService(t, &fakeEmbedder{}, idx)

	text := strings.Repeat("x", 25)
	n, err := svc.Ingest(context.Background(), "sess-1", []byte(text))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	chunks, ok := idx.replaced["resume_sess_1"]
	if !ok {
		t.Fatalf("collection resume_sess_1 never replaced; got %v", idx.replaced)
	}
	if n != len(chunks) {
		t.Errorf("reported %d chunks, indexed %d", n, len(chunks))
	}
	for i, ch := range chunks {
		if ch.Seq != i {
			t.Errorf("chunk %d has seq %d", i, ch.Seq)
		}
		if ch.Metadata["session_id"] != "sess-1" || ch.Metadata["source"] != "resume" {
			t.Errorf("chunk %d metadata: %+v", i, ch.Metadata)
		}
	}
}

func Test_Ingest_EmbedderFailure(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{err: errors.New("model offline")}, newFakeIndex())
	if _, err := svc.Ingest(context.Background(), "s1", []byte("some resume text")); err == nil {
		t.Error("embedder failure not surfaced")
	}
}

// Test_Retrieve_ClampsK verifies the k bounds: non-positive selects the
// default, oversized requests are capped.
func Test_Retrieve_ClampsK(t *testing.T) {
	t.Parallel()
	idx := newFakeIndex()
	idx.searchHits = []Hit{{Chunk: Chunk{Content: "c"}}}
	svc := newTestService(t, &fakeEmbedder{}, idx)
	ctx := context.Background()

	for _, tc := range []struct{ in, want int }{
		{0, defaultTopK},
		{-3, defaultTopK},
		{7, 7},
		{25, maxTopK},
	} {
		if _, err := svc.Retrieve(ctx, "s1", "query", tc.in); err != nil {
			t.Fatalf("retrieve k=%d: %v", tc.in, err)
		}
		if idx.lastK != tc.want {
			t.Errorf("k=%d: want %d passed to index, got %d", tc.in, tc.want, idx.lastK)
		}
	}
}

func Test_Retrieve_ReturnsTextsInHitOrder(t *testing.T) {
	t.Parallel()
	idx := newFakeIndex()
	idx.searchHits = []Hit{
		{Chunk: Chunk{Content: "best", Seq: 2}, Score: 0.9},
		{Chunk: Chunk{Content: "second", Seq: 0}, Score: 0.5},
	}
	svc := newTestService(t, &fakeEmbedder{}, idx)

	texts, err := svc.Retrieve(context.Background(), "s1", "query", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(texts) != 2 || texts[0] != "best" || texts[1] != "second" {
		t.Errorf("want [best second], got %q", texts)
	}
	if idx.lastName != "resume_s1" {
		t.Errorf("searched wrong collection %q", idx.lastName)
	}
}

func Test_Retrieve_NoCollectionPassthrough(t *testing.T) {
	t.Parallel()
	idx := newFakeIndex()
	idx.searchErr = fmt.Errorf("%w: resume_s1", ErrNoCollection)
	svc := newTestService(t, &fakeEmbedder{}, idx)

	if _, err := svc.Retrieve(context.Background(), "s1", "query", 3); !errors.Is(err, ErrNoCollection) {
		t.Errorf("want ErrNoCollection, got %v", err)
	}
}

func Test_Clear_DropsCollection(t *testing.T) {
	t.Parallel()
	idx := newFakeIndex()
	svc := newTestService(t, &fakeEmbedder{}, idx)

	if err := svc.Clear(context.Background(), "sess-9"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(idx.dropped) != 1 || idx.dropped[0] != "resume_sess_9" {
		t.Errorf("want drop of resume_sess_9, got %v", idx.dropped)
	}
}
