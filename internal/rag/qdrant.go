package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// VectorSize is the dimensionality of the embeddings stored per collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant instance. Each session gets
// its own collection name, exposed as an alias over one of two physical
// generations so Replace can publish a full collection in a single alias swap.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a QdrantIndex and verifies the server is reachable.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// stagingCollection picks the physical generation to build the next replace
// into: the slot the alias does not currently point at.
func stagingCollection(collection, current string) string {
	staging := collection + "_a"
	if current == staging {
		staging = collection + "_b"
	}
	return staging
}

// aliasTarget returns the physical collection the alias points at, or ""
// when the alias does not exist.
func (q *QdrantIndex) aliasTarget(ctx context.Context, alias string) (string, error) {
	descs, err := q.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("qdrant: failed to list aliases: %w", err)
	}
	for _, d := range descs {
		if d.GetAliasName() == alias {
			return d.GetCollectionName(), nil
		}
	}
	return "", nil
}

// createCollection creates a fresh physical collection, dropping any leftover
// of the same name from an interrupted earlier replace.
func (q *QdrantIndex) createCollection(ctx context.Context, collection string) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("qdrant: failed to reset collection %q: %w", collection, err)
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", collection, err)
	}
	return nil
}

// Replace swaps the named collection for the given chunks and embeddings.
// Qdrant has no multi-operation transaction, so the new generation is built
// in a staging collection and published by re-pointing the alias in a single
// request: a racing Search sees the old generation or the new one, never an
// empty or half-upserted collection.
func (q *QdrantIndex) Replace(ctx context.Context, collection string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	current, err := q.aliasTarget(ctx, collection)
	if err != nil {
		return err
	}
	staging := stagingCollection(collection, current)
	if err := q.createCollection(ctx, staging); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, ch := range chunks {
		payload := map[string]interface{}{
			"content": ch.Content,
			"seq":     strconv.Itoa(ch.Seq),
		}
		for k, v := range ch.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(ch.Seq)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	// Wait so every point is searchable before the alias flips over.
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: staging,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", staging, err)
	}

	actions := make([]*qdrant.AliasOperations, 0, 2)
	if current != "" {
		actions = append(actions, &qdrant.AliasOperations{
			Action: &qdrant.AliasOperations_DeleteAlias{
				DeleteAlias: &qdrant.DeleteAlias{AliasName: collection},
			},
		})
	}
	actions = append(actions, &qdrant.AliasOperations{
		Action: &qdrant.AliasOperations_CreateAlias{
			CreateAlias: &qdrant.CreateAlias{
				AliasName:      collection,
				CollectionName: staging,
			},
		},
	})
	if err := q.client.UpdateAliases(ctx, actions); err != nil {
		return fmt.Errorf("qdrant: failed to point %q at %q: %w", collection, staging, err)
	}

	if current != "" {
		if err := q.client.DeleteCollection(ctx, current); err != nil {
			return fmt.Errorf("qdrant: failed to drop previous generation %q: %w", current, err)
		}
	}
	return nil
}

// Search performs a cosine similarity query through the alias and returns
// the top-k hits, score descending with ties broken by ascending seq.
func (q *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	target, err := q.aliasTarget(ctx, collection)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoCollection, collection)
	}

	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in %q failed: %w", collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{Score: r.Score}
		hit.Chunk.Metadata = make(map[string]string)
		if p := r.Payload; p != nil {
			for key, v := range p {
				switch key {
				case "content":
					hit.Chunk.Content = v.GetStringValue()
				case "seq":
					seq, convErr := strconv.Atoi(v.GetStringValue())
					if convErr == nil {
						hit.Chunk.Seq = seq
					}
				default:
					hit.Chunk.Metadata[key] = v.GetStringValue()
				}
			}
		}
		hits = append(hits, hit)
	}
	sortHits(hits)
	return hits, nil
}

// Drop removes the alias and both physical generations, including any slot
// orphaned by an interrupted Replace. Absent collections are a no-op.
func (q *QdrantIndex) Drop(ctx context.Context, collection string) error {
	target, err := q.aliasTarget(ctx, collection)
	if err != nil {
		return err
	}
	if target != "" {
		if err := q.client.DeleteAlias(ctx, collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop alias %q: %w", collection, err)
		}
	}
	for _, phys := range []string{collection + "_a", collection + "_b"} {
		exists, err := q.client.CollectionExists(ctx, phys)
		if err != nil {
			return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
		}
		if !exists {
			continue
		}
		if err := q.client.DeleteCollection(ctx, phys); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", phys, err)
		}
	}
	return nil
}

// Ping verifies the Qdrant server is reachable.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
