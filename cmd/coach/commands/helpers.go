package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prepwise/coach-go/internal/embedder"
	"github.com/prepwise/coach-go/internal/rag"
)

// getEnvInt returns the environment variable parsed as an int, or fallback
// when unset or unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration returns the environment variable parsed as a Go duration
// (e.g. "30m", "1h"), or fallback when unset or unparseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// buildIndex selects and opens the vector index backend. The embedded SQLite
// index is the default; VECTOR_BACKEND=qdrant (or a QDRANT_HOST with no
// explicit backend) selects Qdrant. Returns the index, its label for
// readiness checks, and a close function.
func buildIndex(ctx context.Context, log *slog.Logger) (rag.Index, string, func(), error) {
	backend := os.Getenv("VECTOR_BACKEND")
	if backend == "" {
		if os.Getenv("QDRANT_HOST") != "" {
			backend = "qdrant"
		} else {
			backend = "sqlite"
		}
	}

	switch backend {
	case "qdrant":
		dims := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(os.Getenv("EMBEDDING_PROVIDER")))
		idx, err := rag.NewQdrantIndex(ctx, &rag.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       getEnvInt("QDRANT_PORT", 0),
			VectorSize: uint64(dims),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, "", nil, fmt.Errorf("open qdrant index: %w", err)
		}
		log.Info("vector index ready",
			slog.String("backend", "qdrant"),
			slog.String("host", os.Getenv("QDRANT_HOST")),
		)
		return idx, "qdrant", func() { _ = idx.Close() }, nil

	case "sqlite":
		root := os.Getenv("VECTOR_ROOT")
		if root == "" {
			var err error
			root, err = rag.DefaultVectorRoot()
			if err != nil {
				return nil, "", nil, fmt.Errorf("resolve vector root: %w", err)
			}
		}
		idx, err := rag.OpenSQLiteIndex(root)
		if err != nil {
			return nil, "", nil, fmt.Errorf("open sqlite index: %w", err)
		}
		log.Info("vector index ready",
			slog.String("backend", "sqlite"),
			slog.String("root", root),
		)
		return idx, "sqlite", func() { _ = idx.Close() }, nil

	default:
		return nil, "", nil, fmt.Errorf("unknown VECTOR_BACKEND %q (want sqlite or qdrant)", backend)
	}
}
