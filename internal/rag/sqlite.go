package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteIndex is an Index backed by a local SQLite database. It is the
// default backend: collections persist under a root directory and survive
// process restarts, which makes the vector index the one durable artifact of
// the system.
//
// Similarity search loads the collection's vectors and scores them in-process
// with cosine similarity. Resume collections are tens of chunks, so a linear
// scan is well inside budget and avoids any vector-extension dependency.
type SQLiteIndex struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// path is the database file location, kept for log/debug output.
	path string
}

// DefaultVectorRoot returns the default root directory for the persistent
// vector index, creating it if needed. It resolves to ~/.coach/vectors.
func DefaultVectorRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("rag: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".coach", "vectors")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("rag: could not create %s: %w", dir, err)
	}
	return dir, nil
}

// OpenSQLiteIndex opens (or creates) the index database under root and runs
// the schema migration. Use ":memory:" as root for an in-memory index in tests.
func OpenSQLiteIndex(root string) (*SQLiteIndex, error) {
	path := root
	if root != ":memory:" {
		if err := os.MkdirAll(root, 0o700); err != nil {
			return nil, fmt.Errorf("rag: create vector root %s: %w", root, err)
		}
		path = filepath.Join(root, "index.db")
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// migrate creates the schema if it does not already exist.
func (idx *SQLiteIndex) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    collection  TEXT    NOT NULL,
    seq         INTEGER NOT NULL,
    content     TEXT    NOT NULL,
    metadata    TEXT    NOT NULL,  -- JSON object
    embedding   BLOB    NOT NULL   -- little-endian float32 vector
);
CREATE INDEX IF NOT EXISTS idx_chunks_collection_seq
    ON chunks (collection, seq);
`
	if _, err := idx.db.Exec(ddl); err != nil {
		return fmt.Errorf("rag: migrate: %w", err)
	}
	return nil
}

// Replace atomically swaps the named collection. The delete and all inserts
// run in a single transaction, so a concurrent Search sees either the old or
// the new collection, never a half-written one.
func (idx *SQLiteIndex) Replace(ctx context.Context, collection string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("rag: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("rag: clear collection %q: %w", collection, err)
	}

	const ins = `INSERT INTO chunks (collection, seq, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)`
	for i, ch := range chunks {
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("rag: marshal metadata for chunk %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, ins, collection, ch.Seq, ch.Content, string(meta), encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("rag: insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: commit replace: %w", err)
	}
	return nil
}

// Search scores every chunk in the collection against the query vector and
// returns the top k by cosine similarity, descending. Ties break by
// insertion order (ascending seq). Returns ErrNoCollection when the
// collection has never been created.
func (idx *SQLiteIndex) Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	const q = `SELECT seq, content, metadata, embedding FROM chunks WHERE collection = ? ORDER BY seq ASC`
	rows, err := idx.db.QueryContext(ctx, q, collection)
	if err != nil {
		return nil, fmt.Errorf("rag: search query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			ch   Chunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&ch.Seq, &ch.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("rag: search scan: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &ch.Metadata); err != nil {
			return nil, fmt.Errorf("rag: decode metadata: %w", err)
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("rag: decode embedding for seq %d: %w", ch.Seq, err)
		}
		hits = append(hits, Hit{Chunk: ch, Score: cosine(vector, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: search rows: %w", err)
	}

	if len(hits) == 0 {
		// Distinguish "empty collection cannot exist" (Replace never inserts
		// zero chunks for a live collection) from "never ingested".
		return nil, fmt.Errorf("%w: %s", ErrNoCollection, collection)
	}

	sortHits(hits)

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Drop removes the named collection. Absent collections are a no-op.
func (idx *SQLiteIndex) Drop(ctx context.Context, collection string) error {
	if _, err := idx.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("rag: drop collection %q: %w", collection, err)
	}
	return nil
}

// Ping verifies the database file is reachable.
func (idx *SQLiteIndex) Ping(ctx context.Context) error {
	if err := idx.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: sqlite ping: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// cosine returns the cosine similarity of a and b. Mismatched lengths or a
// zero vector score 0 — a useless embedding should rank last, not error out
// the whole search.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
