// Package index builds and queries per-session vector indexes backed by
// SQLite with the sqlite-vec extension. Each index lives in its own
// directory and is written once at build time.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/haidar/ragchat/pkg/embedding"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// DBFileName is the index database file inside a session directory
const DBFileName = "index.db"

// Result is one retrieved chunk with its similarity score
type Result struct {
	Content string  `json:"content"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
}

// Metadata describes a built index
type Metadata struct {
	Pages     int       `json:"pages"`
	Chunks    int       `json:"chunks"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// Index is a searchable vector index over document chunks
type Index struct {
	db       *sql.DB
	embedder embedding.Provider
	meta     Metadata
}

// Entry is one chunk plus its embedding, ready for storage
type Entry struct {
	Content   string
	Page      int
	Embedding []float32
}

// Create writes a fresh index into dir from the given entries, replacing any
// prior index in that directory.
func Create(dir string, pages int, entries []Entry, embedder embedding.Provider) (*Index, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cannot create index with no entries")
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear index directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := openDB(filepath.Join(dir, DBFileName))
	if err != nil {
		return nil, err
	}

	dimension := len(entries[0].Embedding)
	meta := Metadata{
		Pages:     pages,
		Chunks:    len(entries),
		Dimension: dimension,
		CreatedAt: time.Now().UTC(),
	}

	if err := initSchema(db, dimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, entry := range entries {
		if len(entry.Embedding) != dimension {
			db.Close()
			return nil, fmt.Errorf("entry %d has dimension %d, expected %d", i, len(entry.Embedding), dimension)
		}

		if _, err := tx.Exec(
			"INSERT INTO chunks (id, content, page) VALUES (?, ?, ?)",
			i, entry.Content, entry.Page,
		); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}

		embeddingJSON, err := json.Marshal(entry.Embedding)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to marshal embedding: %w", err)
		}

		if _, err := tx.Exec(
			"INSERT INTO embeddings (chunk_id, embedding) VALUES (?, ?)",
			i, string(embeddingJSON),
		); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to insert embedding %d: %w", i, err)
		}
	}

	if err := writeMeta(tx, meta); err != nil {
		db.Close()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to commit index: %w", err)
	}

	return &Index{db: db, embedder: embedder, meta: meta}, nil
}

// Open loads a persisted index from dir
func Open(dir string, embedder embedding.Provider) (*Index, error) {
	dbPath := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no index at %s: %w", dir, err)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	meta, err := readMeta(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	return &Index{db: db, embedder: embedder, meta: meta}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return db, nil
}

func initSchema(db *sql.DB, dimension int) error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			page INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
			chunk_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimension)
	if _, err := db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

func writeMeta(tx *sql.Tx, meta Metadata) error {
	values := map[string]string{
		"pages":      strconv.Itoa(meta.Pages),
		"chunks":     strconv.Itoa(meta.Chunks),
		"dimension":  strconv.Itoa(meta.Dimension),
		"created_at": meta.CreatedAt.Format(time.RFC3339),
	}
	for key, value := range values {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to write metadata %s: %w", key, err)
		}
	}
	return nil
}

func readMeta(db *sql.DB) (Metadata, error) {
	rows, err := db.Query("SELECT key, value FROM meta")
	if err != nil {
		return Metadata{}, err
	}
	defer rows.Close()

	var meta Metadata
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Metadata{}, err
		}
		switch key {
		case "pages":
			meta.Pages, _ = strconv.Atoi(value)
		case "chunks":
			meta.Chunks, _ = strconv.Atoi(value)
		case "dimension":
			meta.Dimension, _ = strconv.Atoi(value)
		case "created_at":
			meta.CreatedAt, _ = time.Parse(time.RFC3339, value)
		}
	}
	return meta, rows.Err()
}

// Search returns the k chunks most similar to the query, ordered by
// descending similarity.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 4
	}

	queryEmbedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	embeddingJSON, err := json.Marshal(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT c.content, c.page, vec_distance_cosine(e.embedding, ?) AS distance
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		ORDER BY distance ASC
		LIMIT ?
	`, string(embeddingJSON), k)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.Content, &r.Page, &distance); err != nil {
			return nil, err
		}
		r.Score = 1.0 - distance
		results = append(results, r)
	}

	return results, rows.Err()
}

// Meta returns the index metadata recorded at build time
func (ix *Index) Meta() Metadata {
	return ix.meta
}

// Close closes the underlying database
func (ix *Index) Close() error {
	return ix.db.Close()
}
