// Package sqlite is a persistent local vector store backed by a single
// SQLite database inside the store location directory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"

	"ragbench/internal/domain"
	"ragbench/internal/vectorstore"
)

// DBFile is the database file name inside the store location.
const DBFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id    TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	vector      BLOB NOT NULL
);`

// Storage keeps chunks and float32 vectors in SQLite and searches them by
// brute-force cosine similarity.
type Storage struct {
	dir string

	mu        sync.Mutex
	db        *sql.DB
	dimension int
}

// NewStorage returns a store rooted at dir. Nothing is created until Init.
func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

func (s *Storage) Name() string { return "sqlite" }

// Exists reports whether the location directory exists and is not empty.
func (s *Storage) Exists(context.Context) (bool, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func (s *Storage) open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	dsn := filepath.Join(s.dir, DBFile) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite: open %q: %w", s.dir, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: create schema: %w", err)
	}
	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		db.Close()
		return fmt.Errorf("sqlite: read dimension: %w", err)
	default:
		if s.dimension, err = strconv.Atoi(raw); err != nil {
			db.Close()
			return fmt.Errorf("sqlite: bad stored dimension %q", raw)
		}
	}
	s.db = db
	return nil
}

// Init creates the database if needed and records the dimension. An
// existing database must have the same dimension.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := s.open(ctx); err != nil {
		return err
	}
	if s.dimension != 0 {
		if s.dimension != dimension {
			return fmt.Errorf("%w: got %d, store at %s has %d", vectorstore.ErrDimensionMismatch, dimension, s.dir, s.dimension)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(dimension)); err != nil {
		return fmt.Errorf("sqlite: write dimension: %w", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil || s.dimension == 0 {
		return vectorstore.ErrNotInitialized
	}
	if err := vectorstore.CheckBatch(chunks, vectors, s.dimension); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks (chunk_id, document_id, idx, text, metadata, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocumentID, c.Index, c.Text, string(meta), encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("sqlite: insert chunk %s: %w", c.ChunkID, err)
		}
	}
	return tx.Commit()
}

// Search scans every stored vector. A store that was never created yields
// no results.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topK <= 0 {
		topK = 4
	}
	if s.db == nil {
		if _, err := os.Stat(filepath.Join(s.dir, DBFile)); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	}
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, store has %d", vectorstore.ErrDimensionMismatch, len(vector), s.dimension)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, document_id, idx, text, metadata, vector FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		chunks []domain.Chunk
		scores []float64
	)
	for rows.Next() {
		var (
			c    domain.Chunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Index, &c.Text, &meta, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: chunk %s metadata: %w", c.ChunkID, err)
		}
		chunks = append(chunks, c)
		scores = append(scores, vectorstore.Cosine(decodeVector(blob), vector))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	idxs := vectorstore.TopK(scores, topK)
	out := make([]domain.SearchResult, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, domain.SearchResult{Chunk: chunks[i], Score: scores[i]})
	}
	return out, nil
}

// Reset closes the database and removes the whole location directory.
func (s *Storage) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closeLocked(); err != nil {
		return err
	}
	return os.RemoveAll(s.dir)
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Storage) closeLocked() error {
	s.dimension = 0
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(f)))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/4)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
	}
	return v
}
