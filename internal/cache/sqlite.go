package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	fingerprint TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_cache_document ON analysis_cache (document_id, created_at);
`

// SQLite is a durable Store backed by a single SQLite file
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// OpenSQLite opens (creating if needed) the cache database at path
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	logger.Info("opening cache database", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to open cache database", "error", err)
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		logger.Error("failed to migrate cache database", "error", err)
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLite{db: db, logger: logger}, nil
}

// Get loads the response stored under key
func (s *SQLite) Get(ctx context.Context, key string) (*models.AnalysisResponse, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_cache WHERE fingerprint = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	resp, err := decodeResponse(payload)
	if err != nil {
		return nil, false, err
	}
	s.hits.Add(1)
	return resp, true, nil
}

// Put upserts resp under key
func (s *SQLite) Put(ctx context.Context, key string, resp *models.AnalysisResponse) error {
	if resp == nil {
		return nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (fingerprint, document_id, status, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			document_id = excluded.document_id,
			status      = excluded.status,
			payload     = excluded.payload,
			created_at  = excluded.created_at`,
		key, resp.DocumentID, string(resp.Status), string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Clear deletes every cached response
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache`); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	s.hits.Store(0)
	s.misses.Store(0)
	return nil
}

// Len returns the number of cached responses
func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return n, nil
}

// FindByDocument returns the newest response for documentID
func (s *SQLite) FindByDocument(ctx context.Context, documentID string) (*models.AnalysisResponse, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM analysis_cache
		WHERE document_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, documentID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	resp, err := decodeResponse(payload)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

// Stats returns hit and miss counters for this process
func (s *SQLite) Stats(ctx context.Context) Stats {
	size, err := s.Len(ctx)
	if err != nil {
		s.logger.Warn("cache size unavailable", "error", err)
	}
	hits, misses := s.hits.Load(), s.misses.Load()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
		Size:    size,
	}
}

// Close closes the database
func (s *SQLite) Close() error {
	s.logger.Info("closing cache database")
	return s.db.Close()
}

func decodeResponse(payload string) (*models.AnalysisResponse, error) {
	var resp models.AnalysisResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &resp, nil
}

var _ Store = (*SQLite)(nil)
