// Package cache stores completed analysis responses keyed by request
// fingerprint.
package cache

import (
	"context"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Store is a response cache. Implementations must be safe for concurrent use
// and must not hand out responses that alias their stored copy.
type Store interface {
	Get(ctx context.Context, key string) (*models.AnalysisResponse, bool, error)
	Put(ctx context.Context, key string, resp *models.AnalysisResponse) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Stats(ctx context.Context) Stats

	// FindByDocument returns the most recent response stored for documentID
	FindByDocument(ctx context.Context, documentID string) (*models.AnalysisResponse, bool, error)
}

// Stats provides statistics about cache performance
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	Size     int     `json:"current_size"`
	Capacity int     `json:"max_capacity"`
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
