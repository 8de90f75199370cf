// Package store persists search sessions, the durable cache tier, and user
// feedback. Two backends are provided: Postgres for deployments and SQLite
// for local runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	UserID string
	Status model.SearchStatus
	Limit  int
	Offset int
}

// CacheRow is one durable-tier cache entry.
type CacheRow struct {
	Key       string
	Payload   []byte
	Sources   []string
	FetchedAt time.Time
}

// Store is the persistence interface for the search pipeline.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.SearchSession) error
	PatchSession(ctx context.Context, id string, patch model.SessionPatch) error
	GetSession(ctx context.Context, id string) (*model.SearchSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.SearchSession, error)
	// SweepStale marks every created/processing session as timed_out with the
	// given message. Terminal sessions are never touched.
	SweepStale(ctx context.Context, message string) (int, error)

	// Durable cache tier
	GetCacheRow(ctx context.Context, key string, notBefore time.Time) (*CacheRow, error)
	PutCacheRow(ctx context.Context, row CacheRow) error
	DeleteExpiredCache(ctx context.Context, before time.Time) (int, error)

	// Feedback
	UpsertFeedback(ctx context.Context, fb model.Feedback) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
