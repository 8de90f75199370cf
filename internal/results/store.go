// Package results holds completed search payloads for a short window
// so clients that missed the event stream can still poll them.
package results

import (
	"sync"
	"time"

	"github.com/licitaradar/radar/internal/model"
)

// DefaultRetention is how long a completed result stays pollable.
const DefaultRetention = 10 * time.Minute

type entry struct {
	result   model.SearchResult
	storedAt time.Time
}

// Store is an in-memory result holder with per-entry expiry.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]entry
	retention time.Duration
	nowFunc   func() time.Time
}

func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		entries:   map[string]entry{},
		retention: retention,
		nowFunc:   time.Now,
	}
}

// Put stores the result keyed by its session id, replacing any
// previous payload for the same session.
func (s *Store) Put(result model.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[result.SessionID] = entry{result: result, storedAt: s.nowFunc()}
}

// Get returns the result for the session, or false when the session is
// unknown or its retention window has passed.
func (s *Store) Get(sessionID string) (model.SearchResult, bool) {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return model.SearchResult{}, false
	}
	if s.nowFunc().Sub(e.storedAt) >= s.retention {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return model.SearchResult{}, false
	}
	return e.result, true
}

// Prune drops every expired entry and returns how many were removed.
func (s *Store) Prune() int {
	now := s.nowFunc()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.storedAt) >= s.retention {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
