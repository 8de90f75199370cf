package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// LocalTier is the last-resort layer, one JSON file per key under a
// local directory. It is what keeps a previously seen search usable
// when both redis and the store are down.
type LocalTier struct {
	dir string
	ttl time.Duration
}

func NewLocalTier(dir string, ttl time.Duration) (*LocalTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: creating local dir %s", dir)
	}
	return &LocalTier{dir: dir, ttl: ttl}, nil
}

func (t *LocalTier) Name() string       { return "local" }
func (t *LocalTier) TTL() time.Duration { return t.ttl }

func (t *LocalTier) path(key string) string {
	return filepath.Join(t.dir, key+".json")
}

func (t *LocalTier) Get(_ context.Context, key string) (*Entry, error) {
	data, err := os.ReadFile(t.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "cache: reading local entry")
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A truncated file from an interrupted write is a miss, not a fault.
		return nil, nil
	}
	return &entry, nil
}

func (t *LocalTier) Put(_ context.Context, key string, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: encoding local entry")
	}
	tmp := t.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "cache: writing local entry")
	}
	if err := os.Rename(tmp, t.path(key)); err != nil {
		return eris.Wrap(err, "cache: publishing local entry")
	}
	return nil
}

// Prune removes local entries older than the tier TTL and returns how
// many files were deleted.
func (t *LocalTier) Prune(now time.Time) (int, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return 0, eris.Wrap(err, "cache: listing local dir")
	}
	removed := 0
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= t.ttl {
			if err := os.Remove(filepath.Join(t.dir, ent.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
