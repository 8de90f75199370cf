package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/store"
)

// DurableTier keeps cache entries in the session store, surviving
// process restarts and redis flushes.
type DurableTier struct {
	store   store.Store
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewDurableTier(st store.Store, ttl time.Duration) *DurableTier {
	return &DurableTier{store: st, ttl: ttl, nowFunc: time.Now}
}

func (t *DurableTier) Name() string       { return "store" }
func (t *DurableTier) TTL() time.Duration { return t.ttl }

func (t *DurableTier) Get(ctx context.Context, key string) (*Entry, error) {
	row, err := t.store.GetCacheRow(ctx, key, t.nowFunc().Add(-t.ttl))
	if err != nil {
		return nil, eris.Wrap(err, "cache: store get")
	}
	if row == nil {
		return nil, nil
	}
	var items []model.ProcurementItem
	if err := json.Unmarshal(row.Payload, &items); err != nil {
		return nil, eris.Wrap(err, "cache: decoding store entry")
	}
	return &Entry{Items: items, Sources: row.Sources, FetchedAt: row.FetchedAt}, nil
}

func (t *DurableTier) Put(ctx context.Context, key string, entry *Entry) error {
	payload, err := json.Marshal(entry.Items)
	if err != nil {
		return eris.Wrap(err, "cache: encoding store entry")
	}
	row := store.CacheRow{
		Key:       key,
		Payload:   payload,
		Sources:   entry.Sources,
		FetchedAt: entry.FetchedAt,
	}
	if err := t.store.PutCacheRow(ctx, row); err != nil {
		return eris.Wrap(err, "cache: store put")
	}
	return nil
}
