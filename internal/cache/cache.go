package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
)

// Entry is one cached result set for a parameter combination.
type Entry struct {
	Items     []model.ProcurementItem `json:"results"`
	Sources   []string                `json:"sources"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// Key derives the cache key for a parameter combination. Keywords and
// regions are sorted and lowercased first so that equivalent searches
// hash to the same key regardless of input order.
func Key(params model.SearchParams) string {
	canon := struct {
		Sector   string   `json:"sector"`
		Regions  []string `json:"regions"`
		Keywords []string `json:"keywords"`
		DateFrom string   `json:"date_from"`
		DateTo   string   `json:"date_to"`
	}{
		Sector:   strings.ToLower(params.Sector),
		DateFrom: params.DateFrom,
		DateTo:   params.DateTo,
	}
	for _, r := range params.Regions {
		canon.Regions = append(canon.Regions, strings.ToLower(strings.TrimSpace(r)))
	}
	for _, k := range params.Keywords {
		canon.Keywords = append(canon.Keywords, strings.ToLower(strings.TrimSpace(k)))
	}
	sort.Strings(canon.Regions)
	sort.Strings(canon.Keywords)

	raw, _ := json.Marshal(canon)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// Tier is one layer of the cascade. Get returns (nil, nil) on a miss;
// freshness is judged by the cascade, tiers only report what they hold.
type Tier interface {
	Name() string
	TTL() time.Duration
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
}

// Cascade checks tiers in order and serves the first fresh hit. An
// entry whose age has reached the tier's TTL counts as a miss. Hits
// found in a lower tier are copied back into the tiers above it.
type Cascade struct {
	tiers   []Tier
	logger  *zap.Logger
	nowFunc func() time.Time
}

func NewCascade(tiers ...Tier) *Cascade {
	return &Cascade{
		tiers:   tiers,
		logger:  zap.L(),
		nowFunc: time.Now,
	}
}

// Hit describes where a cache lookup was satisfied.
type Hit struct {
	Entry *Entry
	Tier  string
	Age   time.Duration
}

// Get walks the tiers in order. A nil return means every tier missed.
// Tier errors degrade to misses so a broken layer never blocks search.
func (c *Cascade) Get(ctx context.Context, key string) *Hit {
	now := c.nowFunc()
	for i, t := range c.tiers {
		entry, err := t.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache tier read failed",
				zap.String("tier", t.Name()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if entry == nil {
			continue
		}
		age := now.Sub(entry.FetchedAt)
		if age >= t.TTL() {
			continue
		}
		c.backfill(ctx, key, entry, i)
		return &Hit{Entry: entry, Tier: t.Name(), Age: age}
	}
	return nil
}

// Put writes the entry to every tier. Failures are logged per tier and
// do not abort the remaining writes.
func (c *Cascade) Put(ctx context.Context, key string, entry *Entry) {
	for _, t := range c.tiers {
		if err := t.Put(ctx, key, entry); err != nil {
			c.logger.Warn("cache tier write failed",
				zap.String("tier", t.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

func (c *Cascade) backfill(ctx context.Context, key string, entry *Entry, hitIdx int) {
	for _, t := range c.tiers[:hitIdx] {
		if err := t.Put(ctx, key, entry); err != nil {
			c.logger.Warn("cache backfill failed",
				zap.String("tier", t.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}
