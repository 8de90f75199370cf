package source

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
)

// ErrAllSourcesFailed means no source returned anything usable.
var ErrAllSourcesFailed = eris.New("source: all sources failed")

// Consolidated is the merged answer from every configured source.
type Consolidated struct {
	Items     []model.ProcurementItem
	Succeeded []string
	Failed    map[string]string
}

// Degraded reports whether at least one source failed while others
// delivered.
func (c *Consolidated) Degraded() bool { return len(c.Failed) > 0 }

// Consolidator fans a fetch out to every source concurrently, merges
// the results and deduplicates them. One slow or broken source never
// fails the search as long as another delivers.
type Consolidator struct {
	clients  []Client
	deadline time.Duration

	// OnPartial, when set, is invoked from each source's goroutine as
	// soon as that source delivers. Callers must tolerate concurrent
	// invocations.
	OnPartial func(source string, items []model.ProcurementItem)
}

func NewConsolidator(deadline time.Duration, clients ...Client) *Consolidator {
	if deadline <= 0 {
		deadline = 25 * time.Second
	}
	return &Consolidator{clients: clients, deadline: deadline}
}

// Sources lists the configured source names in registration order.
func (c *Consolidator) Sources() []string {
	names := make([]string, len(c.clients))
	for i, cl := range c.clients {
		names[i] = cl.Name()
	}
	return names
}

// Fetch queries every source under a shared deadline. It errors only
// when every source failed; partial failure is reported through the
// Failed map so the caller can label the response degraded.
func (c *Consolidator) Fetch(ctx context.Context, params model.SearchParams) (*Consolidated, error) {
	if len(c.clients) == 0 {
		return nil, eris.New("source: no sources configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	type sourceResult struct {
		items []model.ProcurementItem
		err   error
	}
	results := make([]sourceResult, len(c.clients))

	var wg sync.WaitGroup
	for i, client := range c.clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := client.Fetch(ctx, params)
			results[i] = sourceResult{items: items, err: err}
			if err == nil && c.OnPartial != nil {
				c.OnPartial(client.Name(), items)
			}
		}()
	}
	wg.Wait()

	out := &Consolidated{Failed: map[string]string{}}
	seen := make(map[string]struct{})
	for i, client := range c.clients {
		r := results[i]
		if r.err != nil {
			zap.L().Warn("source failed",
				zap.String("source", client.Name()),
				zap.Error(r.err))
			out.Failed[client.Name()] = r.err.Error()
			continue
		}
		out.Succeeded = append(out.Succeeded, client.Name())
		for _, item := range r.items {
			// Sources that migrated to PNCP republish under the same
			// control number, so the native id alone is the
			// cross-source identity; keying by (source, native id)
			// would keep those duplicates. First source in
			// registration order wins. See DESIGN.md, "Decisions on
			// open questions".
			key := item.NativeID
			if key == "" {
				key = item.Key()
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.Items = append(out.Items, item)
		}
	}

	if len(out.Succeeded) == 0 {
		return nil, eris.Wrapf(ErrAllSourcesFailed, "source: %d sources, all failed", len(c.clients))
	}

	zap.L().Info("sources consolidated",
		zap.Int("items", len(out.Items)),
		zap.Strings("succeeded", out.Succeeded),
		zap.Int("failed", len(out.Failed)))
	return out, nil
}
