// Package source implements the upstream procurement-data clients and
// the consolidator that fans out across them.
package source

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/resilience"
)

// Client is one upstream procurement source. Fetch returns every item
// the source has for the given parameters; retry, rate limiting and
// the circuit breaker live inside the client.
type Client interface {
	Name() string
	Fetch(ctx context.Context, params model.SearchParams) ([]model.ProcurementItem, error)
}

// Options carries the resilience settings shared by all sources.
type Options struct {
	RequestTimeout   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	RatePerSecond    float64
	UserAgent        string
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.BreakerThreshold <= 0 {
		o.BreakerThreshold = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 5
	}
	if o.UserAgent == "" {
		o.UserAgent = "licitaradar/1.0"
	}
	return o
}

// apiClient is the shared HTTP plumbing for the REST sources.
type apiClient struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig
	userAgent  string
}

func newAPIClient(name string, opts Options) *apiClient {
	opts = opts.withDefaults()
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(name, "fetch")
	return &apiClient{
		name: name,
		httpClient: &http.Client{
			Timeout: opts.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), int(opts.RatePerSecond)+1),
		breaker:   resilience.NewSourceBreaker(name, opts.BreakerThreshold, opts.BreakerCooldown),
		retry:     retry,
		userAgent: opts.UserAgent,
	}
}

// getJSON performs a rate-limited GET with retries and decodes the
// body into out. Transient statuses are retried; anything else fails
// the call outright.
func (c *apiClient) getJSON(ctx context.Context, url string, out any) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "source: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return eris.Wrap(err, "source: create request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(
				eris.Errorf("source: %s returned %d", c.name, resp.StatusCode),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("source: %s returned %d for %s", c.name, resp.StatusCode, url)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return eris.Wrapf(err, "source: decode %s response", c.name)
		}
		return nil
	})
}

// parseDate accepts the formats the government APIs actually emit.
func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
