package source

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/resilience"
)

// GazetteClient pulls daily bulk dumps of municipal gazette notices
// from an FTP drop. Each day is one JSON file named
// licitacoes-YYYY-MM-DD.json under the configured directory.
type GazetteClient struct {
	addr     string
	user     string
	password string
	dir      string
	timeout  time.Duration
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
}

func NewGazetteClient(addr, user, password, dir string, opts Options) *GazetteClient {
	opts = opts.withDefaults()
	if user == "" {
		user = "anonymous"
		password = "anonymous@"
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("gazette", "fetch")
	return &GazetteClient{
		addr:     withDefaultPort(addr),
		user:     user,
		password: password,
		dir:      dir,
		timeout:  opts.RequestTimeout,
		breaker:  resilience.NewSourceBreaker("gazette", opts.BreakerThreshold, opts.BreakerCooldown),
		retry:    retry,
	}
}

func (c *GazetteClient) Name() string { return "gazette" }

// gazetteNotice is one row of the daily dump.
type gazetteNotice struct {
	ID          string  `json:"id"`
	Objeto      string  `json:"objeto"`
	Valor       float64 `json:"valor"`
	UF          string  `json:"uf"`
	Modalidade  string  `json:"modalidade"`
	PublicadoEm string  `json:"publicado_em"`
	URL         string  `json:"url"`
}

func (c *GazetteClient) Fetch(ctx context.Context, params model.SearchParams) ([]model.ProcurementItem, error) {
	return resilience.CallVal(ctx, c.breaker, func(ctx context.Context) ([]model.ProcurementItem, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]model.ProcurementItem, error) {
			return c.fetchOnce(ctx, params)
		})
	})
}

func (c *GazetteClient) fetchOnce(ctx context.Context, params model.SearchParams) ([]model.ProcurementItem, error) {
	conn, err := ftp.Dial(c.addr, ftp.DialWithTimeout(c.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "gazette: dial"), 0)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(c.user, c.password); err != nil {
		return nil, eris.Wrap(err, "gazette: login")
	}

	var items []model.ProcurementItem
	for _, day := range daysBetween(params.DateFrom, params.DateTo) {
		name := path.Join(c.dir, "licitacoes-"+day+".json")
		dayItems, err := c.readDump(conn, name, params.Regions)
		if err != nil {
			// A missing day file is normal; weekends publish nothing.
			zap.L().Debug("gazette day skipped", zap.String("file", name), zap.Error(err))
			continue
		}
		items = append(items, dayItems...)
	}
	zap.L().Debug("gazette fetch complete", zap.Int("items", len(items)))
	return items, nil
}

func (c *GazetteClient) readDump(conn *ftp.ServerConn, name string, regions []string) ([]model.ProcurementItem, error) {
	resp, err := conn.Retr(name)
	if err != nil {
		return nil, eris.Wrapf(err, "gazette: retrieve %s", name)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrapf(err, "gazette: read %s", name)
	}

	var notices []gazetteNotice
	if err := json.Unmarshal(data, &notices); err != nil {
		return nil, eris.Wrapf(err, "gazette: parse %s", name)
	}

	var items []model.ProcurementItem
	for _, n := range notices {
		if !regionWanted(n.UF, regions) {
			continue
		}
		items = append(items, model.ProcurementItem{
			Source:      "gazette",
			NativeID:    n.ID,
			Object:      n.Objeto,
			ValueBRL:    n.Valor,
			Region:      n.UF,
			Modality:    n.Modalidade,
			PublishedAt: parseDate(n.PublicadoEm),
			URL:         n.URL,
		})
	}
	return items, nil
}

// daysBetween expands an inclusive YYYY-MM-DD range into day strings.
// Malformed bounds yield an empty range rather than an error; the
// Validate stage has already rejected bad dates by the time we run.
func daysBetween(from, to string) []string {
	start, err1 := time.Parse("2006-01-02", from)
	end, err2 := time.Parse("2006-01-02", to)
	if err1 != nil || err2 != nil || end.Before(start) {
		return nil
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(strings.TrimSpace(addr), "21")
	}
	return addr
}
