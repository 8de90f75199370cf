package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/resilience"
)

const comprasnetPageSize = 100

// ComprasNetClient queries the compras.dados.gov.br open-data API,
// which still carries notices from agencies not yet migrated to PNCP.
type ComprasNetClient struct {
	api     *apiClient
	baseURL string
}

func NewComprasNetClient(baseURL string, opts Options) *ComprasNetClient {
	return &ComprasNetClient{
		api:     newAPIClient("comprasnet", opts),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *ComprasNetClient) Name() string { return "comprasnet" }

type comprasnetPage struct {
	Embedded struct {
		Licitacoes []struct {
			Identificador  string  `json:"identificador"`
			Objeto         string  `json:"objeto"`
			ValorEstimado  float64 `json:"valor_estimado"`
			UF             string  `json:"uf"`
			Modalidade     string  `json:"modalidade_descricao"`
			DataPublicacao string  `json:"data_publicacao"`
			DataAbertura   string  `json:"data_abertura_proposta"`
		} `json:"licitacoes"`
	} `json:"_embedded"`
	Count int `json:"count"`
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

func (c *ComprasNetClient) Fetch(ctx context.Context, params model.SearchParams) ([]model.ProcurementItem, error) {
	return resilience.CallVal(ctx, c.api.breaker, func(ctx context.Context) ([]model.ProcurementItem, error) {
		var items []model.ProcurementItem
		offset := 0
		for {
			q := url.Values{}
			q.Set("data_publicacao_min", params.DateFrom)
			q.Set("data_publicacao_max", params.DateTo)
			q.Set("offset", fmt.Sprint(offset))
			if len(params.Regions) == 1 {
				q.Set("uf", strings.ToUpper(params.Regions[0]))
			}

			var resp comprasnetPage
			if err := c.api.getJSON(ctx, c.baseURL+"/licitacoes.json?"+q.Encode(), &resp); err != nil {
				return nil, err
			}
			if len(resp.Embedded.Licitacoes) == 0 {
				break
			}

			for _, l := range resp.Embedded.Licitacoes {
				if !regionWanted(l.UF, params.Regions) {
					continue
				}
				item := model.ProcurementItem{
					Source:      "comprasnet",
					NativeID:    l.Identificador,
					Object:      l.Objeto,
					ValueBRL:    l.ValorEstimado,
					Region:      l.UF,
					Modality:    l.Modalidade,
					PublishedAt: parseDate(l.DataPublicacao),
					URL:         c.baseURL + "/licitacoes/id/" + l.Identificador,
				}
				if opens := parseDate(l.DataAbertura); !opens.IsZero() {
					item.OpensAt = &opens
				}
				items = append(items, item)
			}

			offset += comprasnetPageSize
			if resp.Links.Next.Href == "" || offset >= resp.Count {
				break
			}
		}
		zap.L().Debug("comprasnet fetch complete", zap.Int("items", len(items)))
		return items, nil
	})
}

// regionWanted filters rows the upstream API could not filter for us.
// The API takes a single uf parameter, so multi-region searches fetch
// everything and narrow here.
func regionWanted(uf string, regions []string) bool {
	if len(regions) == 0 {
		return true
	}
	for _, r := range regions {
		if strings.EqualFold(uf, r) {
			return true
		}
	}
	return false
}
