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

// PNCPClient queries the PNCP public consultation API, the federal
// aggregator for procurement notices.
type PNCPClient struct {
	api      *apiClient
	baseURL  string
	pageSize int
	maxPages int
}

func NewPNCPClient(baseURL string, pageSize, maxPages int, opts Options) *PNCPClient {
	if pageSize <= 0 {
		pageSize = 50
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	return &PNCPClient{
		api:      newAPIClient("pncp", opts),
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		maxPages: maxPages,
	}
}

func (c *PNCPClient) Name() string { return "pncp" }

// pncpPage mirrors the subset of the consultation response we read.
type pncpPage struct {
	Data []struct {
		NumeroControle   string  `json:"numeroControlePNCP"`
		Objeto           string  `json:"objetoCompra"`
		ValorEstimado    float64 `json:"valorTotalEstimado"`
		ModalidadeNome   string  `json:"modalidadeNome"`
		DataPublicacao   string  `json:"dataPublicacaoPncp"`
		DataAbertura     string  `json:"dataAberturaProposta"`
		LinkSistemOrigem string  `json:"linkSistemaOrigem"`
		UnidadeOrgao     struct {
			UFSigla string `json:"ufSigla"`
		} `json:"unidadeOrgao"`
	} `json:"data"`
	TotalPaginas int  `json:"totalPaginas"`
	Empty        bool `json:"empty"`
}

func (c *PNCPClient) Fetch(ctx context.Context, params model.SearchParams) ([]model.ProcurementItem, error) {
	return resilience.CallVal(ctx, c.api.breaker, func(ctx context.Context) ([]model.ProcurementItem, error) {
		regions := params.Regions
		if len(regions) == 0 {
			regions = []string{""}
		}
		var items []model.ProcurementItem
		for _, region := range regions {
			got, err := c.fetchRegion(ctx, params, region)
			if err != nil {
				return nil, err
			}
			items = append(items, got...)
		}
		zap.L().Debug("pncp fetch complete", zap.Int("items", len(items)))
		return items, nil
	})
}

func (c *PNCPClient) fetchRegion(ctx context.Context, params model.SearchParams, region string) ([]model.ProcurementItem, error) {
	var items []model.ProcurementItem
	for page := 1; page <= c.maxPages; page++ {
		q := url.Values{}
		q.Set("dataInicial", compactDate(params.DateFrom))
		q.Set("dataFinal", compactDate(params.DateTo))
		q.Set("pagina", fmt.Sprint(page))
		q.Set("tamanhoPagina", fmt.Sprint(c.pageSize))
		if region != "" {
			q.Set("uf", strings.ToUpper(region))
		}

		var resp pncpPage
		if err := c.api.getJSON(ctx, c.baseURL+"/contratacoes/publicacao?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		if resp.Empty || len(resp.Data) == 0 {
			break
		}

		for _, d := range resp.Data {
			item := model.ProcurementItem{
				Source:      "pncp",
				NativeID:    d.NumeroControle,
				Object:      d.Objeto,
				ValueBRL:    d.ValorEstimado,
				Region:      d.UnidadeOrgao.UFSigla,
				Modality:    d.ModalidadeNome,
				PublishedAt: parseDate(d.DataPublicacao),
				URL:         d.LinkSistemOrigem,
			}
			if opens := parseDate(d.DataAbertura); !opens.IsZero() {
				item.OpensAt = &opens
			}
			items = append(items, item)
		}

		if page >= resp.TotalPaginas {
			break
		}
	}
	return items, nil
}

// compactDate turns 2006-01-02 into the 20060102 form PNCP expects.
func compactDate(s string) string {
	return strings.ReplaceAll(s, "-", "")
}
