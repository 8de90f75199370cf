package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/pkg/anthropic"
)

const summarySystemPrompt = `Você é um analista de licitações públicas brasileiras.
Escreva um resumo executivo em português, com no máximo três parágrafos,
das oportunidades de licitação encontradas. Destaque os maiores valores,
as regiões mais ativas e prazos de abertura próximos. Não invente dados
que não estejam na lista.`

// Maximum items fed to the model; beyond this the list is truncated
// and the count is stated in the prompt.
const summaryMaxItems = 40

// Summarizer produces the executive summary persisted on the session.
type Summarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

func NewSummarizer(client anthropic.Client, modelName string, maxTokens int64, timeout time.Duration) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Summarizer{client: client, model: modelName, maxTokens: maxTokens, timeout: timeout}
}

// Summarize writes the executive summary for a result set. An empty
// result set is summarized without an API call.
func (s *Summarizer) Summarize(ctx context.Context, params model.SearchParams, result model.SearchResult) (string, error) {
	if len(result.Items) == 0 {
		return "Nenhuma oportunidade relevante encontrada para o período e regiões pesquisados.", nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(summarySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildSummaryPrompt(params, result)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "report: summary request")
	}
	resp.Usage.LogCost(s.model, "summary")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("report: empty summary response")
	}
	return text, nil
}

func buildSummaryPrompt(params model.SearchParams, result model.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Setor: %s\n", params.Sector)
	fmt.Fprintf(&b, "Período: %s a %s\n", params.DateFrom, params.DateTo)
	if len(params.Regions) > 0 {
		fmt.Fprintf(&b, "Regiões: %s\n", strings.Join(params.Regions, ", "))
	}
	if result.Stats != nil {
		fmt.Fprintf(&b, "Valor total estimado: R$ %.2f\n", result.Stats.TotalValueBRL)
	}
	fmt.Fprintf(&b, "Total de oportunidades: %d\n\n", len(result.Items))

	items := result.Items
	if len(items) > summaryMaxItems {
		fmt.Fprintf(&b, "Listando as %d primeiras:\n", summaryMaxItems)
		items = items[:summaryMaxItems]
	}
	for _, it := range items {
		fmt.Fprintf(&b, "- [%s/%s] %s", it.Source, it.Region, it.Object)
		if it.ValueBRL > 0 {
			fmt.Fprintf(&b, " (R$ %.2f)", it.ValueBRL)
		}
		if it.OpensAt != nil {
			fmt.Fprintf(&b, " abertura %s", it.OpensAt.Format("02/01/2006"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
