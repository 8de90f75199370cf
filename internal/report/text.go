package report

import (
	"fmt"
	"strings"

	"github.com/licitaradar/radar/internal/model"
)

// FormatText renders a human-readable search report for the CLI.
func FormatText(session model.SearchSession, result model.SearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Radar de Licitações: %s\n", session.Params.Sector)
	fmt.Fprintf(&b, "Período: %s a %s\n", session.Params.DateFrom, session.Params.DateTo)
	if len(session.Params.Regions) > 0 {
		fmt.Fprintf(&b, "Regiões: %s\n", strings.Join(session.Params.Regions, ", "))
	}
	b.WriteString("\n")

	b.WriteString("## Resumo\n")
	fmt.Fprintf(&b, "- Situação: %s (%s)\n", session.Status, result.ResponseState)
	fmt.Fprintf(&b, "- Itens coletados: %d\n", session.ItemsTotal)
	fmt.Fprintf(&b, "- Itens relevantes: %d\n", len(result.Items))
	if len(result.Sources) > 0 {
		fmt.Fprintf(&b, "- Fontes: %s\n", strings.Join(result.Sources, ", "))
	}
	if result.CacheAgeSeconds > 0 {
		fmt.Fprintf(&b, "- Idade do cache: %ds\n", result.CacheAgeSeconds)
	}
	if result.Stats != nil {
		fmt.Fprintf(&b, "- Valor total estimado: R$ %.2f\n", result.Stats.TotalValueBRL)
	}
	b.WriteString("\n")

	if session.Summary != "" {
		b.WriteString("## Resumo executivo\n")
		b.WriteString(session.Summary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Oportunidades\n")
	if len(result.Items) == 0 {
		b.WriteString("Nenhuma oportunidade relevante encontrada.\n")
		return b.String()
	}
	for _, it := range result.Items {
		fmt.Fprintf(&b, "- **%s** [%s/%s]", it.Object, it.Source, it.Region)
		if it.ValueBRL > 0 {
			fmt.Fprintf(&b, " R$ %.2f", it.ValueBRL)
		}
		fmt.Fprintf(&b, " (%s, %s)\n", it.RelevanceSource, it.Confidence)
		if it.URL != "" {
			fmt.Fprintf(&b, "  %s\n", it.URL)
		}
	}
	return b.String()
}
