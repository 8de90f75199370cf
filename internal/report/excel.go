// Package report renders search results as user-facing artifacts: an
// Excel workbook, an LLM-written summary, and a plain-text report for
// the CLI.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/licitaradar/radar/internal/model"
)

const dateLayout = "02/01/2006"

// ExcelWriter persists search results as a two-sheet workbook under
// the artifact directory.
type ExcelWriter struct {
	dir string
}

func NewExcelWriter(dir string) *ExcelWriter {
	return &ExcelWriter{dir: dir}
}

// Write renders the workbook and returns the file path.
func (w *ExcelWriter) Write(session model.SearchSession, result model.SearchResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "report: create artifact dir")
	}

	f := xlsx.NewFile()
	if err := w.addSummarySheet(f, session, result); err != nil {
		return "", err
	}
	if err := w.addItemsSheet(f, result.Items); err != nil {
		return "", err
	}

	path := filepath.Join(w.dir, fmt.Sprintf("licitacoes-%s.xlsx", session.ID))
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "report: save workbook")
	}
	return path, nil
}

func (w *ExcelWriter) addSummarySheet(f *xlsx.File, session model.SearchSession, result model.SearchResult) error {
	sheet, err := f.AddSheet("Resumo")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addPair := func(label, value string) {
		row := sheet.AddRow()
		row.AddCell().Value = label
		row.AddCell().Value = value
	}

	addPair("Setor", session.Params.Sector)
	addPair("Regiões", joinOrDash(session.Params.Regions))
	addPair("Período", session.Params.DateFrom+" a "+session.Params.DateTo)
	addPair("Gerado em", time.Now().Format("02/01/2006 15:04"))
	addPair("Fontes consultadas", joinOrDash(result.Sources))
	addPair("Oportunidades relevantes", fmt.Sprintf("%d", len(result.Items)))

	if result.Stats != nil {
		addPair("Valor total estimado", fmt.Sprintf("R$ %.2f", result.Stats.TotalValueBRL))
		for _, region := range sortedKeys(result.Stats.ByRegion) {
			addPair("Por região: "+region, fmt.Sprintf("%d", result.Stats.ByRegion[region]))
		}
		for _, modality := range sortedKeys(result.Stats.ByModality) {
			addPair("Por modalidade: "+modality, fmt.Sprintf("%d", result.Stats.ByModality[modality]))
		}
	}

	if session.Summary != "" {
		sheet.AddRow()
		row := sheet.AddRow()
		row.AddCell().Value = "Resumo executivo"
		row.AddCell().Value = session.Summary
	}
	return nil
}

func (w *ExcelWriter) addItemsSheet(f *xlsx.File, items []model.ProcurementItem) error {
	sheet, err := f.AddSheet("Licitações")
	if err != nil {
		return eris.Wrap(err, "report: add items sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Fonte", "Identificador", "Objeto", "UF", "Modalidade",
		"Valor estimado (R$)", "Publicação", "Abertura", "Confiança", "Link",
	} {
		header.AddCell().Value = h
	}

	for _, it := range items {
		row := sheet.AddRow()
		row.AddCell().Value = it.Source
		row.AddCell().Value = it.NativeID
		row.AddCell().Value = it.Object
		row.AddCell().Value = it.Region
		row.AddCell().Value = it.Modality
		if it.ValueBRL > 0 {
			row.AddCell().SetFloatWithFormat(it.ValueBRL, "#,##0.00")
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().Value = it.PublishedAt.Format(dateLayout)
		if it.OpensAt != nil {
			row.AddCell().Value = it.OpensAt.Format(dateLayout)
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().Value = string(it.Confidence)
		row.AddCell().Value = it.URL
	}
	return nil
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
