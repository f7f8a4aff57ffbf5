package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/obralink/vale-audit/internal/model"
)

var resultHeader = []string{
	"Vale", "Obra", "Fecha auditada", "Estado",
	"Nº vale", "Placa", "M3", "Fecha",
	"Campos con discrepancia", "Motivo de revisión", "Calidad de imagen", "Error",
}

// statusLabels are the human-facing Spanish labels used in the workbook.
var statusLabels = map[model.AuditStatus]string{
	model.StatusApproved:     "Aprobado",
	model.StatusInconsistent: "Inconsistente",
	model.StatusManualReview: "Revisión manual",
	model.StatusError:        "Error",
}

// buildWorkbook renders one obra's results as a two-sheet workbook: the
// per-vale detail and a status tally.
func buildWorkbook(obra string, date string, results []model.AuditResult) (*xlsx.File, error) {
	f := xlsx.NewFile()

	detail, err := f.AddSheet("Resultados")
	if err != nil {
		return nil, eris.Wrap(err, "report: add results sheet")
	}
	header := detail.AddRow()
	for _, h := range resultHeader {
		header.AddCell().Value = h
	}

	sorted := make([]model.AuditResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RecordID < sorted[j].RecordID })

	counts := map[model.AuditStatus]int{}
	for _, res := range sorted {
		counts[res.Status]++
		row := detail.AddRow()
		row.AddCell().Value = res.RecordID
		row.AddCell().Value = res.Obra
		row.AddCell().Value = res.Timestamp.Format("02/01/2006 15:04")
		row.AddCell().Value = statusLabels[res.Status]
		for _, field := range model.AuditedFields {
			row.AddCell().Value = comparisonLabel(res.Comparisons, field)
		}
		row.AddCell().Value = discrepancySummary(res.Discrepancies)
		row.AddCell().Value = res.ReviewReason
		if res.QualityScore != nil {
			row.AddCell().SetFloatWithFormat(*res.QualityScore, "0.0")
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().Value = res.ErrorMessage
	}

	summary, err := f.AddSheet("Resumen")
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	title := summary.AddRow()
	title.AddCell().Value = "Obra"
	title.AddCell().Value = obra
	dateRow := summary.AddRow()
	dateRow.AddCell().Value = "Fecha"
	dateRow.AddCell().Value = date
	summary.AddRow()
	for _, status := range []model.AuditStatus{
		model.StatusApproved, model.StatusInconsistent, model.StatusManualReview, model.StatusError,
	} {
		row := summary.AddRow()
		row.AddCell().Value = statusLabels[status]
		row.AddCell().SetInt(counts[status])
	}
	total := summary.AddRow()
	total.AddCell().Value = "Total"
	total.AddCell().SetInt(len(sorted))

	return f, nil
}

// comparisonLabel renders one field's verdict as "OK (97%)" or "X (45%)";
// fields with no comparison (errored records) come out empty.
func comparisonLabel(comparisons map[string]model.Comparison, field string) string {
	c, ok := comparisons[field]
	if !ok {
		return ""
	}
	mark := "OK"
	if !c.Matches {
		mark = "X"
	}
	return fmt.Sprintf("%s (%.0f%%)", mark, c.Confidence*100)
}

func discrepancySummary(ds []model.Discrepancy) string {
	if len(ds) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, fmt.Sprintf("%s: %q ≠ %q", d.Field, d.Extracted, d.Expected))
	}
	return strings.Join(parts, "; ")
}
