// Package report turns a day's audit results into per-obra XLSX workbooks,
// stores them alongside the results, and mails them to each obra's
// recipients.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/model"
)

// Summary reports what Generate produced.
type Summary struct {
	Date    string `json:"date"`
	Results int    `json:"results"`
	Obras   int    `json:"obras"`
	Emailed int    `json:"emailed"`
}

// Reporter builds and distributes the daily reports. A nil Mailer disables
// email; workbooks are still uploaded.
type Reporter struct {
	store      blob.Store
	mailer     Mailer
	recipients map[string][]string // obra slug -> addresses
}

func New(store blob.Store, mailer Mailer, recipients map[string][]string) *Reporter {
	return &Reporter{store: store, mailer: mailer, recipients: recipients}
}

// ReportPath is the blob key for one obra's workbook on one date.
func ReportPath(d model.DatePartition, obraSlug string) string {
	return fmt.Sprintf("reports/%s/%s.xlsx", d, obraSlug)
}

// Generate loads every audit result persisted for the date, groups the
// results by obra, and uploads one workbook per obra. Upload and email for
// each obra run concurrently; the first failure aborts the remaining
// obras.
func (r *Reporter) Generate(ctx context.Context, d model.DatePartition) (Summary, error) {
	results, err := r.loadResults(ctx, d)
	if err != nil {
		return Summary{}, err
	}
	if len(results) == 0 {
		zap.L().Info("no audit results for date, skipping report",
			zap.String("date", d.String()))
		return Summary{Date: d.String()}, nil
	}

	byObra := map[string][]model.AuditResult{}
	for _, res := range results {
		obra := res.Obra
		if obra == "" {
			obra = "sin-obra"
		}
		byObra[obra] = append(byObra[obra], res)
	}

	obras := make([]string, 0, len(byObra))
	for obra := range byObra {
		obras = append(obras, obra)
	}
	sort.Strings(obras)

	summary := Summary{Date: d.String(), Results: len(results), Obras: len(obras)}
	var emailed int

	g, gctx := errgroup.WithContext(ctx)
	for _, obra := range obras {
		obraResults := byObra[obra]
		sent, err := r.publishObra(gctx, g, d, obra, obraResults)
		if err != nil {
			return Summary{}, err
		}
		if sent {
			emailed++
		}
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary.Emailed = emailed
	zap.L().Info("reports generated",
		zap.String("date", d.String()),
		zap.Int("obras", summary.Obras),
		zap.Int("results", summary.Results),
		zap.Int("emailed", summary.Emailed))
	return summary, nil
}

// publishObra renders one obra's workbook and schedules its upload and
// email on the group. Returns whether an email will be sent.
func (r *Reporter) publishObra(ctx context.Context, g *errgroup.Group, d model.DatePartition, obra string, results []model.AuditResult) (bool, error) {
	f, err := buildWorkbook(obra, d.String(), results)
	if err != nil {
		return false, eris.Wrapf(err, "report: build workbook for %s", obra)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return false, eris.Wrapf(err, "report: serialize workbook for %s", obra)
	}
	content := buf.Bytes()

	slug := Slug(obra)
	key := ReportPath(d, slug)
	g.Go(func() error {
		tmp, err := os.CreateTemp("", "vale-report-*.xlsx")
		if err != nil {
			return eris.Wrap(err, "report: create temp file")
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(content); err != nil {
			tmp.Close()
			return eris.Wrap(err, "report: write temp file")
		}
		if err := tmp.Close(); err != nil {
			return eris.Wrap(err, "report: close temp file")
		}
		if err := r.store.Upload(ctx, tmp.Name(), key); err != nil {
			return eris.Wrapf(err, "report: upload %s", key)
		}
		return nil
	})

	to := r.recipients[slug]
	if r.mailer == nil || len(to) == 0 {
		if len(to) == 0 {
			zap.L().Warn("no recipients configured for obra",
				zap.String("obra", obra),
				zap.String("slug", slug))
		}
		return false, nil
	}

	subject := fmt.Sprintf("Auditoría de vales %s - %s", obra, d.String())
	body := emailBody(obra, d.String(), results)
	filename := slug + ".xlsx"
	g.Go(func() error {
		if err := r.mailer.Send(ctx, to, subject, body, content, filename); err != nil {
			return eris.Wrapf(err, "report: email %s", obra)
		}
		return nil
	})
	return true, nil
}

// loadResults reads every persisted result for the date, across all three
// outcome folders. Individual unreadable results are logged and skipped.
func (r *Reporter) loadResults(ctx context.Context, d model.DatePartition) ([]model.AuditResult, error) {
	var results []model.AuditResult
	for _, prefix := range []string{d.ProcessedPrefix(), d.ManualReviewPrefix(), d.FailedPrefix()} {
		keys, err := r.store.List(ctx, prefix)
		if err != nil {
			return nil, eris.Wrapf(err, "report: list %s", prefix)
		}
		for _, key := range keys {
			var res model.AuditResult
			if err := r.store.ReadJSON(ctx, key, &res); err != nil {
				zap.L().Warn("skipping unreadable audit result",
					zap.String("key", key),
					zap.Error(err))
				continue
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func emailBody(obra, date string, results []model.AuditResult) string {
	counts := map[model.AuditStatus]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	return fmt.Sprintf(
		"Resultados de la auditoría de vales para %s (%s):\n\n"+
			"  Aprobados: %d\n  Inconsistentes: %d\n  Revisión manual: %d\n  Errores: %d\n\n"+
			"El detalle completo está en el archivo adjunto.\n",
		obra, date,
		counts[model.StatusApproved], counts[model.StatusInconsistent],
		counts[model.StatusManualReview], counts[model.StatusError])
}
