// Package auditor orchestrates a daily audit batch: it pulls the reference
// rows for a date, keeps a ledger of already-audited records, and runs each
// pending record through the extraction and validation pipeline.
package auditor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/ledger"
	"github.com/obralink/vale-audit/internal/model"
	"github.com/obralink/vale-audit/internal/tabular"
)

// Auditor runs audit batches. Records are processed sequentially; a failure
// in one record never aborts the rest of the batch.
type Auditor struct {
	store  blob.Store
	ledger *ledger.Ledger
	source tabular.Source
	caller *Caller
	table  string
}

func New(store blob.Store, led *ledger.Ledger, source tabular.Source, caller *Caller, table string) *Auditor {
	return &Auditor{store: store, ledger: led, source: source, caller: caller, table: table}
}

// Run audits all records dated d. It fetches the reference rows, refreshes
// the extraction cache for the date, and processes everything the ledger
// has not seen yet. Failing to list the records is fatal; everything after
// that degrades per record.
func (a *Auditor) Run(ctx context.Context, d model.DatePartition) (model.BatchSummary, error) {
	records, err := tabular.FetchRecords(ctx, a.source, a.table, d)
	if err != nil {
		return model.BatchSummary{}, eris.Wrapf(err, "auditor: fetch records for %s", d)
	}
	a.writeExtractionCache(ctx, d, records)
	return a.ProcessBatch(ctx, records, d)
}

// ProcessBatch audits the given records, skipping the ones the ledger
// already holds, and persists one result file per record. A failure summary
// is written when any record ends in error status.
func (a *Auditor) ProcessBatch(ctx context.Context, records []model.Record, d model.DatePartition) (model.BatchSummary, error) {
	start := time.Now()
	pending := a.ledger.Unprocessed(ctx, records, d)
	validPlates := a.loadValidPlates(ctx, d)

	summary := model.BatchSummary{
		Date:    d.String(),
		Total:   len(records),
		Skipped: len(records) - len(pending),
	}
	zap.L().Info("starting audit batch",
		zap.String("date", d.String()),
		zap.Int("total", summary.Total),
		zap.Int("pending", len(pending)))

	var failures []model.RecordFailure
	for _, rec := range pending {
		res := a.processRecord(ctx, rec, validPlates)

		if err := a.store.WriteJSON(ctx, d.ResultPath(res.Status, rec.ID), res); err != nil {
			zap.L().Error("failed to persist audit result",
				zap.String("record_id", rec.ID),
				zap.Error(err))
			res = errorResult(rec, eris.Wrap(err, "auditor: persist result"))
		} else if res.Status != model.StatusError {
			if err := a.ledger.MarkProcessed(ctx, d, rec.ID); err != nil {
				zap.L().Warn("failed to update processing index",
					zap.String("record_id", rec.ID),
					zap.Error(err))
			}
		}

		switch res.Status {
		case model.StatusApproved:
			summary.Approved++
		case model.StatusInconsistent:
			summary.Inconsistent++
		case model.StatusManualReview:
			summary.ManualReview++
		case model.StatusError:
			summary.Errored++
			failures = append(failures, model.RecordFailure{RecordID: rec.ID, Error: res.ErrorMessage})
		}
	}

	if len(failures) > 0 {
		a.writeFailureSummary(ctx, d, failures)
	}
	summary.Duration = time.Since(start)
	zap.L().Info("audit batch finished",
		zap.String("date", d.String()),
		zap.Int("approved", summary.Approved),
		zap.Int("inconsistent", summary.Inconsistent),
		zap.Int("manual_review", summary.ManualReview),
		zap.Int("errored", summary.Errored),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// processRecord never returns an error: failures of any kind become an
// error-status result so the batch can keep going. Panics from a single
// record are contained the same way.
func (a *Auditor) processRecord(ctx context.Context, rec model.Record, validPlates []string) (res model.AuditResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("panic while auditing record",
				zap.String("record_id", rec.ID),
				zap.Any("panic", r))
			res = errorResult(rec, eris.Errorf("auditor: panic: %v", r))
		}
	}()

	res, err := a.caller.Process(ctx, rec, validPlates)
	if err != nil {
		zap.L().Error("record audit failed",
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return errorResult(rec, err)
	}
	res.Timestamp = time.Now().UTC()
	return res
}

// writeExtractionCache persists the fetched rows and the fleet plate list
// for the date. The cache feeds later runs and the valid-plate hint passed
// to the oracle; failing to write it only costs those hints.
func (a *Auditor) writeExtractionCache(ctx context.Context, d model.DatePartition, records []model.Record) {
	cache := model.ExtractionCache{
		Date:        d.String(),
		Records:     records,
		ValidPlates: model.ValidPlates(records),
		CachedAt:    time.Now().UTC(),
	}
	if err := a.store.WriteJSON(ctx, d.ExtractionDataPath(), cache); err != nil {
		zap.L().Warn("failed to write extraction cache",
			zap.String("date", d.String()),
			zap.Error(err))
	}
}

// loadValidPlates reads the fleet plate list from the extraction cache.
// A missing or unreadable cache degrades to no plate hints.
func (a *Auditor) loadValidPlates(ctx context.Context, d model.DatePartition) []string {
	var cache model.ExtractionCache
	if err := a.store.ReadJSON(ctx, d.ExtractionDataPath(), &cache); err != nil {
		if !blob.IsNotFound(err) {
			zap.L().Warn("failed to read extraction cache",
				zap.String("date", d.String()),
				zap.Error(err))
		}
		return nil
	}
	return cache.ValidPlates
}

func (a *Auditor) writeFailureSummary(ctx context.Context, d model.DatePartition, failures []model.RecordFailure) {
	summary := model.FailureSummary{
		ID:          uuid.New().String(),
		Date:        d.String(),
		GeneratedAt: time.Now().UTC(),
		FailedCount: len(failures),
		Failures:    failures,
	}
	if err := a.store.WriteJSON(ctx, d.FailureSummaryPath(), summary); err != nil {
		zap.L().Error("failed to write failure summary",
			zap.String("date", d.String()),
			zap.Error(err))
	}
}

func errorResult(rec model.Record, err error) model.AuditResult {
	return model.AuditResult{
		RecordID:     rec.ID,
		Timestamp:    time.Now().UTC(),
		Obra:         rec.Obra,
		ImagePath:    rec.ImagePath,
		Status:       model.StatusError,
		ErrorMessage: fmt.Sprintf("%v", err),
	}
}
