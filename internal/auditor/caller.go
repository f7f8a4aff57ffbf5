package auditor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/model"
	"github.com/obralink/vale-audit/internal/oracle"
	"github.com/obralink/vale-audit/internal/resilience"
	"github.com/obralink/vale-audit/internal/validator"
)

// CallerConfig tunes the per-record pipeline.
type CallerConfig struct {
	// MaxRetries bounds total extraction attempts, retries included.
	MaxRetries int
	// InitialBackoff is the delay before the first retry; it doubles on
	// each subsequent one.
	InitialBackoff time.Duration
	// QualityGate enables the advisory readability check before extraction.
	QualityGate bool
	// TempDir is where downloaded images land. Empty means os.TempDir.
	TempDir string
}

// Caller walks a single record through the pipeline stages: download the
// image once, optionally gate on readability, extract with retries, then
// validate against the reference row.
type Caller struct {
	store  blob.Store
	oracle oracle.Oracle
	val    *validator.Validator
	cfg    CallerConfig
}

func NewCaller(store blob.Store, o oracle.Oracle, val *validator.Validator, cfg CallerConfig) *Caller {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &Caller{store: store, oracle: o, val: val, cfg: cfg}
}

// Process audits one record and returns its verdict. It does not persist
// anything; the orchestrator owns storage and the ledger. The returned
// error means the record could not be audited at all (download failure or
// extraction retries exhausted) and should be recorded as failed.
func (c *Caller) Process(ctx context.Context, rec model.Record, validPlates []string) (model.AuditResult, error) {
	tmpDir, err := os.MkdirTemp(c.cfg.TempDir, "vale-audit-*")
	if err != nil {
		return model.AuditResult{}, eris.Wrap(err, "auditor: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	img, err := c.fetchImage(ctx, rec, tmpDir)
	if err != nil {
		return model.AuditResult{}, err
	}

	var (
		quality model.QualityCheck
		gateRan bool
		ext     model.Extraction
		result  model.AuditResult
	)
	for stage := afterInit(c.cfg.QualityGate); stage != StageDone; {
		switch stage {
		case StageQualityGate:
			q, gateErr := c.oracle.CheckQuality(ctx, img)
			if gateErr != nil {
				zap.L().Warn("quality gate failed, proceeding to extraction",
					zap.String("record_id", rec.ID),
					zap.Error(gateErr))
			} else {
				quality, gateRan = q, true
			}
			stage = afterQualityGate(q, gateErr)
			if stage == StageDone {
				zap.L().Info("image not readable, routing to manual review",
					zap.String("record_id", rec.ID),
					zap.Float64("quality_score", q.Score))
				return c.val.Illegible(rec, q), nil
			}

		case StageExtract:
			var extErr error
			ext, extErr = c.extract(ctx, img, rec, validPlates)
			stage = afterExtract(extErr)
			if extErr != nil {
				return model.AuditResult{}, eris.Wrapf(extErr, "auditor: extract record %s", rec.ID)
			}

		case StageValidate:
			result = c.val.Validate(rec, ext)
			if gateRan {
				score := quality.Score
				result.QualityScore = &score
			}
			stage = StageDone
		}
	}
	return result, nil
}

// extract calls the oracle with retries. Transient transport errors and
// malformed responses are retried; schema errors and other permanent
// failures surface immediately.
func (c *Caller) extract(ctx context.Context, img oracle.Image, rec model.Record, validPlates []string) (model.Extraction, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    c.cfg.MaxRetries,
		InitialBackoff: c.cfg.InitialBackoff,
		Multiplier:     2.0,
		ShouldRetry: func(err error) bool {
			return resilience.IsTransient(err) || oracle.IsMalformed(err)
		},
		OnRetry: resilience.RetryLogger("oracle", "extract"),
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (model.Extraction, error) {
		return c.oracle.Extract(ctx, img, rec, validPlates)
	})
}

// fetchImage downloads the record's image into the temp dir and loads it
// for the oracle. The download happens exactly once per record; retries of
// the oracle reuse the same local file.
func (c *Caller) fetchImage(ctx context.Context, rec model.Record, tmpDir string) (oracle.Image, error) {
	local := filepath.Join(tmpDir, filepath.Base(rec.ImagePath))
	if err := c.store.Download(ctx, rec.ImagePath, local); err != nil {
		return oracle.Image{}, eris.Wrapf(err, "auditor: download image for record %s", rec.ID)
	}
	img, err := oracle.LoadImage(local)
	if err != nil {
		return oracle.Image{}, eris.Wrapf(err, "auditor: load image for record %s", rec.ID)
	}
	return img, nil
}
