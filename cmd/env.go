package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obralink/vale-audit/internal/auditor"
	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/config"
	"github.com/obralink/vale-audit/internal/ledger"
	"github.com/obralink/vale-audit/internal/model"
	"github.com/obralink/vale-audit/internal/oracle"
	"github.com/obralink/vale-audit/internal/report"
	"github.com/obralink/vale-audit/internal/tabular"
	"github.com/obralink/vale-audit/internal/validator"
	"github.com/obralink/vale-audit/pkg/anthropic"
)

// env bundles the wired components a command needs.
type env struct {
	store   blob.Store
	auditor *auditor.Auditor
	ledger  *ledger.Ledger
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("closing blob store", zap.Error(err))
	}
}

// initStore builds the configured blob store backend.
func initStore(c config.BlobConfig) (blob.Store, error) {
	switch c.Driver {
	case "", "fs":
		return blob.NewFS(c.Root)
	case "sqlite":
		return blob.NewSQLite(c.DSN)
	case "ftp":
		return blob.NewFTP(blob.FTPOptions{
			Host:     c.FTPHost,
			User:     c.FTPUser,
			Password: c.FTPPassword,
			Root:     c.Root,
		}), nil
	default:
		return nil, eris.Errorf("unknown blob driver %q", c.Driver)
	}
}

// initEnv wires the full audit pipeline from config.
func initEnv() (*env, error) {
	store, err := initStore(cfg.Blob)
	if err != nil {
		return nil, eris.Wrap(err, "init blob store")
	}

	if cfg.Anthropic.Key == "" {
		store.Close()
		return nil, eris.New("anthropic.key is required (VALEAUDIT_ANTHROPIC_KEY)")
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	orc := oracle.NewAnthropic(client, oracle.Config{
		Model:          cfg.Anthropic.Model,
		MaxTokens:      cfg.Anthropic.MaxTokens,
		PromptCacheTTL: cfg.Anthropic.PromptCacheTTL,
	})

	val := validator.New(validator.Config{
		ConfidenceThreshold: cfg.Audit.ConfidenceThreshold,
		DateToleranceDays:   cfg.Audit.DateToleranceDays,
		QuantityEpsilon:     cfg.Audit.QuantityEpsilon,
	})

	caller := auditor.NewCaller(store, orc, val, auditor.CallerConfig{
		MaxRetries:     cfg.Audit.MaxRetries,
		InitialBackoff: time.Duration(cfg.Audit.InitialBackoffMs) * time.Millisecond,
		QualityGate:    cfg.Audit.QualityGate,
		TempDir:        cfg.Audit.TempDir,
	})

	source := tabular.NewHTTP(tabular.HTTPOptions{
		ExportURL:  cfg.Sheet.ExportURL,
		Timeout:    time.Duration(cfg.Sheet.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Sheet.MaxRetries,
		RatePerSec: cfg.Sheet.RatePerSec,
	})

	led := ledger.New(store)
	return &env{
		store:   store,
		ledger:  led,
		auditor: auditor.New(store, led, source, caller, cfg.Sheet.SheetName),
	}, nil
}

// initReporter wires the report generator; email is enabled only when an
// SMTP host is configured.
func initReporter(store blob.Store) *report.Reporter {
	var mailer report.Mailer
	if cfg.SMTP.Host != "" {
		mailer = report.NewSMTPMailer(report.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	return report.New(store, mailer, cfg.Recipients)
}

// parseDateFlag resolves the --date flag, defaulting to today.
func parseDateFlag(s string) (model.DatePartition, error) {
	if s == "" {
		return model.PartitionFor(time.Now()), nil
	}
	return model.ParsePartition(s)
}
