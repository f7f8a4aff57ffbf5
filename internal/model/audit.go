package model

import (
	"time"
)

// AuditStatus represents the final classification of one audited record.
type AuditStatus string

const (
	StatusApproved     AuditStatus = "approved"
	StatusInconsistent AuditStatus = "inconsistent"
	StatusManualReview AuditStatus = "needs_manual_review"
	StatusError        AuditStatus = "error"
)

// FieldExtraction is the oracle's reading of a single field: the value it saw
// and how confident it is. An illegible or missing field comes back as
// {Valor: "", Confianza: 0}.
type FieldExtraction struct {
	Valor     string  `json:"valor"`
	Confianza float64 `json:"confianza"`
}

// Empty reports whether the oracle could not read the field.
func (f FieldExtraction) Empty() bool {
	return f.Valor == ""
}

// Extraction holds the oracle's reading of all four audited fields.
type Extraction struct {
	NumeroVale FieldExtraction `json:"numero_vale"`
	Placa      FieldExtraction `json:"placa"`
	M3         FieldExtraction `json:"m3"`
	Fecha      FieldExtraction `json:"fecha"`
}

// Field returns the extraction for an audited field key.
func (e Extraction) Field(name string) FieldExtraction {
	switch name {
	case FieldNumeroVale:
		return e.NumeroVale
	case FieldPlaca:
		return e.Placa
	case FieldM3:
		return e.M3
	case FieldFecha:
		return e.Fecha
	}
	return FieldExtraction{}
}

// QualityCheck is the oracle's legibility rating for a vale image.
type QualityCheck struct {
	Score    float64 `json:"quality_score"` // 0-10
	Readable bool    `json:"is_readable"`
	Reason   string  `json:"reason,omitempty"`
}

// Comparison is the validator's verdict for one field.
type Comparison struct {
	Matches    bool    `json:"matches"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note,omitempty"`
}

// Discrepancy records one field that failed to match, with both sides.
type Discrepancy struct {
	Field     string `json:"field"`
	Extracted string `json:"extracted"`
	Expected  string `json:"expected"`
	Reason    string `json:"reason"`
}

// AuditResult is the durable unit of work product, one per record per run.
// Written once to the status-specific blob path and never updated in place.
type AuditResult struct {
	RecordID      string                `json:"record_id"`
	Timestamp     time.Time             `json:"timestamp"`
	Approved      bool                  `json:"approved"`
	Obra          string                `json:"obra"`
	ImagePath     string                `json:"image_path"`
	Status        AuditStatus           `json:"status"`
	Comparisons   map[string]Comparison `json:"comparisons,omitempty"`
	Discrepancies []Discrepancy         `json:"discrepancies,omitempty"`
	ReviewReason  string                `json:"review_reason,omitempty"`
	QualityScore  *float64              `json:"quality_score,omitempty"`
	ErrorMessage  string                `json:"error_message,omitempty"`
}

// ExtractionCache is the per-date snapshot of reference rows and the valid
// plate list, persisted before any oracle call so re-runs survive upstream
// outages.
type ExtractionCache struct {
	Date        string    `json:"date"`
	Records     []Record  `json:"records"`
	ValidPlates []string  `json:"valid_plates"`
	CachedAt    time.Time `json:"cached_at"`
}

// RecordFailure is one failed record in a FailureSummary.
type RecordFailure struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

// FailureSummary is persisted whenever at least one record in a batch ends in
// error status. Failed records are retried on the next scheduled run.
type FailureSummary struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	GeneratedAt time.Time       `json:"generated_at"`
	FailedCount int             `json:"failed_count"`
	Failures    []RecordFailure `json:"failures"`
}

// BatchSummary aggregates one ProcessBatch invocation.
type BatchSummary struct {
	Date         string        `json:"date"`
	Total        int           `json:"total"`
	Skipped      int           `json:"skipped"` // already in ledger
	Approved     int           `json:"approved"`
	Inconsistent int           `json:"inconsistent"`
	ManualReview int           `json:"manual_review"`
	Errored      int           `json:"errored"`
	Duration     time.Duration `json:"duration"`
}

// Count returns the tally for a status.
func (s BatchSummary) Count(status AuditStatus) int {
	switch status {
	case StatusApproved:
		return s.Approved
	case StatusInconsistent:
		return s.Inconsistent
	case StatusManualReview:
		return s.ManualReview
	case StatusError:
		return s.Errored
	}
	return 0
}
