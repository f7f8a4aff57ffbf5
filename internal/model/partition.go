package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DatePartition is the YYYY/MM/DD key prefix scoping all blob data for one
// audit run.
type DatePartition string

// PartitionFor returns the partition for a calendar day.
func PartitionFor(t time.Time) DatePartition {
	return DatePartition(t.Format("2006/01/02"))
}

// ParsePartition accepts YYYY-MM-DD or YYYY/MM/DD and returns the canonical
// partition key.
func ParsePartition(s string) (DatePartition, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "-", "/"))
	t, err := time.Parse("2006/01/02", s)
	if err != nil {
		return "", eris.Wrapf(err, "invalid date %q, want YYYY-MM-DD", s)
	}
	return PartitionFor(t), nil
}

// String returns the partition key.
func (d DatePartition) String() string { return string(d) }

// Blob layout for one partition. All audit artifacts for a date live under
// these paths; the ledger invariant ties index.json to the processed/ and
// manual_review/ prefixes only.
func (d DatePartition) ExtractionDataPath() string { return "extractions/" + string(d) + "/data.json" }
func (d DatePartition) IndexPath() string          { return "audits/" + string(d) + "/index.json" }
func (d DatePartition) ProcessedPrefix() string    { return "audits/" + string(d) + "/processed/" }
func (d DatePartition) ManualReviewPrefix() string { return "audits/" + string(d) + "/manual_review/" }
func (d DatePartition) FailedPrefix() string       { return "audits/" + string(d) + "/failed/" }

func (d DatePartition) FailureSummaryPath() string {
	return "audits/" + string(d) + "/failure_summary.json"
}

// ResultPath returns the blob path an AuditResult with the given status is
// written to. Approved and inconsistent results are both durably processed;
// only errors go to failed/ (and stay out of the ledger so they are retried).
func (d DatePartition) ResultPath(status AuditStatus, recordID string) string {
	switch status {
	case StatusManualReview:
		return d.ManualReviewPrefix() + recordID + ".json"
	case StatusError:
		return d.FailedPrefix() + recordID + ".json"
	default:
		return d.ProcessedPrefix() + recordID + ".json"
	}
}
