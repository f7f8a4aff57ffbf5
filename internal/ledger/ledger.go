// Package ledger tracks which records have been durably processed for a
// date-partition, so re-runs skip finished work and error'd records are
// picked up again.
package ledger

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/model"
)

// Index is the persisted ledger document at audits/<date>/index.json.
type Index struct {
	ProcessedIDs []string  `json:"processed_ids"`
	Count        int       `json:"count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Ledger reads and appends the per-date processed index. Only results under
// processed/ and manual_review/ ever join the ledger; failed/ stays outside
// so error'd records are retried on the next run.
type Ledger struct {
	store blob.Store
}

// New creates a Ledger over the given blob store.
func New(store blob.Store) *Ledger {
	return &Ledger{store: store}
}

// ListProcessedIDs returns the set of record IDs already processed for the
// partition. Fast path reads the index document; when it is absent the index
// is rebuilt from the result listings and materialized so subsequent calls
// take the fast path.
func (l *Ledger) ListProcessedIDs(ctx context.Context, d model.DatePartition) (map[string]bool, error) {
	var idx Index
	err := l.store.ReadJSON(ctx, d.IndexPath(), &idx)
	if err == nil {
		set := make(map[string]bool, len(idx.ProcessedIDs))
		for _, id := range idx.ProcessedIDs {
			set[id] = true
		}
		return set, nil
	}
	if !blob.IsNotFound(err) {
		return nil, eris.Wrapf(err, "ledger: read index %s", d)
	}
	return l.EnsureIndex(ctx, d)
}

// EnsureIndex rebuilds the index from the processed/ and manual_review/
// listings and writes it back. Idempotent; safe to call at any time. Last
// writer wins against a concurrent append, which is acceptable at per-date
// granularity.
func (l *Ledger) EnsureIndex(ctx context.Context, d model.DatePartition) (map[string]bool, error) {
	set := make(map[string]bool)
	for _, prefix := range []string{d.ProcessedPrefix(), d.ManualReviewPrefix()} {
		keys, err := l.store.List(ctx, prefix)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: list %s", prefix)
		}
		for _, key := range keys {
			if id := recordIDFromKey(key); id != "" {
				set[id] = true
			}
		}
	}

	if err := l.writeIndex(ctx, d, set); err != nil {
		// The rebuilt set is still good; materialization is an optimization.
		zap.L().Warn("ledger: index materialization failed",
			zap.String("date", d.String()),
			zap.Error(err),
		)
	}
	return set, nil
}

// MarkProcessed appends id to the partition's index with set semantics.
// Read-modify-write without locking: the pipeline processes records
// sequentially and at most one run per partition is assumed.
func (l *Ledger) MarkProcessed(ctx context.Context, d model.DatePartition, id string) error {
	var idx Index
	err := l.store.ReadJSON(ctx, d.IndexPath(), &idx)
	if err != nil && !blob.IsNotFound(err) {
		return eris.Wrapf(err, "ledger: read index %s", d)
	}

	set := make(map[string]bool, len(idx.ProcessedIDs)+1)
	for _, existing := range idx.ProcessedIDs {
		set[existing] = true
	}
	if set[id] {
		return nil
	}
	set[id] = true

	if err := l.writeIndex(ctx, d, set); err != nil {
		return eris.Wrapf(err, "ledger: write index %s", d)
	}
	return nil
}

// Unprocessed returns the records whose IDs are not in the partition's
// ledger. A ledger read failure degrades to treating every record as
// unprocessed; a transient storage hiccup must not stop auditing.
func (l *Ledger) Unprocessed(ctx context.Context, records []model.Record, d model.DatePartition) []model.Record {
	done, err := l.ListProcessedIDs(ctx, d)
	if err != nil {
		zap.L().Warn("ledger: read failed, treating all records as unprocessed",
			zap.String("date", d.String()),
			zap.Error(err),
		)
		done = nil
	}

	var out []model.Record
	for _, r := range records {
		if !done[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (l *Ledger) writeIndex(ctx context.Context, d model.DatePartition, set map[string]bool) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return l.store.WriteJSON(ctx, d.IndexPath(), Index{
		ProcessedIDs: ids,
		Count:        len(ids),
		LastUpdated:  time.Now().UTC(),
	})
}

// recordIDFromKey extracts the record ID from a result key like
// "audits/2025/12/10/processed/v-17.json".
func recordIDFromKey(key string) string {
	return strings.TrimSuffix(path.Base(key), ".json")
}
