// Package tabular fetches reference rows from the dispatch sheet the field
// teams maintain. Rows are column-name → cell-value maps; mapping them onto
// audit records lives in the model package.
package tabular

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obralink/vale-audit/internal/model"
)

// Row is one sheet row keyed by column header.
type Row map[string]string

// Filter optionally restricts Fetch to rows where Column equals Value.
// The zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

func (f Filter) matches(row Row) bool {
	if f.Column == "" {
		return true
	}
	return row[f.Column] == f.Value
}

// Source fetches filtered rows from a named table.
type Source interface {
	Fetch(ctx context.Context, table string, filter Filter) ([]Row, error)
}

// FetchRecords pulls the records for one date-partition: rows whose fecha
// column matches the partition's day, mapped onto Records. Rows that cannot
// be mapped are logged and skipped rather than failing the batch.
func FetchRecords(ctx context.Context, src Source, table string, d model.DatePartition) ([]model.Record, error) {
	day, err := time.Parse("2006/01/02", d.String())
	if err != nil {
		return nil, err
	}

	rows, err := src.Fetch(ctx, table, Filter{
		Column: model.FieldFecha,
		Value:  day.Format("02/01/2006"),
	})
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(rows))
	for i, row := range rows {
		rec, mapErr := model.RecordFromRow(row)
		if mapErr != nil {
			zap.L().Warn("tabular: skipping unmappable row",
				zap.Int("row", i),
				zap.Error(mapErr),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
