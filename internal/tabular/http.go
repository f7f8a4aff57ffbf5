package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/obralink/vale-audit/internal/resilience"
)

// HTTPOptions configures the HTTP sheet source.
type HTTPOptions struct {
	// ExportURL is the spreadsheet export endpoint (xlsx or csv).
	ExportURL      string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	RatePerSec     float64
	UserAgent      string
}

// HTTPSource fetches a published spreadsheet export over HTTP and parses it
// into rows. The sheet service rate-limits aggressively, so requests go
// through a limiter and transient failures are retried with backoff.
type HTTPSource struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTP creates an HTTPSource.
func NewHTTP(opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "vale-audit/1.0"
	}
	return &HTTPSource{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// Fetch downloads the export and returns the rows of the named sheet that
// pass the filter. For CSV exports the table name is ignored (a CSV export
// is a single sheet).
func (s *HTTPSource) Fetch(ctx context.Context, table string, filter Filter) ([]Row, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    s.opts.MaxRetries + 1,
		InitialBackoff: s.opts.InitialBackoff,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		OnRetry:        resilience.RetryLogger("sheet", "fetch"),
	}

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (fetchResult, error) {
		return s.download(ctx)
	})
	if err != nil {
		return nil, err
	}

	rows, err := parseExport(res.body, res.contentType, s.opts.ExportURL, table)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, row := range rows {
		if filter.matches(row) {
			out = append(out, row)
		}
	}
	zap.L().Info("sheet fetched",
		zap.String("table", table),
		zap.Int("rows", len(rows)),
		zap.Int("matched", len(out)),
	)
	return out, nil
}

type fetchResult struct {
	body        []byte
	contentType string
}

func (s *HTTPSource) download(ctx context.Context) (fetchResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return fetchResult{}, eris.Wrap(err, "sheet: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.ExportURL, nil)
	if err != nil {
		return fetchResult{}, eris.Wrap(err, "sheet: build request")
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fetchResult{}, eris.Wrap(err, "sheet: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("sheet: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return fetchResult{}, resilience.NewTransientError(err, resp.StatusCode)
		}
		return fetchResult{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetchResult{}, eris.Wrap(err, "sheet: read body")
	}
	return fetchResult{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// parseExport picks the parser from the content type, falling back to the
// URL extension. Sheets services are sloppy about content types.
func parseExport(body []byte, contentType, url, table string) ([]Row, error) {
	switch {
	case strings.Contains(contentType, "spreadsheetml"),
		strings.Contains(contentType, "ms-excel"),
		strings.HasSuffix(strings.ToLower(strings.SplitN(url, "?", 2)[0]), ".xlsx"):
		return parseXLSX(body, table)
	default:
		return parseCSV(body)
	}
}

func parseXLSX(body []byte, table string) ([]Row, error) {
	f, err := xlsx.OpenBinary(body)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open xlsx")
	}

	sheet, ok := f.Sheet[table]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.New("sheet: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	var header []string
	var rows []Row
	for i, row := range sheet.Rows {
		var cells []string
		for _, cell := range row.Cells {
			cells = append(cells, strings.TrimSpace(cell.Value))
		}
		if i == 0 {
			header = cells
			continue
		}
		if r := zipRow(header, cells); r != nil {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func parseCSV(body []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "sheet: parse csv")
	}
	if len(all) == 0 {
		return nil, nil
	}

	header := all[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for _, cells := range all[1:] {
		if r := zipRow(header, cells); r != nil {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// zipRow pairs header names with cell values, dropping fully empty rows.
func zipRow(header, cells []string) Row {
	row := make(Row, len(header))
	empty := true
	for i, col := range header {
		if col == "" {
			continue
		}
		val := ""
		if i < len(cells) {
			val = strings.TrimSpace(cells[i])
		}
		row[col] = val
		if val != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return row
}
