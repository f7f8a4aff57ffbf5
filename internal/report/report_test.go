package report

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/model"
)

const testDate = model.DatePartition("2025/12/10")

type sentMail struct {
	to       []string
	subject  string
	body     string
	filename string
	bytes    int
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to []string, subject, body string, attachment []byte, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body, filename: filename, bytes: len(attachment)})
	return nil
}

func seedResult(t *testing.T, store blob.Store, res model.AuditResult) {
	t.Helper()
	require.NoError(t, store.WriteJSON(context.Background(), testDate.ResultPath(res.Status, res.RecordID), res))
}

func sampleResult(id, obra string, status model.AuditStatus) model.AuditResult {
	res := model.AuditResult{
		RecordID:  id,
		Timestamp: time.Date(2025, 12, 10, 18, 30, 0, 0, time.UTC),
		Obra:      obra,
		ImagePath: "images/" + id + ".jpg",
		Status:    status,
		Approved:  status == model.StatusApproved,
	}
	if status == model.StatusInconsistent {
		res.Comparisons = map[string]model.Comparison{
			model.FieldPlaca: {Matches: false, Confidence: 0.91},
		}
		res.Discrepancies = []model.Discrepancy{{
			Field: model.FieldPlaca, Extracted: "XYZ789", Expected: "ABC123", Reason: "value mismatch",
		}}
	}
	return res
}

func TestGenerateUploadsWorkbookPerObra(t *testing.T) {
	store, err := blob.NewFS(t.TempDir())
	require.NoError(t, err)
	seedResult(t, store, sampleResult("1", "Torre Norte", model.StatusApproved))
	seedResult(t, store, sampleResult("2", "Torre Norte", model.StatusInconsistent))
	seedResult(t, store, sampleResult("3", "Edificio Colón", model.StatusManualReview))

	r := New(store, nil, nil)
	summary, err := r.Generate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Results)
	assert.Equal(t, 2, summary.Obras)
	assert.Zero(t, summary.Emailed)

	local := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, store.Download(context.Background(), ReportPath(testDate, "torre-norte"), local))
	f, err := xlsx.OpenFile(local)
	require.NoError(t, err)
	detail, ok := f.Sheet["Resultados"]
	require.True(t, ok)
	// header plus one row per vale
	assert.Len(t, detail.Rows, 3)
	assert.Equal(t, "1", detail.Rows[1].Cells[0].Value)
	assert.Contains(t, detail.Rows[2].Cells[8].Value, "placa")
	assert.Equal(t, "X (91%)", detail.Rows[2].Cells[5].Value)

	_, ok = f.Sheet["Resumen"]
	assert.True(t, ok)

	exists, err := store.Exists(context.Background(), ReportPath(testDate, "edificio-colon"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGenerateEmailsConfiguredObras(t *testing.T) {
	store, err := blob.NewFS(t.TempDir())
	require.NoError(t, err)
	seedResult(t, store, sampleResult("1", "Torre Norte", model.StatusApproved))
	seedResult(t, store, sampleResult("2", "Edificio Colón", model.StatusError))

	mailer := &fakeMailer{}
	r := New(store, mailer, map[string][]string{
		"torre-norte": {"jefe@torrenorte.example"},
	})
	summary, err := r.Generate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Emailed)

	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, []string{"jefe@torrenorte.example"}, sent.to)
	assert.Contains(t, sent.subject, "Torre Norte")
	assert.Contains(t, sent.body, "Aprobados: 1")
	assert.Equal(t, "torre-norte.xlsx", sent.filename)
	assert.Positive(t, sent.bytes)
}

func TestGenerateEmptyDate(t *testing.T) {
	store, err := blob.NewFS(t.TempDir())
	require.NoError(t, err)

	r := New(store, &fakeMailer{}, nil)
	summary, err := r.Generate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Zero(t, summary.Results)
	assert.Zero(t, summary.Obras)
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Torre Norte":           "torre-norte",
		"Edificio Colón":        "edificio-colon",
		"  Obra   #3 (Ampliación)! ": "obra-3-ampliacion",
		"ÁÉÍÓÚ ñ":               "aeiou-n",
		"":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), "slug of %q", in)
	}
}
