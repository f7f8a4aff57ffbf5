package tabular

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/obralink/vale-audit/internal/model"
)

const valesCSV = `id,numero_vale,placa,m3,fecha,obra,imagen
v-1,004521,ABC-123,16,10/12/2025,Obra Norte,images/2025/12/10/v-1.jpg
v-2,004522,XYZ-987,12.5,10/12/2025,Obra Sur,images/2025/12/10/v-2.jpg
v-3,004523,ABC-123,8,11/12/2025,Obra Norte,images/2025/12/11/v-3.jpg
`

func csvServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(valesCSV))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPSource_FetchCSV(t *testing.T) {
	ts := csvServer(t)
	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, RatePerSec: 1000})

	rows, err := src.Fetch(context.Background(), "vales", Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "004521", rows[0]["numero_vale"])
	assert.Equal(t, "Obra Sur", rows[1]["obra"])
}

func TestHTTPSource_FetchWithFilter(t *testing.T) {
	ts := csvServer(t)
	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, RatePerSec: 1000})

	rows, err := src.Fetch(context.Background(), "vales", Filter{Column: "fecha", Value: "10/12/2025"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "10/12/2025", row["fecha"])
	}
}

func TestHTTPSource_FetchXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("vales")
	require.NoError(t, err)

	for _, cells := range [][]string{
		{"id", "numero_vale", "placa", "m3", "fecha", "obra", "imagen"},
		{"v-1", "004521", "ABC-123", "16", "10/12/2025", "Obra Norte", "images/v-1.jpg"},
	} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().Value = c
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(ts.Close)

	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, RatePerSec: 1000})
	rows, err := src.Fetch(context.Background(), "vales", Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ABC-123", rows[0]["placa"])
}

func TestHTTPSource_RetriesTransientStatus(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(valesCSV))
	}))
	t.Cleanup(ts.Close)

	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, MaxRetries: 3, InitialBackoff: time.Millisecond, RatePerSec: 1000})
	rows, err := src.Fetch(context.Background(), "vales", Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 3, calls)
}

func TestHTTPSource_FailsFastOnClientError(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(ts.Close)

	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, MaxRetries: 3, InitialBackoff: time.Millisecond, RatePerSec: 1000})
	_, err := src.Fetch(context.Background(), "vales", Filter{})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "403 is not retriable")
}

func TestFetchRecords_MapsAndFiltersByDate(t *testing.T) {
	ts := csvServer(t)
	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, RatePerSec: 1000})

	d, err := model.ParsePartition("2025-12-10")
	require.NoError(t, err)

	records, err := FetchRecords(context.Background(), src, "vales", d)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "v-1", records[0].ID)
	assert.Equal(t, "images/2025/12/10/v-2.jpg", records[1].ImagePath)
}

func TestFetchRecords_SkipsUnmappableRows(t *testing.T) {
	csv := "id,numero_vale,placa,m3,fecha,obra,imagen\n" +
		"v-1,004521,ABC-123,16,10/12/2025,Obra Norte,images/v-1.jpg\n" +
		",004522,XYZ-987,12,10/12/2025,Obra Sur,images/v-2.jpg\n" // no id
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(csv))
	}))
	t.Cleanup(ts.Close)

	src := NewHTTP(HTTPOptions{ExportURL: ts.URL, RatePerSec: 1000})
	d, _ := model.ParsePartition("2025-12-10")

	records, err := FetchRecords(context.Background(), src, "vales", d)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "v-1", records[0].ID)
}
