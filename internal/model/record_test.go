package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFromRow(t *testing.T) {
	rec, err := RecordFromRow(map[string]string{
		"ID":          " 42 ",
		"Numero Vale": "V-1001",
		"Placa":       "abc123",
		"M3":          "16.00",
		"Fecha":       "10/12/2025",
		"Obra":        "Torre Norte",
		"Imagen":      "images/42.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, "V-1001", rec.NumeroVale)
	assert.Equal(t, "abc123", rec.Placa)
	assert.Equal(t, "16.00", rec.M3)
	assert.Equal(t, "10/12/2025", rec.Fecha)
	assert.Equal(t, "Torre Norte", rec.Obra)
	assert.Equal(t, "images/42.jpg", rec.ImagePath)
}

func TestRecordFromRowRequiresIDAndImage(t *testing.T) {
	_, err := RecordFromRow(map[string]string{"imagen": "images/1.jpg"})
	assert.Error(t, err)

	_, err = RecordFromRow(map[string]string{"id": "1"})
	assert.Error(t, err)
}

func TestRecordReference(t *testing.T) {
	rec := Record{NumeroVale: "V-1", Placa: "ABC123", M3: "16", Fecha: "10/12/2025"}
	assert.Equal(t, "V-1", rec.Reference(FieldNumeroVale))
	assert.Equal(t, "ABC123", rec.Reference(FieldPlaca))
	assert.Equal(t, "16", rec.Reference(FieldM3))
	assert.Equal(t, "10/12/2025", rec.Reference(FieldFecha))
	assert.Empty(t, rec.Reference("obra"))
}

func TestValidPlates(t *testing.T) {
	records := []Record{
		{Placa: " abc123 "},
		{Placa: "ABC123"},
		{Placa: "xyz789"},
		{Placa: ""},
	}
	assert.Equal(t, []string{"ABC123", "XYZ789"}, ValidPlates(records))
	assert.Nil(t, ValidPlates(nil))
}
