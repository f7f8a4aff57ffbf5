package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Audited field keys. These match the JSON keys the oracle returns and the
// column names in the vales sheet.
const (
	FieldNumeroVale = "numero_vale"
	FieldPlaca      = "placa"
	FieldM3         = "m3"
	FieldFecha      = "fecha"
)

// AuditedFields lists the four audited fields in presentation order.
var AuditedFields = []string{FieldNumeroVale, FieldPlaca, FieldM3, FieldFecha}

// Record is one reference row from the vales sheet. Immutable for the
// duration of an audit run.
type Record struct {
	ID         string `json:"id"`
	NumeroVale string `json:"numero_vale"`
	Placa      string `json:"placa"`
	M3         string `json:"m3"`
	Fecha      string `json:"fecha"` // DD/MM/YYYY
	Obra       string `json:"obra"`
	ImagePath  string `json:"image_path"` // blob path of the scanned vale
}

// Reference returns the expected value for an audited field key.
func (r Record) Reference(field string) string {
	switch field {
	case FieldNumeroVale:
		return r.NumeroVale
	case FieldPlaca:
		return r.Placa
	case FieldM3:
		return r.M3
	case FieldFecha:
		return r.Fecha
	}
	return ""
}

// recordColumns maps sheet column headers (lowercased) to Record fields.
// The sheet uses Spanish headers; a couple of common variants are accepted.
var recordColumns = map[string]string{
	"id":          "id",
	"numero_vale": FieldNumeroVale,
	"numero vale": FieldNumeroVale,
	"vale":        FieldNumeroVale,
	"placa":       FieldPlaca,
	"m3":          FieldM3,
	"fecha":       FieldFecha,
	"obra":        "obra",
	"imagen":      "image",
	"image_path":  "image",
}

// RecordFromRow maps a tabular row (column header → cell value) to a Record.
// Returns an error when the row has no id or no image reference, since such
// rows cannot be audited or deduplicated.
func RecordFromRow(row map[string]string) (Record, error) {
	var rec Record
	for col, val := range row {
		val = strings.TrimSpace(val)
		switch recordColumns[strings.ToLower(strings.TrimSpace(col))] {
		case "id":
			rec.ID = val
		case FieldNumeroVale:
			rec.NumeroVale = val
		case FieldPlaca:
			rec.Placa = val
		case FieldM3:
			rec.M3 = val
		case FieldFecha:
			rec.Fecha = val
		case "obra":
			rec.Obra = val
		case "image":
			rec.ImagePath = val
		}
	}

	if rec.ID == "" {
		return Record{}, eris.New("record row missing id column")
	}
	if rec.ImagePath == "" {
		return Record{}, eris.Errorf("record %s has no image reference", rec.ID)
	}
	return rec, nil
}

// ValidPlates returns the deduplicated, normalized (trimmed, uppercased) set
// of plates across records, preserving first-seen order. The list is handed
// to the oracle to disambiguate hard-to-read plates.
func ValidPlates(records []Record) []string {
	seen := make(map[string]bool, len(records))
	var plates []string
	for _, r := range records {
		p := strings.ToUpper(strings.TrimSpace(r.Placa))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		plates = append(plates, p)
	}
	return plates
}
