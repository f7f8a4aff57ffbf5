package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/obralink/vale-audit/internal/model"
)

// MalformedResponseError means the model's reply did not contain parseable
// JSON. Retriable: models occasionally wrap or truncate output, and a fresh
// attempt usually fixes it.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed oracle response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a retriable parse failure.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// SchemaError means the reply parsed as JSON but does not have the expected
// shape. Not retriable: a consistently different shape needs a prompt or
// code change, not another attempt.
type SchemaError struct {
	Missing []string
	Raw     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("oracle response missing fields: %s", strings.Join(e.Missing, ", "))
}

// CleanJSON strips markdown fences and extracts the JSON object from
// free-form model output.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// wireExtraction mirrors the JSON shape the extraction prompt requests.
// Pointers distinguish "absent key" from "empty extraction".
type wireExtraction struct {
	NumeroVale *wireField `json:"numero_vale"`
	Placa      *wireField `json:"placa"`
	M3         *wireField `json:"m3"`
	Fecha      *wireField `json:"fecha"`
}

type wireField struct {
	Valor     string  `json:"valor"`
	Confianza float64 `json:"confianza"`
}

// DecodeExtraction parses model output into an Extraction. Parse failures
// come back as *MalformedResponseError (retriable); structurally wrong but
// valid JSON comes back as *SchemaError (not retriable).
func DecodeExtraction(text string) (model.Extraction, error) {
	cleaned := CleanJSON(text)

	var wire wireExtraction
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return model.Extraction{}, &MalformedResponseError{Raw: text, Err: err}
	}

	var missing []string
	for _, f := range []struct {
		name  string
		field *wireField
	}{
		{model.FieldNumeroVale, wire.NumeroVale},
		{model.FieldPlaca, wire.Placa},
		{model.FieldM3, wire.M3},
		{model.FieldFecha, wire.Fecha},
	} {
		if f.field == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.Extraction{}, &SchemaError{Missing: missing, Raw: text}
	}

	return model.Extraction{
		NumeroVale: toFieldExtraction(wire.NumeroVale),
		Placa:      toFieldExtraction(wire.Placa),
		M3:         toFieldExtraction(wire.M3),
		Fecha:      toFieldExtraction(wire.Fecha),
	}, nil
}

func toFieldExtraction(w *wireField) model.FieldExtraction {
	f := model.FieldExtraction{
		Valor:     strings.TrimSpace(w.Valor),
		Confianza: w.Confianza,
	}
	// Models occasionally report confidence as a percentage.
	if f.Confianza > 1 && f.Confianza <= 100 {
		f.Confianza /= 100
	}
	if f.Confianza < 0 {
		f.Confianza = 0
	}
	if f.Confianza > 1 {
		f.Confianza = 1
	}
	// An unreadable field must carry zero confidence.
	if f.Valor == "" {
		f.Confianza = 0
	}
	return f
}

// wireQuality mirrors the quality gate prompt's JSON shape.
type wireQuality struct {
	QualityScore *float64 `json:"quality_score"`
	IsReadable   *bool    `json:"is_readable"`
	Reason       string   `json:"reason"`
}

// DecodeQuality parses the quality gate reply.
func DecodeQuality(text string) (model.QualityCheck, error) {
	cleaned := CleanJSON(text)

	var wire wireQuality
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return model.QualityCheck{}, &MalformedResponseError{Raw: text, Err: err}
	}

	var missing []string
	if wire.QualityScore == nil {
		missing = append(missing, "quality_score")
	}
	if wire.IsReadable == nil {
		missing = append(missing, "is_readable")
	}
	if len(missing) > 0 {
		return model.QualityCheck{}, &SchemaError{Missing: missing, Raw: text}
	}

	return model.QualityCheck{
		Score:    *wire.QualityScore,
		Readable: *wire.IsReadable,
		Reason:   wire.Reason,
	}, nil
}
