// Package validator compares oracle extractions against reference records
// and derives the audit status. Pure logic, no I/O.
package validator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/obralink/vale-audit/internal/model"
)

// dateLayout is how dates appear on vales and in the sheet.
const dateLayout = "02/01/2006"

// Config holds the tunable validation constants. The prompt revisions
// disagreed on these values over time, so they are configuration, not code.
type Config struct {
	// ConfidenceThreshold routes otherwise-decidable records to manual
	// review when any relevant field's extraction confidence falls below it.
	ConfidenceThreshold float64

	// DateToleranceDays is the maximum day difference still considered a
	// match (vales are often stamped a day or two after delivery).
	DateToleranceDays int

	// QuantityEpsilon is the absolute tolerance when comparing m3 volumes.
	QuantityEpsilon float64
}

// DefaultConfig returns the current production values.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		DateToleranceDays:   2,
		QuantityEpsilon:     0.01,
	}
}

// Validator applies the field rules and the decision policy.
type Validator struct {
	cfg Config
}

// New creates a Validator. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.DateToleranceDays <= 0 {
		cfg.DateToleranceDays = def.DateToleranceDays
	}
	if cfg.QuantityEpsilon <= 0 {
		cfg.QuantityEpsilon = def.QuantityEpsilon
	}
	return &Validator{cfg: cfg}
}

// Validate compares the extraction against the record and derives the audit
// verdict. Deterministic: identical inputs produce identical results.
//
// Decision precedence:
//  1. any field unreadable → needs_manual_review (short-circuits everything)
//  2. all match, confident → approved
//  3. all match, low confidence anywhere → needs_manual_review
//  4. mismatch with low confidence on a mismatched field → needs_manual_review
//  5. confident mismatch → inconsistent
func (v *Validator) Validate(rec model.Record, ext model.Extraction) model.AuditResult {
	res := model.AuditResult{
		RecordID:  rec.ID,
		Obra:      rec.Obra,
		ImagePath: rec.ImagePath,
	}

	for _, field := range model.AuditedFields {
		if ext.Field(field).Empty() {
			res.Status = model.StatusManualReview
			res.ReviewReason = "one or more fields could not be extracted"
			res.Comparisons = emptyFieldComparisons(ext)
			return res
		}
	}

	comparisons := map[string]model.Comparison{
		model.FieldNumeroVale: v.compareExact(ext.NumeroVale, rec.NumeroVale),
		model.FieldPlaca:      v.comparePlaca(ext.Placa, rec.Placa),
		model.FieldM3:         v.compareQuantity(ext.M3, rec.M3),
		model.FieldFecha:      v.compareDate(ext.Fecha, rec.Fecha),
	}
	res.Comparisons = comparisons

	allMatch := true
	var lowConfidence, lowConfidenceMismatched []string
	for _, field := range model.AuditedFields {
		c := comparisons[field]
		if !c.Matches {
			allMatch = false
		}
		if c.Confidence < v.cfg.ConfidenceThreshold {
			lowConfidence = append(lowConfidence, field)
			if !c.Matches {
				lowConfidenceMismatched = append(lowConfidenceMismatched, field)
			}
		}
		if !c.Matches {
			res.Discrepancies = append(res.Discrepancies, model.Discrepancy{
				Field:     field,
				Extracted: ext.Field(field).Valor,
				Expected:  rec.Reference(field),
				Reason:    c.Note,
			})
		}
	}

	switch {
	case allMatch && len(lowConfidence) == 0:
		res.Status = model.StatusApproved
		res.Approved = true
	case allMatch:
		res.Status = model.StatusManualReview
		res.ReviewReason = "low extraction confidence: " + formatLowConfidence(lowConfidence, ext)
	case len(lowConfidenceMismatched) > 0:
		res.Status = model.StatusManualReview
		res.ReviewReason = "mismatch with low extraction confidence: " + formatLowConfidence(lowConfidenceMismatched, ext)
	default:
		res.Status = model.StatusInconsistent
	}
	return res
}

// Illegible builds the verdict for a record whose image failed the quality
// gate: every field non-matching with a fixed note, routed to manual review.
func (v *Validator) Illegible(rec model.Record, quality model.QualityCheck) model.AuditResult {
	comparisons := make(map[string]model.Comparison, len(model.AuditedFields))
	for _, field := range model.AuditedFields {
		comparisons[field] = model.Comparison{Matches: false, Note: "illegible image"}
	}

	reason := "image not readable"
	if quality.Reason != "" {
		reason = "image not readable: " + quality.Reason
	}
	score := quality.Score

	return model.AuditResult{
		RecordID:     rec.ID,
		Obra:         rec.Obra,
		ImagePath:    rec.ImagePath,
		Status:       model.StatusManualReview,
		Comparisons:  comparisons,
		ReviewReason: reason,
		QualityScore: &score,
	}
}

func (v *Validator) compareExact(f model.FieldExtraction, expected string) model.Comparison {
	c := model.Comparison{Confidence: f.Confianza}
	if f.Valor == expected {
		c.Matches = true
		return c
	}
	c.Note = fmt.Sprintf("extracted %q does not match reference %q", f.Valor, expected)
	return c
}

func (v *Validator) comparePlaca(f model.FieldExtraction, expected string) model.Comparison {
	c := model.Comparison{Confidence: f.Confianza}
	got := strings.ToUpper(strings.TrimSpace(f.Valor))
	want := strings.ToUpper(strings.TrimSpace(expected))
	if got == want {
		c.Matches = true
		return c
	}
	// No fuzzy matching here: plate disambiguation is the oracle's job, via
	// the valid-plate list it is prompted with.
	c.Note = fmt.Sprintf("plate %q does not match reference %q", got, want)
	return c
}

func (v *Validator) compareQuantity(f model.FieldExtraction, expected string) model.Comparison {
	c := model.Comparison{Confidence: f.Confianza}
	got, gotErr := parseQuantity(f.Valor)
	want, wantErr := parseQuantity(expected)
	if gotErr != nil || wantErr != nil {
		c.Note = fmt.Sprintf("could not parse quantity (extracted %q, reference %q)", f.Valor, expected)
		return c
	}
	if math.Abs(got-want) < v.cfg.QuantityEpsilon {
		c.Matches = true
		return c
	}
	c.Note = fmt.Sprintf("quantity %s does not match reference %s",
		strconv.FormatFloat(got, 'f', -1, 64), strconv.FormatFloat(want, 'f', -1, 64))
	return c
}

func (v *Validator) compareDate(f model.FieldExtraction, expected string) model.Comparison {
	c := model.Comparison{Confidence: f.Confianza}
	got, gotErr := time.Parse(dateLayout, strings.TrimSpace(f.Valor))
	want, wantErr := time.Parse(dateLayout, strings.TrimSpace(expected))
	if gotErr != nil || wantErr != nil {
		c.Note = fmt.Sprintf("could not parse date (extracted %q, reference %q)", f.Valor, expected)
		return c
	}

	diff := int(math.Abs(got.Sub(want).Hours()) / 24)
	switch {
	case diff == 0:
		c.Matches = true
	case diff <= v.cfg.DateToleranceDays:
		c.Matches = true
		c.Note = fmt.Sprintf("within tolerance (%d day difference)", diff)
	default:
		c.Note = fmt.Sprintf("difference of %d days, exceeds tolerance", diff)
	}
	return c
}

// parseQuantity accepts both dot and comma decimal separators; the sheet and
// the vales are inconsistent about this.
func parseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(s, 64)
}

func emptyFieldComparisons(ext model.Extraction) map[string]model.Comparison {
	out := make(map[string]model.Comparison, len(model.AuditedFields))
	for _, field := range model.AuditedFields {
		f := ext.Field(field)
		c := model.Comparison{Confidence: f.Confianza}
		if f.Empty() {
			c.Note = "field could not be extracted"
		}
		out[field] = c
	}
	return out
}

func formatLowConfidence(fields []string, ext model.Extraction) string {
	// fields arrive in AuditedFields order, so output is deterministic.
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s (%.0f%%)", field, ext.Field(field).Confianza*100)
	}
	return strings.Join(parts, ", ")
}
