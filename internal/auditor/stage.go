package auditor

import (
	"github.com/obralink/vale-audit/internal/model"
)

// Stage is one step of the per-record pipeline. Every record walks
// Init → QualityGate (optional) → Extract → Validate → Done; the quality
// gate and extraction failures can jump straight to Done.
type Stage int

const (
	StageInit Stage = iota
	StageQualityGate
	StageExtract
	StageValidate
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageQualityGate:
		return "quality_gate"
	case StageExtract:
		return "extract"
	case StageValidate:
		return "validate"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// afterInit transitions out of Init: records go through the quality gate
// only when it is enabled.
func afterInit(gateEnabled bool) Stage {
	if gateEnabled {
		return StageQualityGate
	}
	return StageExtract
}

// afterQualityGate transitions out of QualityGate. The gate is advisory: if
// the call itself failed, extraction proceeds anyway. Only a definitive
// "not readable" short-circuits the record.
func afterQualityGate(q model.QualityCheck, gateErr error) Stage {
	if gateErr != nil {
		return StageExtract
	}
	if !q.Readable {
		return StageDone
	}
	return StageExtract
}

// afterExtract transitions out of Extract: a surviving error (retries
// exhausted or non-retriable) ends the record, otherwise it is validated.
func afterExtract(extractErr error) Stage {
	if extractErr != nil {
		return StageDone
	}
	return StageValidate
}
