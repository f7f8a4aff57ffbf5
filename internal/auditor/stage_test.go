package auditor

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/obralink/vale-audit/internal/model"
)

func TestStageTransitions(t *testing.T) {
	assert.Equal(t, StageQualityGate, afterInit(true))
	assert.Equal(t, StageExtract, afterInit(false))

	readable := model.QualityCheck{Score: 8, Readable: true}
	blurred := model.QualityCheck{Score: 2, Readable: false}
	assert.Equal(t, StageExtract, afterQualityGate(readable, nil))
	assert.Equal(t, StageDone, afterQualityGate(blurred, nil))
	// a failed gate call is advisory, not blocking
	assert.Equal(t, StageExtract, afterQualityGate(model.QualityCheck{}, eris.New("gate down")))

	assert.Equal(t, StageValidate, afterExtract(nil))
	assert.Equal(t, StageDone, afterExtract(eris.New("exhausted")))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "quality_gate", StageQualityGate.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "unknown", Stage(99).String())
}
