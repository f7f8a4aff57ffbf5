package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", "Here is the result:\n{\"a\": 1}\nLet me know.", `{"a": 1}`},
		{"whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.input))
		})
	}
}

const validExtraction = `{
	"numero_vale": {"valor": "004521", "confianza": 0.98},
	"placa": {"valor": "ABC-123", "confianza": 0.95},
	"m3": {"valor": "16", "confianza": 0.92},
	"fecha": {"valor": "10/12/2025", "confianza": 0.97}
}`

func TestDecodeExtraction_Valid(t *testing.T) {
	ext, err := DecodeExtraction(validExtraction)
	require.NoError(t, err)
	assert.Equal(t, "004521", ext.NumeroVale.Valor)
	assert.Equal(t, 0.98, ext.NumeroVale.Confianza)
	assert.Equal(t, "10/12/2025", ext.Fecha.Valor)
}

func TestDecodeExtraction_FencedValid(t *testing.T) {
	ext, err := DecodeExtraction("```json\n" + validExtraction + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", ext.Placa.Valor)
}

func TestDecodeExtraction_MalformedIsRetriable(t *testing.T) {
	_, err := DecodeExtraction(`{"numero_vale": {"valor": "0045`)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	var me *MalformedResponseError
	require.True(t, errors.As(err, &me))
	assert.NotEmpty(t, me.Raw)
}

func TestDecodeExtraction_MissingFieldIsSchemaError(t *testing.T) {
	_, err := DecodeExtraction(`{"numero_vale": {"valor": "004521", "confianza": 0.9}}`)
	require.Error(t, err)
	assert.False(t, IsMalformed(err), "schema violations must not be retried")

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Missing, "placa")
	assert.Contains(t, se.Missing, "m3")
	assert.Contains(t, se.Missing, "fecha")
}

func TestDecodeExtraction_NormalizesConfidence(t *testing.T) {
	ext, err := DecodeExtraction(`{
		"numero_vale": {"valor": "1", "confianza": 95},
		"placa": {"valor": "A", "confianza": -0.5},
		"m3": {"valor": "2", "confianza": 1.7},
		"fecha": {"valor": "", "confianza": 0.9}
	}`)
	require.NoError(t, err)
	assert.Equal(t, 0.95, ext.NumeroVale.Confianza)
	assert.Equal(t, 0.0, ext.Placa.Confianza)
	assert.Equal(t, 1.0, ext.M3.Confianza)
	assert.Equal(t, 0.0, ext.Fecha.Confianza, "empty valor forces zero confidence")
	assert.True(t, ext.Fecha.Empty())
}

func TestDecodeQuality(t *testing.T) {
	q, err := DecodeQuality("```json\n{\"quality_score\": 3.5, \"is_readable\": false, \"reason\": \"motion blur\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, 3.5, q.Score)
	assert.False(t, q.Readable)
	assert.Equal(t, "motion blur", q.Reason)
}

func TestDecodeQuality_Malformed(t *testing.T) {
	_, err := DecodeQuality("I would rate this image a 7 out of 10.")
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestDecodeQuality_MissingKeys(t *testing.T) {
	_, err := DecodeQuality(`{"reason": "fine"}`)
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.ElementsMatch(t, []string{"quality_score", "is_readable"}, se.Missing)
}
