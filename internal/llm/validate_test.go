package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gradeSchema = &Schema{
	Name: "test-grade",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":      map[string]any{"type": "number", "minimum": 0},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required":             []string{"score", "confidence"},
		"additionalProperties": false,
	},
}

func TestValidateAcceptsConformingJSON(t *testing.T) {
	parsed, err := Validate(gradeSchema, []byte(`{"score": 2, "confidence": 0.9}`))
	require.NoError(t, err)
	assert.Equal(t, 2.0, parsed.(map[string]any)["score"])
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	_, err := Validate(gradeSchema, []byte(`{"score": `))
	var invalid *ErrInvalidResponse
	require.True(t, errors.As(err, &invalid))
}

func TestValidateRejectsSchemaViolation(t *testing.T) {
	_, err := Validate(gradeSchema, []byte(`{"score": 2, "confidence": 3}`))
	var invalid *ErrInvalidResponse
	require.True(t, errors.As(err, &invalid))

	_, err = Validate(gradeSchema, []byte(`{"score": 2}`))
	require.Error(t, err)
}

func TestValidateWithoutSchemaOnlyParses(t *testing.T) {
	_, err := Validate(nil, []byte(`[1, 2, 3]`))
	assert.NoError(t, err)
}
