package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestAnnotateErrorNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, AnnotateError(nil, "key", "value"))
}

func TestAnnotateErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := AnnotateError(errBoom, "state", "idle")

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "boom", err.Error())
}

func TestAnnotatedErrorAttributesAreLogged(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "test",
		JSON:      true,
		Output:    &buf,
	})

	Get().Error("action failed",
		"error", AnnotateError(errBoom, "state", "idle", "attempt", 2),
		"plain", errors.New("kept as is"),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)

	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "kept as is", lines[0]["plain"])
	assert.Equal(t, "idle", lines[0]["state"])
	assert.InDelta(t, 2, lines[0]["attempt"], 0)
}
