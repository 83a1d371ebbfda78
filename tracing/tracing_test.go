package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")
	require.NoError(t, Init("deepresearch", "0.0.1", fname))

	ctx, span := StartSpan(context.Background(), "task.run")
	span.WithAttributes(map[string]string{"task.id": "t1"}).WithInt("findings", 21)
	span.Event("checkpoint", map[string]string{"phase": "investigating"})
	_, child := StartSpan(ctx, "investigate.web")
	EndSpan(child, errors.New("timeout"))
	EndSpan(span, nil)

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, string(data), "investigate.web")
}

func TestNilSpan(t *testing.T) {
	var span *Span
	assert.Nil(t, span.WithAttributes(map[string]string{"a": "b"}))
	assert.Nil(t, span.WithInt("a", 1))
	span.Event("noop", nil)
	EndSpan(span, nil)
}
