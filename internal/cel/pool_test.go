package cel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"count * 2", []string{"count"}},
		{"hdr.count + 1", []string{"hdr"}},
		{"min(a, b) + size(name)", []string{"a", "b", "name"}},
		{`name == "x y" ? 1 : 0`, []string{"name"}},
		{"true ? 0x10 : 3", nil},
		{"a + a", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, extractVariables(tt.expr))
		})
	}
}

func TestExpressionPool_EvaluateLength(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	tests := []struct {
		name   string
		expr   string
		params map[string]any
		want   int
	}{
		{"arithmetic", "count * 2 + 1", map[string]any{"count": int64(3)}, 7},
		{"bitwise", "bitAnd(flags, 0x0F)", map[string]any{"flags": int64(0xA5)}, 5},
		{"shift", "bitShiftRight(flags, 4)", map[string]any{"flags": int64(0xA5)}, 10},
		{"clamp", "min(count, 4)", map[string]any{"count": int64(9)}, 4},
		{"uint result", "count", map[string]any{"count": uint64(12)}, 12},
		{"conditional", "kind == 1 ? 2 : 8", map[string]any{"kind": int64(1)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := pool.EvaluateLength(tt.expr, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestExpressionPool_EvaluateLengthErrors(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	_, err = pool.EvaluateLength("count - 5", map[string]any{"count": int64(1)})
	assert.ErrorContains(t, err, "out of range")

	_, err = pool.EvaluateLength("name", map[string]any{"name": "abc"})
	assert.ErrorContains(t, err, "want an integer")

	_, err = pool.EvaluateLength("count +", nil)
	assert.ErrorContains(t, err, "failed to compile")

	_, err = pool.EvaluateLength("missing + 1", nil)
	assert.Error(t, err)
}

func TestExpressionPool_CachesPrograms(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	for range 3 {
		_, err := pool.GetExpression("n + 1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, pool.Len())

	_, err = pool.GetExpression("n + 2")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
}

func TestNewExpressionPoolWithEnv_Nil(t *testing.T) {
	_, err := NewExpressionPoolWithEnv(nil)
	assert.Error(t, err)
}
