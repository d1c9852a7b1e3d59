package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromContext(t *testing.T) {
	t.Run("falls back to global", func(t *testing.T) {
		assert.Same(t, zap.L(), FromContext(context.Background()))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		l := zap.NewNop()
		ctx := ContextWithLogger(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("nil logger leaves context untouched", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, ContextWithLogger(ctx, nil))
	})
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("shop-api", "test")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
