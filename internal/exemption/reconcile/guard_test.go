package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard(t *testing.T) {
	t.Run("attaching twice keeps the first guard", func(t *testing.T) {
		ctx := WithGuard(context.Background())
		assert.Same(t, guardFrom(ctx), guardFrom(WithGuard(ctx)))
	})

	t.Run("enter is exclusive until exit", func(t *testing.T) {
		g := guardFrom(WithGuard(context.Background()))
		assert.True(t, g.enter())
		assert.False(t, g.enter())
		g.exit()
		assert.True(t, g.enter())
	})

	t.Run("nested contexts report recalculation in progress", func(t *testing.T) {
		assert.False(t, InRecalculation(context.Background()))
		assert.False(t, InRecalculation(WithGuard(context.Background())))
		assert.True(t, InRecalculation(Nested(context.Background())))
	})
}
