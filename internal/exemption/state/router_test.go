package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatguard/pkg/platform/sentinel"
)

func TestRouter(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemoryStore()
	durable := NewMemoryStore()
	router := NewRouter().
		Route(ScopeSession, sessions).
		Route(ScopeOrder, durable)

	t.Run("writes land in the routed backend", func(t *testing.T) {
		require.NoError(t, router.Write(ctx, ScopeSession, Key{Owner: "s1", Name: NameExempt}, "yes"))
		require.NoError(t, router.Write(ctx, ScopeOrder, Key{Owner: "o1", Name: NameExempt}, "no"))

		_, ok, _ := sessions.Read(ctx, ScopeSession, Key{Owner: "s1", Name: NameExempt})
		assert.True(t, ok)
		_, ok, _ = sessions.Read(ctx, ScopeOrder, Key{Owner: "o1", Name: NameExempt})
		assert.False(t, ok)
		v, ok, _ := durable.Read(ctx, ScopeOrder, Key{Owner: "o1", Name: NameExempt})
		assert.True(t, ok)
		assert.Equal(t, "no", v)
	})

	t.Run("unrouted scope is unavailable", func(t *testing.T) {
		_, _, err := router.Read(ctx, ScopeCustomer, Key{Owner: "c1", Name: NameIdentifier})
		require.ErrorIs(t, err, sentinel.ErrUnavailable)

		err = router.Write(ctx, ScopeCustomer, Key{Owner: "c1", Name: NameIdentifier}, "x")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)

		err = router.Clear(ctx, ScopeCustomer, "c1")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
