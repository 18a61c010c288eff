package userctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/secureauth/internal/models"
)

func TestUserCtx(t *testing.T) {
	principal := models.Principal{UserID: 42, Email: "user@example.com"}

	t.Run("no principal", func(t *testing.T) {
		_, ok := FromContext(t.Context())

		require.False(t, ok)
	})

	t.Run("principal in context", func(t *testing.T) {
		ctx := New(t.Context(), principal)

		got, ok := FromContext(ctx)

		require.True(t, ok)
		require.Equal(t, principal, got)
	})

	t.Run("principal visible through reserved slot", func(t *testing.T) {
		outer := Reserve(t.Context())
		inner, cancel := context.WithCancel(outer)
		defer cancel()

		_ = New(inner, principal)

		got, ok := FromContext(outer)
		require.True(t, ok, "principal set on derived context has to be seen by outer one")
		require.Equal(t, int64(42), got.UserID)
	})

	t.Run("empty slot", func(t *testing.T) {
		_, ok := FromContext(Reserve(t.Context()))

		require.False(t, ok)
	})
}
