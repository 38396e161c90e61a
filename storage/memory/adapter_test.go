package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-x-project/phoenix/storage/memory"
)

func TestAdapter_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()

	_, ok, err := a.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.SetItem(ctx, "k", "v"))
	v, ok, err := a.GetItem(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, a.RemoveItem(ctx, "k"))
	_, ok, err = a.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
