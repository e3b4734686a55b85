package bank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/bridgeberry/types"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	who := types.Address{1}

	assert.True(t, b.Balance(who).IsZero())

	require.NoError(t, b.Transfer(ctx, who, 110))
	require.NoError(t, b.Transfer(ctx, who, 5))
	assert.Equal(t, uint64(115), b.Balance(who).Uint64())
	assert.Equal(t, []Transfer{{To: who, Amount: 110}, {To: who, Amount: 5}}, b.Transfers())

	assert.Error(t, b.Transfer(ctx, types.Address{}, 1))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, b.Transfer(cctx, who, 1), context.Canceled)
	assert.Len(t, b.Transfers(), 2)
}
