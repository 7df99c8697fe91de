package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/ledger"
)

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestDepositAndBalance(t *testing.T) {
	v := ledger.NewVault(zap.NewNop())

	require.NoError(t, v.Deposit("alice", dec(100)))
	require.NoError(t, v.Deposit("alice", dec(50)))
	assert.Equal(t, dec(150), v.Balance("alice"))
	assert.True(t, v.Balance("nobody").IsZero())

	require.Error(t, v.Deposit("alice", dec(0)))
	require.Error(t, v.Deposit("alice", dec(-5)))
}

func TestEscrowMovesFundsIntoCustody(t *testing.T) {
	v := ledger.NewVault(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, v.Deposit("bob", dec(100)))
	require.NoError(t, v.Escrow(ctx, 1, "bob", dec(60)))

	assert.Equal(t, dec(40), v.Balance("bob"))
	assert.Equal(t, dec(60), v.HeldFor(1))
}

func TestEscrowOverdraftRejected(t *testing.T) {
	v := ledger.NewVault(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, v.Deposit("bob", dec(10)))
	err := v.Escrow(ctx, 1, "bob", dec(11))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// Nothing moved.
	assert.Equal(t, dec(10), v.Balance("bob"))
	assert.True(t, v.HeldFor(1).IsZero())
}

func TestTransferDrainsCustody(t *testing.T) {
	v := ledger.NewVault(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, v.Deposit("bob", dec(100)))
	require.NoError(t, v.Escrow(ctx, 1, "bob", dec(100)))
	require.NoError(t, v.Transfer(ctx, 1, "alice", dec(100)))

	assert.Equal(t, dec(100), v.Balance("alice"))
	assert.True(t, v.HeldFor(1).IsZero())
}

func TestTransferBeyondCustodyRejected(t *testing.T) {
	v := ledger.NewVault(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, v.Deposit("bob", dec(100)))
	require.NoError(t, v.Escrow(ctx, 1, "bob", dec(50)))

	err := v.Transfer(ctx, 1, "alice", dec(51))
	require.ErrorIs(t, err, ledger.ErrInsufficientCustody)
	assert.Equal(t, dec(50), v.HeldFor(1))
	assert.True(t, v.Balance("alice").IsZero())
}

func TestCustodyIsPerAuction(t *testing.T) {
	v := ledger.NewVault(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, v.Deposit("bob", dec(100)))
	require.NoError(t, v.Escrow(ctx, 1, "bob", dec(30)))
	require.NoError(t, v.Escrow(ctx, 2, "bob", dec(70)))

	assert.Equal(t, dec(30), v.HeldFor(1))
	assert.Equal(t, dec(70), v.HeldFor(2))

	// Auction 1's custody cannot cover auction 2's payout.
	err := v.Transfer(ctx, 1, "alice", dec(70))
	require.ErrorIs(t, err, ledger.ErrInsufficientCustody)
}
