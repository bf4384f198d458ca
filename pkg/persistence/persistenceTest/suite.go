// Package persistenceTest holds the behaviour every ITreasuryPersistence
// backend must share, run from each backend's own tests.
package persistenceTest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.ITreasuryPersistence

func RunSuite(t *testing.T, newStore Factory) {
	t.Run("Should save and load a wallet case-insensitively", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		w := &types.WalletRecord{
			Address:        "0xAbCdEf0000000000000000000000000000000001",
			Status:         types.WalletStatusAuthorized,
			Spender:        "0x00000000000000000000000000000000000000B2",
			PermitDeadline: 1_900_000_000,
			PermitTxHash:   "0x1234",
			CreatedAt:      10,
			UpdatedAt:      11,
		}
		require.NoError(t, store.SaveWallet(w))

		loaded, err := store.LoadWallet("0xabcdef0000000000000000000000000000000001")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, w, loaded)
	})

	t.Run("Should return nil for unknown records", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		w, err := store.LoadWallet("0x0000000000000000000000000000000000000bad")
		require.NoError(t, err)
		assert.Nil(t, w)

		op, err := store.LoadOperation("missing")
		require.NoError(t, err)
		assert.Nil(t, op)
	})

	t.Run("Should reject nil records", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		assert.Error(t, store.SaveWallet(nil))
		assert.Error(t, store.SaveOperation(nil))
	})

	t.Run("Should overwrite a wallet status", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		w := &types.WalletRecord{Address: "0x0000000000000000000000000000000000000001", Status: types.WalletStatusGenerated, CreatedAt: 1}
		require.NoError(t, store.SaveWallet(w))

		w.Status = types.WalletStatusUnusable
		w.Error = "permit reverted"
		require.NoError(t, store.SaveWallet(w))

		loaded, err := store.LoadWallet(w.Address)
		require.NoError(t, err)
		assert.Equal(t, types.WalletStatusUnusable, loaded.Status)
		assert.Equal(t, "permit reverted", loaded.Error)

		all, err := store.ListWallets()
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Should list wallets and operations in creation order", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for i := 5; i >= 1; i-- {
			require.NoError(t, store.SaveWallet(&types.WalletRecord{
				Address:   fmt.Sprintf("0x%040d", i),
				Status:    types.WalletStatusAuthorized,
				CreatedAt: int64(i),
			}))
			require.NoError(t, store.SaveOperation(&types.OperationRecord{
				ID:        fmt.Sprintf("op-%d", i),
				Type:      types.OperationTypeMint,
				State:     types.OperationStateConfirmed,
				CreatedAt: int64(i),
			}))
		}

		wallets, err := store.ListWallets()
		require.NoError(t, err)
		require.Len(t, wallets, 5)
		for i, w := range wallets {
			assert.Equal(t, int64(i+1), w.CreatedAt)
		}

		ops, err := store.ListOperations()
		require.NoError(t, err)
		require.Len(t, ops, 5)
		for i, op := range ops {
			assert.Equal(t, fmt.Sprintf("op-%d", i+1), op.ID)
		}
	})

	t.Run("Should not share state with callers", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		op := &types.OperationRecord{
			ID:     "op-copy",
			Type:   types.OperationTypeBurn,
			State:  types.OperationStateValidating,
			Params: map[string]string{"amount": "5"},
		}
		require.NoError(t, store.SaveOperation(op))
		op.Params["amount"] = "6"
		op.State = types.OperationStateFailed

		loaded, err := store.LoadOperation("op-copy")
		require.NoError(t, err)
		assert.Equal(t, "5", loaded.Params["amount"])
		assert.Equal(t, types.OperationStateValidating, loaded.State)

		loaded.Params["amount"] = "7"
		again, err := store.LoadOperation("op-copy")
		require.NoError(t, err)
		assert.Equal(t, "5", again.Params["amount"])
	})

	t.Run("Should handle concurrent writers", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.SaveOperation(&types.OperationRecord{
					ID:        fmt.Sprintf("concurrent-%02d", i),
					Type:      types.OperationTypeCollect,
					State:     types.OperationStateSubmitted,
					CreatedAt: int64(i),
				}))
			}(i)
		}
		wg.Wait()

		ops, err := store.ListOperations()
		require.NoError(t, err)
		assert.Len(t, ops, 20)
	})

	t.Run("Should fail every call after close", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.SaveWallet(&types.WalletRecord{Address: "0x01"}), persistence.ErrClosed)
		_, err := store.LoadWallet("0x01")
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.ListOperations()
		assert.ErrorIs(t, err, persistence.ErrClosed)
		assert.ErrorIs(t, store.HealthCheck(), persistence.ErrClosed)
	})
}
