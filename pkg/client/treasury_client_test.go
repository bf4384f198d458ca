package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/testutil/testTreasury"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_TreasuryClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Should run a wallet through mint collect and burn", func(t *testing.T) {
		tt := testTreasury.NewTestTreasury(t)
		c := NewTreasuryClient(tt.URL, zaptest.NewLogger(t))

		wallet, err := c.CreateWallet(ctx)
		require.NoError(t, err)
		require.True(t, common.IsHexAddress(wallet.Address))
		walletAddress := common.HexToAddress(wallet.Address)

		record, err := c.GetWallet(ctx, wallet.Address)
		require.NoError(t, err)
		assert.Equal(t, types.WalletStatusAuthorized, record.Status)

		minted, err := c.Mint(ctx, "25", wallet.Address)
		require.NoError(t, err)
		assert.NotEmpty(t, minted.TransactionHash)
		assert.Equal(t, 0, testutil.Units(t, "25").Cmp(tt.Ledger.BalanceOf(walletAddress)))

		collected, err := c.Collect(ctx, wallet.Address, tt.Account.Address.Hex())
		require.NoError(t, err)
		assert.NotEmpty(t, collected.TransactionHash)
		assert.Equal(t, 0, tt.Ledger.BalanceOf(walletAddress).Sign())
		assert.Equal(t, 0, testutil.Units(t, "25").Cmp(tt.Ledger.BalanceOf(tt.Account.Address)))

		burned, err := c.Burn(ctx, "5")
		require.NoError(t, err)
		assert.Equal(t, 0, testutil.Units(t, "20").Cmp(tt.Ledger.BalanceOf(tt.Account.Address)))

		op, err := c.GetOperation(ctx, burned.OperationID)
		require.NoError(t, err)
		assert.Equal(t, types.OperationStateConfirmed, op.State)
		assert.Equal(t, burned.TransactionHash, op.TxHash)

		assert.Equal(t, []string{"permit", "mint", "transferFrom", "burn"}, tt.Ledger.SentMethods())
	})

	t.Run("Should surface validation failures as APIError", func(t *testing.T) {
		tt := testTreasury.NewTestTreasury(t)
		c := NewTreasuryClient(tt.URL, zaptest.NewLogger(t))

		_, err := c.Mint(ctx, "1.0000001", testutil.RandomAddress(t).Hex())
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "ValidationError", apiErr.Kind)
		assert.Equal(t, 0, tt.Ledger.SentCount())
	})

	t.Run("Should report insufficient balance on burn", func(t *testing.T) {
		tt := testTreasury.NewTestTreasury(t)
		tt.Ledger.SetBalance(tt.Account.Address, testutil.Units(t, "3"))
		c := NewTreasuryClient(tt.URL, zaptest.NewLogger(t))

		_, err := c.Burn(ctx, "5")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "InsufficientBalanceError", apiErr.Kind)
		assert.Equal(t, 0, testutil.Units(t, "3").Cmp(tt.Ledger.BalanceOf(tt.Account.Address)))
	})

	t.Run("Should return NotFound for unknown wallets", func(t *testing.T) {
		tt := testTreasury.NewTestTreasury(t)
		c := NewTreasuryClient(tt.URL, zaptest.NewLogger(t))

		_, err := c.GetWallet(ctx, testutil.RandomAddress(t).Hex())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "NotFound", apiErr.Kind)
	})

	t.Run("Should report health with the treasury address", func(t *testing.T) {
		tt := testTreasury.NewTestTreasury(t)
		c := NewTreasuryClient(tt.URL+"/", zaptest.NewLogger(t))

		health, err := c.Health(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.Account.Address.Hex(), health.TreasuryAddress)
		assert.Equal(t, testutil.TestChainID.Uint64(), health.ChainID)
	})

	t.Run("Should keep plain text bodies when the error is not JSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewTreasuryClient(srv.URL, zaptest.NewLogger(t))
		_, err := c.Health(ctx)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "upstream down", apiErr.Message)
	})
}
