package integration

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/tests"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/permitSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/submissionQueue"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/treasury"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/walletProvisioner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_TreasuryOnChain(t *testing.T) {
	cfg := tests.ReadChainConfig(t)
	l := zaptest.NewLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	ethereumClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
	require.NoError(t, tests.WaitForChain(waitCtx, ethereumClient))
	waitCancel()

	ethClient, err := ethereumClient.GetEthereumContractCaller()
	require.NoError(t, err)

	signer, err := transactionSigner.NewPrivateKeySigner(cfg.TreasuryPrivateKey, ethClient, l)
	require.NoError(t, err)
	queue := submissionQueue.NewSubmissionQueue(nil, signer, ethClient, l)
	defer queue.Close()

	tokenAddress := common.HexToAddress(cfg.TokenAddress)
	tokenClient, err := caller.NewContractCaller(ethClient, tokenAddress, signer, queue, l)
	require.NoError(t, err)

	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              cfg.TokenName,
		Version:           cfg.TokenVersion,
		ChainId:           signer.ChainID(),
		VerifyingContract: tokenAddress,
	})
	require.NoError(t, err)

	store := memory.NewMemoryPersistence(l)
	provisioner := walletProvisioner.NewWalletProvisioner(nil, localKeyGenerator.NewLocalKeyGenerator(l), permitSigner.NewPermitSigner(builder, l), tokenClient, store, l)
	orchestrator := treasury.NewOrchestrator(&treasury.Config{Decimals: 6}, tokenClient, provisioner, store, metrics.NewTreasuryMetrics(), l)

	t.Run("Should provision a wallet then mint collect and burn", func(t *testing.T) {
		wallet, err := orchestrator.CreateWallet(ctx)
		require.NoError(t, err)

		record, err := store.LoadWallet(wallet.Address.Hex())
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, types.WalletStatusAuthorized, record.Status)

		_, err = orchestrator.Mint(ctx, "1", wallet.Address.Hex())
		require.NoError(t, err)

		_, err = orchestrator.Collect(ctx, wallet.Address.Hex(), signer.GetFromAddress().Hex())
		require.NoError(t, err)

		balance, err := tokenClient.ReadBalance(ctx, wallet.Address)
		require.NoError(t, err)
		assert.Equal(t, 0, balance.Sign())

		_, err = orchestrator.Burn(ctx, "1")
		require.NoError(t, err)
	})
}
