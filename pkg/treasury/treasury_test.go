package treasury

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/permitSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/submissionQueue"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/walletProvisioner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type setupResult struct {
	orchestrator *Orchestrator
	ledger       *testutil.FakeLedger
	store        *memory.MemoryPersistence
	keys         *localKeyGenerator.LocalKeyGenerator
	treasury     testutil.TreasuryAccount
}

// refusingKeys generates owner keys but cannot sign with them.
type refusingKeys struct {
	keyGenerator.IKeyGenerator
}

func (refusingKeys) SignDigest(context.Context, string, []byte) ([]byte, error) {
	return nil, errors.New("signing is disabled for this key")
}

// authorizedWriteFails stores everything except the record marking a wallet authorized.
type authorizedWriteFails struct {
	*memory.MemoryPersistence
}

func (a authorizedWriteFails) SaveWallet(wallet *types.WalletRecord) error {
	if wallet.Status == types.WalletStatusAuthorized {
		return errors.New("disk quota exceeded")
	}
	return a.MemoryPersistence.SaveWallet(wallet)
}

type setupOptions struct {
	keys  func(keyGenerator.IKeyGenerator) keyGenerator.IKeyGenerator
	store func(*memory.MemoryPersistence) persistence.ITreasuryPersistence
}

func setup(t *testing.T) *setupResult {
	return setupWith(t, setupOptions{})
}

func setupWith(t *testing.T, opts setupOptions) *setupResult {
	l := zaptest.NewLogger(t)
	treasury := testutil.CreateTreasuryAccount(t)
	ledger := testutil.CreateTestLedger(t, treasury)

	signer, err := transactionSigner.NewPrivateKeySigner(treasury.PrivateKeyHex, ledger, l)
	require.NoError(t, err)
	queue := submissionQueue.NewSubmissionQueue(nil, signer, ledger, l)
	t.Cleanup(queue.Close)
	tokenClient, err := caller.NewContractCaller(ledger, testutil.TestTokenAddress, signer, queue, l)
	require.NoError(t, err)

	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              testutil.LedgerTokenName,
		Version:           testutil.LedgerTokenVersion,
		ChainId:           testutil.TestChainID,
		VerifyingContract: testutil.TestTokenAddress,
	})
	require.NoError(t, err)

	keys := localKeyGenerator.NewLocalKeyGenerator(l)
	store := memory.NewMemoryPersistence(l)

	var ownerKeys keyGenerator.IKeyGenerator = keys
	if opts.keys != nil {
		ownerKeys = opts.keys(keys)
	}
	var backing persistence.ITreasuryPersistence = store
	if opts.store != nil {
		backing = opts.store(store)
	}
	provisioner := walletProvisioner.NewWalletProvisioner(nil, ownerKeys, permitSigner.NewPermitSigner(builder, l), tokenClient, backing, l)

	orchestrator := NewOrchestrator(&Config{Decimals: testutil.LedgerDecimals}, tokenClient, provisioner, backing, metrics.NewTreasuryMetrics(), l)
	return &setupResult{
		orchestrator: orchestrator,
		ledger:       ledger,
		store:        store,
		keys:         keys,
		treasury:     treasury,
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), err.Error())
}

func lastOperation(t *testing.T, s *setupResult) *types.OperationRecord {
	t.Helper()
	ops, err := s.store.ListOperations()
	require.NoError(t, err)
	require.NotEmpty(t, ops)
	return ops[len(ops)-1]
}

func Test_Mint(t *testing.T) {
	ctx := context.Background()

	t.Run("Should mint 10.5 tokens as 10500000 base units", func(t *testing.T) {
		s := setup(t)
		wallet := testutil.RandomAddress(t)

		result, err := s.orchestrator.Mint(ctx, "10.5", wallet.Hex())
		require.NoError(t, err)
		assert.NotEqual(t, common.Hash{}, result.Hash)
		assert.Equal(t, big.NewInt(10_500_000), s.ledger.BalanceOf(wallet))

		op, err := s.orchestrator.GetOperation(result.OperationID)
		require.NoError(t, err)
		assert.Equal(t, types.OperationStateConfirmed, op.State)
		assert.Equal(t, result.Hash.Hex(), op.TxHash)
		assert.Equal(t, "10.5", op.Params["amount"])
	})

	t.Run("Should reject excess precision before touching the network", func(t *testing.T) {
		s := setup(t)

		_, err := s.orchestrator.Mint(ctx, "1.1234567", testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindValidation)
		assert.Equal(t, 0, s.ledger.SentCount())
		assert.Equal(t, types.OperationStateRejected, lastOperation(t, s).State)
	})

	t.Run("Should reject non-positive amounts and bad addresses", func(t *testing.T) {
		s := setup(t)

		_, err := s.orchestrator.Mint(ctx, "0", testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindValidation)
		_, err = s.orchestrator.Mint(ctx, "-1", testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindValidation)
		_, err = s.orchestrator.Mint(ctx, "1", "not-an-address")
		requireKind(t, err, KindValidation)
		_, err = s.orchestrator.Mint(ctx, "1", common.Address{}.Hex())
		requireKind(t, err, KindValidation)
		assert.Equal(t, 0, s.ledger.SentCount())
	})

	t.Run("Should report a mined revert as a transaction error with its reason", func(t *testing.T) {
		s := setup(t)
		s.ledger.FailNextTransaction("Pausable: paused")

		_, err := s.orchestrator.Mint(ctx, "1", testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindTransaction)
		assert.Contains(t, err.Error(), "Pausable: paused")

		op := lastOperation(t, s)
		assert.Equal(t, types.OperationStateFailed, op.State)
		assert.NotEmpty(t, op.TxHash)
		assert.Equal(t, string(KindTransaction), op.ErrorKind)
	})

	t.Run("Should report a missing receipt as a confirmation timeout", func(t *testing.T) {
		s := setup(t)
		s.ledger.WithholdReceipts(true)

		waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		_, err := s.orchestrator.Mint(waitCtx, "1", testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindConfirmationTimeout)
		assert.Equal(t, types.OperationStateFailed, lastOperation(t, s).State)
	})

	t.Run("Should serialize concurrent mints through one nonce sequence", func(t *testing.T) {
		s := setup(t)
		wallet := testutil.RandomAddress(t)

		var wg sync.WaitGroup
		hashes := make(chan common.Hash, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := s.orchestrator.Mint(ctx, "1", wallet.Hex())
				if assert.NoError(t, err) {
					hashes <- result.Hash
				}
			}()
		}
		wg.Wait()
		close(hashes)

		seen := make(map[common.Hash]bool)
		for h := range hashes {
			seen[h] = true
		}
		assert.Len(t, seen, 5)
		assert.Equal(t, big.NewInt(5_000_000), s.ledger.BalanceOf(wallet))
	})
}

func Test_Burn(t *testing.T) {
	ctx := context.Background()

	t.Run("Should refuse to burn more than the treasury holds", func(t *testing.T) {
		s := setup(t)
		s.ledger.SetBalance(s.treasury.Address, big.NewInt(3_000_000))

		_, err := s.orchestrator.Burn(ctx, "5")
		requireKind(t, err, KindInsufficientBalance)
		assert.Equal(t, 0, s.ledger.SentCount())
		assert.Equal(t, types.OperationStateRejected, lastOperation(t, s).State)
	})

	t.Run("Should burn from the treasury balance", func(t *testing.T) {
		s := setup(t)
		s.ledger.SetBalance(s.treasury.Address, big.NewInt(3_000_000))

		result, err := s.orchestrator.Burn(ctx, "2.5")
		require.NoError(t, err)
		assert.NotZero(t, result.BlockNumber)
		assert.Equal(t, big.NewInt(500_000), s.ledger.BalanceOf(s.treasury.Address))
		assert.Equal(t, []string{"burn"}, s.ledger.SentMethods())
	})

	t.Run("Should validate the amount", func(t *testing.T) {
		s := setup(t)

		_, err := s.orchestrator.Burn(ctx, "abc")
		requireKind(t, err, KindValidation)
	})
}

func Test_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("Should never submit when the balance is zero", func(t *testing.T) {
		s := setup(t)

		_, err := s.orchestrator.Collect(ctx, testutil.RandomAddress(t).Hex(), testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindInsufficientBalance)
		assert.Equal(t, 0, s.ledger.SentCount())
	})

	t.Run("Should create a wallet, fund it and sweep it without signing again", func(t *testing.T) {
		s := setup(t)
		sink := testutil.RandomAddress(t)

		wallet, err := s.orchestrator.CreateWallet(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, s.keys.GetKeyCount())

		_, err = s.orchestrator.Mint(ctx, "10.5", wallet.Address.Hex())
		require.NoError(t, err)

		result, err := s.orchestrator.Collect(ctx, wallet.Address.Hex(), sink.Hex())
		require.NoError(t, err)
		assert.NotEqual(t, common.Hash{}, result.Hash)

		assert.Equal(t, big.NewInt(10_500_000), s.ledger.BalanceOf(sink))
		assert.Equal(t, int64(0), s.ledger.BalanceOf(wallet.Address).Int64())
		assert.Equal(t, []string{"permit", "mint", "transferFrom"}, s.ledger.SentMethods())
		assert.Equal(t, int64(1), s.ledger.PermitNonce(wallet.Address).Int64())

		op, err := s.orchestrator.GetOperation(result.OperationID)
		require.NoError(t, err)
		assert.Equal(t, "10.5", op.Params["amount"])
	})

	t.Run("Should reject a wallet without an allowance as a transaction error", func(t *testing.T) {
		s := setup(t)
		stranger := testutil.RandomAddress(t)
		s.ledger.SetBalance(stranger, big.NewInt(1))

		_, err := s.orchestrator.Collect(ctx, stranger.Hex(), testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindTransaction)
		assert.Contains(t, err.Error(), "exceeds allowance")
		assert.Equal(t, 0, s.ledger.SentCount())
		assert.Equal(t, types.OperationStateRejected, lastOperation(t, s).State)
	})

	t.Run("Should refuse wallets recorded as unusable", func(t *testing.T) {
		s := setup(t)
		wallet := testutil.RandomAddress(t)
		require.NoError(t, s.store.SaveWallet(&types.WalletRecord{
			Address: wallet.Hex(),
			Status:  types.WalletStatusUnusable,
			Error:   "permit reverted",
		}))
		s.ledger.SetBalance(wallet, big.NewInt(1))

		_, err := s.orchestrator.Collect(ctx, wallet.Hex(), testutil.RandomAddress(t).Hex())
		requireKind(t, err, KindValidation)
		assert.Equal(t, 0, s.ledger.SentCount())
	})

	t.Run("Should still collect from a wallet past its permit deadline", func(t *testing.T) {
		s := setup(t)

		wallet, err := s.orchestrator.CreateWallet(ctx)
		require.NoError(t, err)
		s.ledger.SetBalance(wallet.Address, big.NewInt(1_000_000))
		s.orchestrator.now = testutil.FixedClock(time.Now().Add(2 * time.Hour))

		_, err = s.orchestrator.Collect(ctx, wallet.Address.Hex(), testutil.RandomAddress(t).Hex())
		require.NoError(t, err)
	})

	t.Run("Should reject collecting into the same address", func(t *testing.T) {
		s := setup(t)
		addr := testutil.RandomAddress(t).Hex()

		_, err := s.orchestrator.Collect(ctx, addr, addr)
		requireKind(t, err, KindValidation)
	})
}

func Test_CreateWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("Should journal a confirmed wallet creation", func(t *testing.T) {
		s := setup(t)

		wallet, err := s.orchestrator.CreateWallet(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.treasury.Address, s.orchestrator.TreasuryAddress())

		record, err := s.orchestrator.GetWallet(wallet.Address.Hex())
		require.NoError(t, err)
		assert.Equal(t, types.WalletStatusAuthorized, record.Status)

		op, err := s.orchestrator.GetOperation(wallet.OperationID)
		require.NoError(t, err)
		assert.Equal(t, types.OperationStateConfirmed, op.State)
		assert.Equal(t, wallet.PermitTxHash.Hex(), op.TxHash)
		assert.Equal(t, wallet.Address.Hex(), op.Params["wallet"])
	})

	t.Run("Should report a failed permit as a provisioning error", func(t *testing.T) {
		s := setup(t)
		s.ledger.FailNextTransaction("EIP2612: invalid signature")

		_, err := s.orchestrator.CreateWallet(ctx)
		requireKind(t, err, KindProvisioning)
		assert.Equal(t, 0, s.keys.GetKeyCount())

		op := lastOperation(t, s)
		assert.Equal(t, types.OperationStateFailed, op.State)

		record, err := s.orchestrator.GetWallet(op.Params["wallet"])
		require.NoError(t, err)
		assert.Equal(t, types.WalletStatusUnusable, record.Status)
	})

	t.Run("Should report an owner key that cannot sign as an authorization error", func(t *testing.T) {
		s := setupWith(t, setupOptions{
			keys: func(k keyGenerator.IKeyGenerator) keyGenerator.IKeyGenerator { return refusingKeys{k} },
		})

		_, err := s.orchestrator.CreateWallet(ctx)
		requireKind(t, err, KindAuthorization)
		assert.ErrorIs(t, err, walletProvisioner.ErrPermitSigning)
		assert.Equal(t, 0, s.ledger.SentCount())
		assert.Equal(t, 0, s.keys.GetKeyCount())

		op := lastOperation(t, s)
		assert.Equal(t, 1, strings.Count(err.Error(), op.Params["wallet"]), err.Error())
		assert.Equal(t, types.OperationStateRejected, op.State)
		assert.Equal(t, string(KindAuthorization), op.ErrorKind)
		assert.Empty(t, op.TxHash)

		record, err := s.orchestrator.GetWallet(op.Params["wallet"])
		require.NoError(t, err)
		assert.Equal(t, types.WalletStatusUnusable, record.Status)
	})

	t.Run("Should keep the permit hash when its receipt never arrives", func(t *testing.T) {
		s := setup(t)
		s.ledger.WithholdReceipts(true)

		waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		_, err := s.orchestrator.CreateWallet(waitCtx)
		requireKind(t, err, KindProvisioning)
		assert.ErrorIs(t, err, contractCaller.ErrConfirmationTimeout)

		op := lastOperation(t, s)
		assert.Equal(t, types.OperationStateFailed, op.State)
		require.NotEmpty(t, op.TxHash)

		record, err := s.orchestrator.GetWallet(op.Params["wallet"])
		require.NoError(t, err)
		assert.Equal(t, types.WalletStatusUnusable, record.Status)
		assert.Equal(t, op.TxHash, record.PermitTxHash)
		assert.Equal(t, 0, s.keys.GetKeyCount())
	})

	t.Run("Should fail rather than reject when a confirmed permit cannot be saved", func(t *testing.T) {
		s := setupWith(t, setupOptions{
			store: func(m *memory.MemoryPersistence) persistence.ITreasuryPersistence { return authorizedWriteFails{m} },
		})

		_, err := s.orchestrator.CreateWallet(ctx)
		requireKind(t, err, KindProvisioning)
		assert.Contains(t, err.Error(), "disk quota exceeded")
		assert.Equal(t, 1, s.ledger.SentCount())

		op := lastOperation(t, s)
		assert.Equal(t, types.OperationStateFailed, op.State)
		assert.NotEmpty(t, op.TxHash)
		assert.NotZero(t, op.BlockNumber)
	})

	t.Run("Should reject a permit the chain refuses before submission", func(t *testing.T) {
		s := setup(t)
		s.ledger.SetNow(testutil.FixedClock(time.Now().Add(24 * time.Hour)))

		_, err := s.orchestrator.CreateWallet(ctx)
		requireKind(t, err, KindProvisioning)
		assert.Equal(t, types.OperationStateRejected, lastOperation(t, s).State)
		assert.Equal(t, 0, s.ledger.SentCount())
	})
}

func Test_Error(t *testing.T) {
	t.Run("Should expose kind and cause", func(t *testing.T) {
		cause := context.DeadlineExceeded
		err := newError(KindConfirmationTimeout, cause, "waited %d blocks", 3)

		assert.Equal(t, KindConfirmationTimeout, KindOf(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, "ConfirmationTimeout: waited 3 blocks: context deadline exceeded", err.Error())
		assert.Equal(t, ErrorKind(""), KindOf(cause))
	})
}
