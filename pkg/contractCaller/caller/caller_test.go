package caller

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/submissionQueue"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type setupResult struct {
	caller   *ContractCaller
	ledger   *testutil.FakeLedger
	treasury testutil.TreasuryAccount
}

func setup(t *testing.T) *setupResult {
	l := zaptest.NewLogger(t)
	treasury := testutil.CreateTreasuryAccount(t)
	ledger := testutil.CreateTestLedger(t, treasury)

	signer, err := transactionSigner.NewPrivateKeySigner(treasury.PrivateKeyHex, ledger, l)
	require.NoError(t, err)
	queue := submissionQueue.NewSubmissionQueue(nil, signer, ledger, l)
	t.Cleanup(queue.Close)

	cc, err := NewContractCaller(ledger, testutil.TestTokenAddress, signer, queue, l)
	require.NoError(t, err)
	return &setupResult{caller: cc, ledger: ledger, treasury: treasury}
}

func Test_ContractCaller(t *testing.T) {
	ctx := context.Background()

	t.Run("Should read balances and permit nonces", func(t *testing.T) {
		s := setup(t)
		holder := testutil.RandomAddress(t)
		s.ledger.SetBalance(holder, big.NewInt(3_000_000))

		balance, err := s.caller.ReadBalance(ctx, holder)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(3_000_000), balance)

		nonce, err := s.caller.ReadNonce(ctx, holder)
		require.NoError(t, err)
		assert.Equal(t, int64(0), nonce.Int64())
	})

	t.Run("Should submit and confirm a mint", func(t *testing.T) {
		s := setup(t)
		recipient := testutil.RandomAddress(t)

		tx, err := s.caller.SubmitCall(ctx, contractCaller.NewMintCall(recipient, testutil.Units(t, "10.5")))
		require.NoError(t, err)

		outcome, err := s.caller.AwaitConfirmation(ctx, tx)
		require.NoError(t, err)
		assert.True(t, outcome.Confirmed)
		assert.Equal(t, tx.Hash(), outcome.Hash)
		assert.NotZero(t, outcome.BlockNumber)
		assert.Equal(t, big.NewInt(10_500_000), s.ledger.BalanceOf(recipient))
	})

	t.Run("Should reject a call the contract refuses before signing", func(t *testing.T) {
		s := setup(t)

		_, err := s.caller.SubmitCall(ctx, contractCaller.NewBurnCall(big.NewInt(1)))
		require.Error(t, err)
		assert.ErrorIs(t, err, contractCaller.ErrReverted)

		var revertErr *contractCaller.RevertError
		require.ErrorAs(t, err, &revertErr)
		assert.Equal(t, "FiatToken: burn amount exceeds balance", revertErr.Reason)
		assert.Equal(t, 0, s.ledger.SentCount())
	})

	t.Run("Should surface the revert reason of a mined failure", func(t *testing.T) {
		s := setup(t)
		s.ledger.FailNextTransaction("Pausable: paused")

		tx, err := s.caller.SubmitCall(ctx, contractCaller.NewMintCall(testutil.RandomAddress(t), big.NewInt(1)))
		require.NoError(t, err)

		outcome, err := s.caller.AwaitConfirmation(ctx, tx)
		require.Error(t, err)
		assert.False(t, outcome.Confirmed)

		var revertErr *contractCaller.RevertError
		require.ErrorAs(t, err, &revertErr)
		assert.Equal(t, "Pausable: paused", revertErr.Reason)
		assert.Equal(t, "mint", revertErr.Method)
		assert.Equal(t, tx.Hash(), revertErr.TxHash)
	})

	t.Run("Should time out when no receipt arrives", func(t *testing.T) {
		s := setup(t)
		s.ledger.WithholdReceipts(true)

		tx, err := s.caller.SubmitCall(ctx, contractCaller.NewMintCall(testutil.RandomAddress(t), big.NewInt(1)))
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = s.caller.AwaitConfirmation(waitCtx, tx)
		assert.ErrorIs(t, err, contractCaller.ErrConfirmationTimeout)
	})

	t.Run("Should apply a signed permit and spend it with transferFrom", func(t *testing.T) {
		s := setup(t)
		ownerKey, err := crypto.GenerateKey()
		require.NoError(t, err)
		owner := crypto.PubkeyToAddress(ownerKey.PublicKey)
		s.ledger.SetBalance(owner, big.NewInt(7_000_000))

		deadline := big.NewInt(time.Now().Add(time.Hour).Unix())
		digest := permitDigest(t, owner, s.treasury.Address, amount.MaxUint256(), big.NewInt(0), deadline)
		sig, err := crypto.Sign(digest, ownerKey)
		require.NoError(t, err)

		permit, err := contractCaller.NewPermitCall(owner, s.treasury.Address, amount.MaxUint256(), deadline, sig)
		require.NoError(t, err)
		tx, err := s.caller.SubmitCall(ctx, permit)
		require.NoError(t, err)
		_, err = s.caller.AwaitConfirmation(ctx, tx)
		require.NoError(t, err)

		sink := testutil.RandomAddress(t)
		tx, err = s.caller.SubmitCall(ctx, contractCaller.NewTransferFromCall(owner, sink, big.NewInt(7_000_000)))
		require.NoError(t, err)
		_, err = s.caller.AwaitConfirmation(ctx, tx)
		require.NoError(t, err)

		assert.Equal(t, big.NewInt(7_000_000), s.ledger.BalanceOf(sink))
		assert.Equal(t, []string{"permit", "transferFrom"}, s.ledger.SentMethods())
	})

	t.Run("Should refuse a signer for another chain", func(t *testing.T) {
		treasury := testutil.CreateTreasuryAccount(t)
		ledger := testutil.CreateTestLedger(t, treasury)
		other, err := testutil.NewFakeLedger(big.NewInt(1), testutil.TestTokenAddress, treasury.Address)
		require.NoError(t, err)

		signer, err := transactionSigner.NewPrivateKeySigner(treasury.PrivateKeyHex, other, zaptest.NewLogger(t))
		require.NoError(t, err)
		_, err = NewContractCaller(ledger, testutil.TestTokenAddress, signer, nil, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func Test_NewPermitCall(t *testing.T) {
	t.Run("Should split the signature into v, r and s", func(t *testing.T) {
		sig := make([]byte, 65)
		sig[0] = 0xaa
		sig[32] = 0xbb
		sig[64] = 1

		call, err := contractCaller.NewPermitCall(common.Address{1}, common.Address{2}, big.NewInt(1), big.NewInt(2), sig)
		require.NoError(t, err)
		assert.Equal(t, "permit", call.Method)
		assert.Equal(t, uint8(28), call.Args[4])
		assert.Equal(t, byte(0xaa), call.Args[5].([32]byte)[0])
		assert.Equal(t, byte(0xbb), call.Args[6].([32]byte)[0])
	})

	t.Run("Should reject a short signature", func(t *testing.T) {
		_, err := contractCaller.NewPermitCall(common.Address{1}, common.Address{2}, big.NewInt(1), big.NewInt(2), make([]byte, 64))
		assert.Error(t, err)
	})
}
