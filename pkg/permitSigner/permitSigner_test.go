package permitSigner

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	token    = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000B2")
)

type fixture struct {
	signer *PermitSigner
	owner  *keyGenerator.OwnerKey
	now    time.Time
}

func setup(t *testing.T) *fixture {
	l := zaptest.NewLogger(t)
	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              "USDC",
		Version:           "2",
		ChainId:           big.NewInt(11155111),
		VerifyingContract: token,
	})
	require.NoError(t, err)

	gen := localKeyGenerator.NewLocalKeyGenerator(l)
	key, err := gen.GenerateECDSAKey(context.Background(), "owner", "owner")
	require.NoError(t, err)

	now := time.Unix(1_800_000_000, 0)
	ps := NewPermitSigner(builder, l)
	ps.now = func() time.Time { return now }

	return &fixture{
		signer: ps,
		owner:  keyGenerator.NewOwnerKey(gen, key),
		now:    now,
	}
}

func (f *fixture) payload() *typedData.PermitPayload {
	return &typedData.PermitPayload{
		Owner:    f.owner.Address(),
		Spender:  treasury,
		Value:    amount.MaxUint256(),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(f.now.Add(time.Hour).Unix()),
	}
}

// impostorKey reports one address but signs with an unrelated key.
type impostorKey struct {
	claimed common.Address
	key     *ecdsa.PrivateKey
}

func (k *impostorKey) Address() common.Address {
	return k.claimed
}

func (k *impostorKey) SignDigest(_ context.Context, digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, k.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func Test_PermitSigner(t *testing.T) {
	ctx := context.Background()

	t.Run("Should produce a signature that recovers to the owner", func(t *testing.T) {
		f := setup(t)
		p := f.payload()

		sig, err := f.signer.Sign(ctx, f.owner, p)
		require.NoError(t, err)
		assert.Contains(t, []uint8{27, 28}, sig.V())

		recovered, err := f.signer.Recover(p, sig)
		require.NoError(t, err)
		assert.Equal(t, f.owner.Address(), recovered)
		assert.NoError(t, f.signer.Verify(p, sig))
	})

	t.Run("Should fail verification when any signed field is altered", func(t *testing.T) {
		f := setup(t)
		p := f.payload()
		sig, err := f.signer.Sign(ctx, f.owner, p)
		require.NoError(t, err)

		mutations := map[string]func(p *typedData.PermitPayload){
			"value":    func(p *typedData.PermitPayload) { p.Value = big.NewInt(1) },
			"nonce":    func(p *typedData.PermitPayload) { p.Nonce = big.NewInt(1) },
			"deadline": func(p *typedData.PermitPayload) { p.Deadline = new(big.Int).Add(p.Deadline, big.NewInt(1)) },
			"spender":  func(p *typedData.PermitPayload) { p.Spender = common.HexToAddress("0x00000000000000000000000000000000000000C3") },
		}
		for name, mutate := range mutations {
			altered := *p
			mutate(&altered)
			err := f.signer.Verify(&altered, sig)
			assert.ErrorIs(t, err, ErrSignatureMismatch, name)
		}
	})

	t.Run("Should refuse an expired deadline", func(t *testing.T) {
		f := setup(t)
		p := f.payload()
		p.Deadline = big.NewInt(f.now.Unix())

		_, err := f.signer.Sign(ctx, f.owner, p)
		assert.ErrorIs(t, err, typedData.ErrInvalidPayload)
	})

	t.Run("Should refuse to sign for a different owner", func(t *testing.T) {
		f := setup(t)
		p := f.payload()
		p.Owner = treasury

		_, err := f.signer.Sign(ctx, f.owner, p)
		assert.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("Should refuse a signature that does not recover to the owner", func(t *testing.T) {
		f := setup(t)
		other, err := crypto.GenerateKey()
		require.NoError(t, err)

		_, err = f.signer.Sign(ctx, &impostorKey{claimed: f.owner.Address(), key: other}, f.payload())
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("Should fail once the owner key is discarded", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.owner.Discard(ctx))

		_, err := f.signer.Sign(ctx, f.owner, f.payload())
		assert.Error(t, err)
	})
}

func Test_Signature(t *testing.T) {
	t.Run("Should split into v, r and s", func(t *testing.T) {
		raw := make([]byte, 65)
		raw[0] = 0xaa
		raw[32] = 0xbb
		raw[64] = 1

		sig, err := SignatureFromBytes(raw)
		require.NoError(t, err)
		assert.Equal(t, uint8(28), sig.V())
		assert.Equal(t, byte(0xaa), sig.R()[0])
		assert.Equal(t, byte(0xbb), sig.S()[0])
		assert.Len(t, sig.Hex(), 132)
	})

	t.Run("Should reject bad lengths and recovery ids", func(t *testing.T) {
		_, err := SignatureFromBytes(make([]byte, 64))
		assert.ErrorIs(t, err, ErrInvalidSignature)

		raw := make([]byte, 65)
		raw[64] = 30
		_, err = SignatureFromBytes(raw)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("Should reject zero signatures on recovery", func(t *testing.T) {
		var sig Signature
		sig[64] = 27
		_, err := RecoverDigest(common.Hash{1}, sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
