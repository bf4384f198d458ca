package localKeyGenerator

import (
	"context"
	"strings"
	"testing"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*LocalKeyGenerator, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: true,
	})
	if err != nil {
		return nil, err
	}
	return NewLocalKeyGenerator(l), nil
}

func Test_LocalKeyGenerator(t *testing.T) {
	generator, err := setup()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Should generate ECDSA key successfully", func(t *testing.T) {
		result, err := generator.GenerateECDSAKey(ctx, "test-key-1", "test-alias-1")
		require.NoError(t, err)

		assert.NotNil(t, result.PublicKey)
		assert.True(t, strings.HasPrefix(result.KeyId, "local-key-"))
		assert.Equal(t, crypto.PubkeyToAddress(*result.PublicKey), result.Address)
		assert.True(t, generator.KeyExists(result.KeyId))
	})

	t.Run("Should generate unique keys", func(t *testing.T) {
		a, err := generator.GenerateECDSAKey(ctx, "a", "a")
		require.NoError(t, err)
		b, err := generator.GenerateECDSAKey(ctx, "b", "b")
		require.NoError(t, err)

		assert.NotEqual(t, a.KeyId, b.KeyId)
		assert.NotEqual(t, a.Address, b.Address)
	})

	t.Run("Should sign a digest recoverable to the key address", func(t *testing.T) {
		key, err := generator.GenerateECDSAKey(ctx, "signer", "signer")
		require.NoError(t, err)

		digest := crypto.Keccak256([]byte("permit"))
		sig, err := generator.SignDigest(ctx, key.KeyId, digest)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		assert.Contains(t, []byte{27, 28}, sig[64])

		recoverable := append([]byte{}, sig...)
		recoverable[64] -= 27
		pub, err := crypto.SigToPub(digest, recoverable)
		require.NoError(t, err)
		assert.Equal(t, key.Address, crypto.PubkeyToAddress(*pub))
	})

	t.Run("Should reject digests that are not 32 bytes", func(t *testing.T) {
		key, err := generator.GenerateECDSAKey(ctx, "short", "short")
		require.NoError(t, err)

		_, err = generator.SignDigest(ctx, key.KeyId, []byte("too short"))
		assert.Error(t, err)
	})

	t.Run("Should fail to sign with an unknown key", func(t *testing.T) {
		_, err := generator.SignDigest(ctx, "local-key-missing", crypto.Keccak256([]byte("x")))
		assert.Error(t, err)
	})

	t.Run("Should destroy keys so they can no longer sign", func(t *testing.T) {
		key, err := generator.GenerateECDSAKey(ctx, "ephemeral", "ephemeral")
		require.NoError(t, err)
		before := generator.GetKeyCount()

		require.NoError(t, generator.DestroyKey(ctx, key.KeyId))
		assert.False(t, generator.KeyExists(key.KeyId))
		assert.Equal(t, before-1, generator.GetKeyCount())

		_, err = generator.SignDigest(ctx, key.KeyId, crypto.Keccak256([]byte("x")))
		assert.Error(t, err)
		assert.Error(t, generator.DestroyKey(ctx, key.KeyId))
	})

	t.Run("Should load a private key from hex", func(t *testing.T) {
		pk, err := crypto.GenerateKey()
		require.NoError(t, err)
		hexKey := hexutil.Encode(crypto.FromECDSA(pk))

		require.NoError(t, generator.LoadPrivateKeyFromHex("fixed", hexKey, "fixed", "fixed"))
		loaded, err := generator.GetECDSAKeyById(ctx, "fixed")
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(pk.PublicKey), loaded.Address)

		assert.Error(t, generator.LoadPrivateKeyFromHex("fixed", hexKey, "fixed", "fixed"))
	})
}

func Test_OwnerKey(t *testing.T) {
	generator, err := setup()
	require.NoError(t, err)
	ctx := context.Background()

	key, err := generator.GenerateECDSAKey(ctx, "owner", "owner")
	require.NoError(t, err)
	owner := keyGenerator.NewOwnerKey(generator, key)

	t.Run("Should sign through the generator", func(t *testing.T) {
		sig, err := owner.SignDigest(ctx, crypto.Keccak256([]byte("digest")))
		require.NoError(t, err)
		assert.Len(t, sig, 65)
		assert.Equal(t, key.Address, owner.Address())
	})

	t.Run("Should refuse to sign after discard and discard only once", func(t *testing.T) {
		require.NoError(t, owner.Discard(ctx))
		require.NoError(t, owner.Discard(ctx))
		assert.True(t, owner.IsDiscarded())
		assert.False(t, generator.KeyExists(owner.KeyId()))

		_, err := owner.SignDigest(ctx, crypto.Keccak256([]byte("digest")))
		assert.Error(t, err)
	})
}
