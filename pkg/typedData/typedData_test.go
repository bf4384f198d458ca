package typedData

import (
	"math/big"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sepoliaUSDC = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	spenderAddr = common.HexToAddress("0x00000000000000000000000000000000000000B2")
)

func setup(t *testing.T) *TypedDataBuilder {
	b, err := NewTypedDataBuilder(Domain{
		Name:              "USDC",
		Version:           "2",
		ChainId:           big.NewInt(11155111),
		VerifyingContract: sepoliaUSDC,
	})
	require.NoError(t, err)
	return b
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// abi.encode of the domain and permit structs, computed without apitypes
func expectedDigest(d Domain, p *PermitPayload) common.Hash {
	domainTypeHash := crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	permitTypeHash := crypto.Keccak256([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))

	sep := crypto.Keccak256(
		domainTypeHash,
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		word(d.ChainId),
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
	structHash := crypto.Keccak256(
		permitTypeHash,
		common.LeftPadBytes(p.Owner.Bytes(), 32),
		common.LeftPadBytes(p.Spender.Bytes(), 32),
		word(p.Value),
		word(p.Nonce),
		word(p.Deadline),
	)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, sep, structHash)
}

func Test_NewTypedDataBuilder(t *testing.T) {
	t.Run("Should reject incomplete domains", func(t *testing.T) {
		cases := []Domain{
			{Version: "2", ChainId: big.NewInt(1), VerifyingContract: sepoliaUSDC},
			{Name: "USDC", ChainId: big.NewInt(1), VerifyingContract: sepoliaUSDC},
			{Name: "USDC", Version: "2", VerifyingContract: sepoliaUSDC},
			{Name: "USDC", Version: "2", ChainId: big.NewInt(0), VerifyingContract: sepoliaUSDC},
			{Name: "USDC", Version: "2", ChainId: big.NewInt(1)},
		}
		for _, d := range cases {
			_, err := NewTypedDataBuilder(d)
			assert.ErrorIs(t, err, ErrInvalidDomain)
		}
	})

	t.Run("Should not be affected by later changes to the input chain id", func(t *testing.T) {
		chainId := big.NewInt(1)
		b, err := NewTypedDataBuilder(Domain{Name: "USDC", Version: "2", ChainId: chainId, VerifyingContract: sepoliaUSDC})
		require.NoError(t, err)

		chainId.SetInt64(5)
		assert.Equal(t, int64(1), b.Domain().ChainId.Int64())

		b.Domain().ChainId.SetInt64(7)
		assert.Equal(t, int64(1), b.Domain().ChainId.Int64())
	})
}

func Test_PermitDigest(t *testing.T) {
	b := setup(t)
	payload := &PermitPayload{
		Owner:    ownerAddr,
		Spender:  spenderAddr,
		Value:    amount.MaxUint256(),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(1_900_000_000),
	}

	t.Run("Should match a hand-encoded EIP-712 digest", func(t *testing.T) {
		digest, err := b.PermitDigest(payload)
		require.NoError(t, err)
		assert.Equal(t, expectedDigest(b.Domain(), payload), digest)
	})

	t.Run("Should match the hand-encoded domain separator", func(t *testing.T) {
		sep, err := b.DomainSeparator()
		require.NoError(t, err)

		d := b.Domain()
		expected := crypto.Keccak256Hash(
			crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")),
			crypto.Keccak256([]byte(d.Name)),
			crypto.Keccak256([]byte(d.Version)),
			word(d.ChainId),
			common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
		)
		assert.Equal(t, expected, sep)
	})

	t.Run("Should change when any field changes", func(t *testing.T) {
		base, err := b.PermitDigest(payload)
		require.NoError(t, err)

		mutations := map[string]func(p *PermitPayload){
			"owner":    func(p *PermitPayload) { p.Owner = spenderAddr },
			"spender":  func(p *PermitPayload) { p.Spender = ownerAddr },
			"value":    func(p *PermitPayload) { p.Value = big.NewInt(1) },
			"nonce":    func(p *PermitPayload) { p.Nonce = big.NewInt(1) },
			"deadline": func(p *PermitPayload) { p.Deadline = big.NewInt(1_900_000_001) },
		}
		for name, mutate := range mutations {
			p := *payload
			mutate(&p)
			d, err := b.PermitDigest(&p)
			require.NoError(t, err)
			assert.NotEqual(t, base, d, name)
		}
	})

	t.Run("Should differ across chains", func(t *testing.T) {
		other, err := NewTypedDataBuilder(Domain{Name: "USDC", Version: "2", ChainId: big.NewInt(1), VerifyingContract: sepoliaUSDC})
		require.NoError(t, err)

		a, err := b.PermitDigest(payload)
		require.NoError(t, err)
		c, err := other.PermitDigest(payload)
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	})

	t.Run("Should reject values that overflow uint256", func(t *testing.T) {
		p := *payload
		p.Value = new(big.Int).Add(amount.MaxUint256(), big.NewInt(1))
		_, err := b.PermitDigest(&p)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func Test_PermitTypedData(t *testing.T) {
	b := setup(t)
	td, err := b.PermitTypedData(&PermitPayload{
		Owner:    ownerAddr,
		Spender:  spenderAddr,
		Value:    big.NewInt(10),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(1_900_000_000),
	})
	require.NoError(t, err)

	assert.Equal(t, PermitTypeName, td.PrimaryType)
	assert.Len(t, td.Types[PermitTypeName], 5)
	assert.Equal(t, "USDC", td.Domain.Name)
	assert.Equal(t, "2", td.Domain.Version)
	assert.Equal(t, ownerAddr.Hex(), td.Message["owner"])
}

func Test_PermitPayloadValidate(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	valid := func() *PermitPayload {
		return &PermitPayload{
			Owner:    ownerAddr,
			Spender:  spenderAddr,
			Value:    big.NewInt(1),
			Nonce:    big.NewInt(0),
			Deadline: big.NewInt(now.Add(time.Hour).Unix()),
		}
	}

	t.Run("Should accept a fresh payload", func(t *testing.T) {
		assert.NoError(t, valid().Validate(now))
	})

	t.Run("Should reject a deadline at or before now", func(t *testing.T) {
		p := valid()
		p.Deadline = big.NewInt(now.Unix())
		assert.ErrorIs(t, p.Validate(now), ErrInvalidPayload)
	})

	t.Run("Should reject missing fields", func(t *testing.T) {
		p := valid()
		p.Nonce = nil
		assert.ErrorIs(t, p.Validate(now), ErrInvalidPayload)

		p = valid()
		p.Spender = common.Address{}
		assert.ErrorIs(t, p.Validate(now), ErrInvalidPayload)
	})
}
