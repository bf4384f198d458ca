package caller

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func permitDigest(t *testing.T, owner, spender common.Address, value, nonce, deadline *big.Int) []byte {
	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              testutil.LedgerTokenName,
		Version:           testutil.LedgerTokenVersion,
		ChainId:           testutil.TestChainID,
		VerifyingContract: testutil.TestTokenAddress,
	})
	require.NoError(t, err)
	digest, err := builder.PermitDigest(&typedData.PermitPayload{
		Owner:    owner,
		Spender:  spender,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	})
	require.NoError(t, err)
	return digest.Bytes()
}
