package testutil

import (
	"math/big"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	TestChainID      = big.NewInt(31337)
	TestTokenAddress = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
)

// TreasuryAccount is a freshly generated treasury signer identity.
type TreasuryAccount struct {
	PrivateKeyHex string
	Address       common.Address
}

// CreateTreasuryAccount generates a new treasury signing key
func CreateTreasuryAccount(t *testing.T) TreasuryAccount {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate treasury key: %v", err)
	}
	return TreasuryAccount{
		PrivateKeyHex: hexutil.Encode(crypto.FromECDSA(key)),
		Address:       crypto.PubkeyToAddress(key.PublicKey),
	}
}

// CreateTestLedger returns a ledger whose minter is the given treasury account.
func CreateTestLedger(t *testing.T, treasury TreasuryAccount) *FakeLedger {
	t.Helper()
	ledger, err := NewFakeLedger(TestChainID, TestTokenAddress, treasury.Address)
	if err != nil {
		t.Fatalf("Failed to create fake ledger: %v", err)
	}
	return ledger
}

// Units parses a decimal token amount into base units, failing the test on error.
func Units(t *testing.T, value string) *big.Int {
	t.Helper()
	units, err := amount.ParseUnits(value, LedgerDecimals)
	if err != nil {
		t.Fatalf("Failed to parse amount %q: %v", value, err)
	}
	return units
}

// RandomAddress returns the address of a throwaway key.
func RandomAddress(t *testing.T) common.Address {
	t.Helper()
	return CreateTreasuryAccount(t).Address
}

// FixedClock returns a clock frozen at at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
