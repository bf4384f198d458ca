package contractCaller

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrReverted matches any RevertError.
	ErrReverted = errors.New("transaction reverted")

	// ErrConfirmationTimeout is returned when the caller's context ends before a receipt is seen.
	ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")
)

// IEthClient is the chain connection the token client needs. *ethclient.Client satisfies it.
type IEthClient interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// ITokenClient reads and writes the permit-capable token on behalf of the treasury signer.
type ITokenClient interface {
	ReadBalance(ctx context.Context, account common.Address) (*big.Int, error)

	// ReadNonce returns the owner's current EIP-2612 permit nonce.
	ReadNonce(ctx context.Context, owner common.Address) (*big.Int, error)

	// SubmitCall builds the call, hands it to the submission queue and returns
	// the signed, broadcast transaction without waiting for it to be mined.
	SubmitCall(ctx context.Context, call *TokenCall) (*ethereumTypes.Transaction, error)

	// AwaitConfirmation blocks until tx is mined or ctx is done. A mined but
	// failed transaction is returned as a *RevertError.
	AwaitConfirmation(ctx context.Context, tx *ethereumTypes.Transaction) (*TransactionOutcome, error)

	TokenAddress() common.Address
	SignerAddress() common.Address
}

// TokenCall is a state-changing token method and its arguments.
type TokenCall struct {
	Method string
	Args   []interface{}
}

func (c *TokenCall) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

func NewMintCall(to common.Address, value *big.Int) *TokenCall {
	return &TokenCall{Method: "mint", Args: []interface{}{to, value}}
}

func NewBurnCall(value *big.Int) *TokenCall {
	return &TokenCall{Method: "burn", Args: []interface{}{value}}
}

func NewTransferFromCall(from, to common.Address, value *big.Int) *TokenCall {
	return &TokenCall{Method: "transferFrom", Args: []interface{}{from, to, value}}
}

// NewPermitCall splits a 65 byte R||S||V signature into the permit call's v, r and s.
func NewPermitCall(owner, spender common.Address, value, deadline *big.Int, signature []byte) (*TokenCall, error) {
	if len(signature) != 65 {
		return nil, fmt.Errorf("permit signature must be 65 bytes, got %d", len(signature))
	}
	var r, s [32]byte
	copy(r[:], signature[:32])
	copy(s[:], signature[32:64])
	v := signature[64]
	if v < 27 {
		v += 27
	}
	return &TokenCall{Method: "permit", Args: []interface{}{owner, spender, value, deadline, v, r, s}}, nil
}

// TransactionOutcome describes a mined transaction.
type TransactionOutcome struct {
	Hash        common.Hash
	Confirmed   bool
	BlockNumber uint64
	GasUsed     uint64
}

// RevertError is a call the token contract refused, either at estimation or once mined.
type RevertError struct {
	Method string
	TxHash common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no reason given"
	}
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s reverted: %s", e.Method, reason)
	}
	return fmt.Sprintf("%s reverted in %s: %s", e.Method, e.TxHash.Hex(), reason)
}

func (e *RevertError) Is(target error) bool {
	return target == ErrReverted
}
