package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// gasBufferPercent is added on top of the estimated gas limit
const gasBufferPercent = 20

// ITransactionSigner signs treasury transactions. Transactions are built
// unsigned through GetTransactOpts and signed once the submission queue has
// assigned them a nonce.
type ITransactionSigner interface {
	// GetTransactOpts returns transaction options for creating unsigned transactions
	GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// SignTransaction re-issues tx as an EIP-1559 transaction with the given nonce
	// and a buffered gas limit, then signs it
	SignTransaction(ctx context.Context, tx *types.Transaction, nonce uint64) (*types.Transaction, error)

	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address

	// ChainID returns the chain the signer signs for
	ChainID() *big.Int
}

// ChainIDReader is satisfied by *ethclient.Client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

type SignerConfig struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
}

func NewTransactionSigner(cfg *SignerConfig, ethClient ChainIDReader, logger *zap.Logger) (ITransactionSigner, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	return NewPrivateKeySigner(cfg.PrivateKey, ethClient, logger)
}

func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit + gasLimit*gasBufferPercent/100
}

// unsignedTransactOpts returns opts that make bound contracts build, estimate
// and return a transaction without signing or sending it.
func unsignedTransactOpts(ctx context.Context, from common.Address) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		NoSend:  true,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}
}

// withNonce copies the call and fee fields of tx into a fresh dynamic fee transaction.
func withNonce(chainID *big.Int, tx *types.Transaction, nonce uint64) (*types.Transaction, error) {
	if tx.To() == nil {
		return nil, fmt.Errorf("contract creation transactions are not supported")
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).Set(chainID),
		Nonce:     nonce,
		GasTipCap: tx.GasTipCap(),
		GasFeeCap: tx.GasFeeCap(),
		Gas:       addGasBuffer(tx.Gas()),
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
	}), nil
}
