package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// PrivateKeySigner signs transactions with an in-process secp256k1 key
type PrivateKeySigner struct {
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
	chainID     *big.Int
	signer      types.Signer
	logger      *zap.Logger
}

// NewPrivateKeySigner creates a signer from a hex encoded private key
func NewPrivateKeySigner(privateKeyHex string, ethClient ChainIDReader, logger *zap.Logger) (*PrivateKeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &PrivateKeySigner{
		privateKey:  privateKey,
		fromAddress: crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:     chainID,
		signer:      types.LatestSignerForChainID(chainID),
		logger:      logger,
	}, nil
}

func (pks *PrivateKeySigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return unsignedTransactOpts(ctx, pks.fromAddress), nil
}

func (pks *PrivateKeySigner) SignTransaction(ctx context.Context, tx *types.Transaction, nonce uint64) (*types.Transaction, error) {
	unsigned, err := withNonce(pks.chainID, tx, nonce)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(unsigned, pks.signer, pks.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	pks.logger.Sugar().Debugw("Signed transaction",
		"txHash", signed.Hash().Hex(),
		"to", signed.To().Hex(),
		"nonce", nonce,
		"gasLimit", signed.Gas(),
	)
	return signed, nil
}

func (pks *PrivateKeySigner) GetFromAddress() common.Address {
	return pks.fromAddress
}

func (pks *PrivateKeySigner) ChainID() *big.Int {
	return new(big.Int).Set(pks.chainID)
}
